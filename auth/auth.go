package auth

import (
	"errors"
	"fmt"

	"github.com/campushub/material-service/models"
	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

// Identity is the authenticated principal. Role management itself lives in
// the auth service; this side only consumes the subject and the admin flag.
type Identity struct {
	Subject string
	Admin   bool
}

// TokenValidator is the boundary to the external auth system.
type TokenValidator interface {
	Validate(token string) (Identity, error)
}

// JWTValidator validates HMAC-signed bearer tokens issued by the auth
// service. Claims: sub (principal), role ("admin" grants admin capability).
type JWTValidator struct {
	secret []byte
}

func NewJWTValidator(secret string) *JWTValidator {
	return &JWTValidator{secret: []byte(secret)}
}

func (v *JWTValidator) Validate(tokenString string) (Identity, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil || !token.Valid {
		return Identity{}, ErrInvalidToken
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, ErrInvalidToken
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return Identity{}, ErrInvalidToken
	}
	role, _ := claims["role"].(string)
	return Identity{Subject: sub, Admin: role == "admin"}, nil
}

// CanRead is the access predicate the download path gates on: public
// visibility, ownership, or admin capability.
func CanRead(id Identity, m *models.Material) bool {
	if m.Visibility == models.VisibilityPublic {
		return true
	}
	return id.Admin || id.Subject == m.OwnerID
}

// CanModify covers metadata updates and deletion.
func CanModify(id Identity, m *models.Material) bool {
	return id.Admin || id.Subject == m.OwnerID
}
