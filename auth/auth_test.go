package auth

import (
	"testing"
	"time"

	"github.com/campushub/material-service/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signToken(t *testing.T, secret, sub, role string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  sub,
		"role": role,
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
	s, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func TestJWTValidator(t *testing.T) {
	v := NewJWTValidator("sekrit")

	id, err := v.Validate(signToken(t, "sekrit", "prof@example.edu", "user"))
	require.NoError(t, err)
	assert.Equal(t, "prof@example.edu", id.Subject)
	assert.False(t, id.Admin)

	id, err = v.Validate(signToken(t, "sekrit", "admin@example.edu", "admin"))
	require.NoError(t, err)
	assert.True(t, id.Admin)

	_, err = v.Validate(signToken(t, "wrong-secret", "prof@example.edu", "user"))
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = v.Validate("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTValidatorRejectsMissingSubject(t *testing.T) {
	v := NewJWTValidator("sekrit")
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	s, err := token.SignedString([]byte("sekrit"))
	require.NoError(t, err)

	_, err = v.Validate(s)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAccessPredicates(t *testing.T) {
	ownerID := "prof@example.edu"
	private := &models.Material{OwnerID: ownerID, Visibility: models.VisibilityPrivate}
	public := &models.Material{OwnerID: ownerID, Visibility: models.VisibilityPublic}

	ownerIdent := Identity{Subject: ownerID}
	adminIdent := Identity{Subject: "admin@example.edu", Admin: true}
	strangerIdent := Identity{Subject: "other@example.edu"}

	assert.True(t, CanRead(ownerIdent, private))
	assert.True(t, CanRead(adminIdent, private))
	assert.False(t, CanRead(strangerIdent, private))
	assert.True(t, CanRead(strangerIdent, public))

	assert.True(t, CanModify(ownerIdent, private))
	assert.True(t, CanModify(adminIdent, private))
	assert.False(t, CanModify(strangerIdent, public))
}
