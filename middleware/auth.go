package middleware

import (
	"net/http"
	"strings"

	"github.com/campushub/material-service/auth"
	"github.com/gin-gonic/gin"
)

const identityKey = "identity"

// TokenAuth 中间件：提取 Bearer token -> 验证 -> 注入 identity。
// When allowQuery is set, a token= query parameter is accepted as well, for
// clients that cannot set headers (direct browser navigation to a file link).
func TokenAuth(validator auth.TokenValidator, allowQuery bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" && allowQuery {
			token = c.Query("token")
		}
		if token == "" {
			unauthorized(c, "missing bearer token")
			return
		}
		identity, err := validator.Validate(token)
		if err != nil {
			unauthorized(c, "invalid token")
			return
		}
		c.Set(identityKey, identity)
		c.Next()
	}
}

// IdentityFrom returns the identity stored by TokenAuth.
func IdentityFrom(c *gin.Context) (auth.Identity, bool) {
	v, exists := c.Get(identityKey)
	if !exists {
		return auth.Identity{}, false
	}
	identity, ok := v.(auth.Identity)
	return identity, ok
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header == "" {
		return ""
	}
	if after, ok := strings.CutPrefix(header, "Bearer "); ok {
		return after
	}
	return header
}

func unauthorized(c *gin.Context, msg string) {
	c.JSON(http.StatusUnauthorized, gin.H{"error": msg})
	c.Abort()
}
