// README: Auth middleware resolves the bearer credential into a principal.
package middleware

import (
	"context"
	"errors"
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"

	"courier/internal/auth"
	"courier/internal/types"
)

const principalKey = "principal"

type Authenticator interface {
	Authenticate(ctx context.Context, token string) (auth.Principal, error)
}

// Auth rejects requests without a valid bearer token with 401.
func Auth(a Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := auth.BearerToken(c.GetHeader("Authorization"))
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		p, err := a.Authenticate(c.Request.Context(), token)
		if errors.Is(err, auth.ErrInvalidCredential) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid credential"})
			return
		}
		if err != nil {
			_ = c.Error(err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		SetCaller(c, p)
		c.Next()
	}
}

// RequireRole must run after Auth.
func RequireRole(roles ...auth.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := Caller(c)
		if !ok || !slices.Contains(roles, p.Role) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}

func SetCaller(c *gin.Context, p auth.Principal) {
	c.Set(principalKey, p)
}

func Caller(c *gin.Context) (auth.Principal, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return auth.Principal{}, false
	}
	p, ok := v.(auth.Principal)
	return p, ok
}

func CallerUID(c *gin.Context) types.ID {
	p, _ := Caller(c)
	return p.UserID
}

func CallerRole(c *gin.Context) auth.Role {
	p, _ := Caller(c)
	return p.Role
}
