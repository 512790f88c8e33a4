package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	iauth "github.com/charlesng35/simplenotify/internal/auth"
	"github.com/charlesng35/simplenotify/internal/models"
	"github.com/charlesng35/simplenotify/pkg/errors"
	"github.com/charlesng35/simplenotify/pkg/response"
)

const (
	CtxClaimsKey    = "authClaims"
	CtxPrincipalKey = "principal"
	CtxUserIDKey    = "userID"
)

// Auth enforces JWT authentication using the supplied JWT service.
func Auth(jwt *iauth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authz := c.GetHeader("Authorization")
		if len(authz) < 8 || !strings.EqualFold(authz[:7], "Bearer ") {
			c.Header("WWW-Authenticate", "Bearer")
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}

		token := strings.TrimSpace(authz[7:])
		claims, err := jwt.ValidateAccessToken(token)
		if err != nil {
			// Normalise all validation failures to 401
			c.Header("WWW-Authenticate", "Bearer")
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}

		principal, err := claims.Principal()
		if err != nil {
			c.Header("WWW-Authenticate", "Bearer")
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}

		c.Set(CtxClaimsKey, claims)
		c.Set(CtxPrincipalKey, principal)
		if principal.Kind == models.OwnerKindUser {
			c.Set(CtxUserIDKey, principal.ID)
		}

		c.Next()
	}
}

// PrincipalFromContext returns the owner reference stored by Auth.
func PrincipalFromContext(c *gin.Context) (models.OwnerRef, bool) {
	v, ok := c.Get(CtxPrincipalKey)
	if !ok {
		return models.OwnerRef{}, false
	}
	principal, ok := v.(models.OwnerRef)
	if !ok || principal.IsZero() {
		return models.OwnerRef{}, false
	}
	return principal, true
}
