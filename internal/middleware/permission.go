package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/simplenotify/pkg/errors"
	"github.com/charlesng35/simplenotify/pkg/response"
)

// RequirePrincipalKind only lets requests through whose authenticated principal
// is one of the given kinds. It must run after Auth.
func RequirePrincipalKind(kinds ...string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(kinds))
	for _, kind := range kinds {
		allowed[kind] = struct{}{}
	}

	return func(c *gin.Context) {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}
		if _, ok := allowed[principal.Kind]; !ok {
			response.Error(c, errors.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}
