package handlers

import (
	"context"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/simplenotify/internal/middleware"
	"github.com/charlesng35/simplenotify/internal/models"
	appErrors "github.com/charlesng35/simplenotify/pkg/errors"
	"github.com/charlesng35/simplenotify/pkg/response"
)

// requestContext safely returns the request context with a background fallback for tests.
func requestContext(c *gin.Context) context.Context {
	if c == nil {
		return context.Background()
	}
	if req := c.Request; req != nil {
		return req.Context()
	}
	return context.Background()
}

// requirePrincipal returns the authenticated owner reference or writes a 401.
func requirePrincipal(c *gin.Context) (models.OwnerRef, bool) {
	principal, ok := middleware.PrincipalFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return models.OwnerRef{}, false
	}
	return principal, true
}

// uintParam parses a positive numeric path parameter or writes a 400.
func uintParam(c *gin.Context, name string) (uint, bool) {
	raw := strings.TrimSpace(c.Param(name))
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		response.Error(c, appErrors.NewBadRequest("invalid "+name))
		return 0, false
	}
	return uint(id), true
}
