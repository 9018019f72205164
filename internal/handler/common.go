// Package handler contains the Echo HTTP handlers: auth flows, role
// administration and the vacancy/resume/comment resources.
package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/avdeevk/job-board/internal/middleware"
	"github.com/avdeevk/job-board/internal/repository"
)

const dbTimeout = 5 * time.Second

// reqCtx bounds a handler's storage calls the way every endpoint does.
func reqCtx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), dbTimeout)
}

// fail translates repository sentinel errors into HTTP responses.  The
// fallback message is used for unexpected errors so internals never
// leak to clients.
func fail(c echo.Context, err error, fallback string) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	case errors.Is(err, repository.ErrConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": "already exists"})
	case errors.Is(err, repository.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	case errors.Is(err, repository.ErrUnauthenticated):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	default:
		c.Logger().Errorf("%s: %v", fallback, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": fallback})
	}
}

// currentUserID reads the authenticated subject set by the JWT gate.
func currentUserID(c echo.Context) (uint64, bool) {
	id, ok := c.Get(middleware.CtxUserID).(uint64)
	return id, ok
}

// currentAccessToken reads the raw bearer token set by the JWT gate.
func currentAccessToken(c echo.Context) string {
	raw, _ := c.Get(middleware.CtxAccessToken).(string)
	return raw
}

// isAdmin reports whether the gate stored the admin role for this request.
func isAdmin(c echo.Context) bool {
	roles, _ := c.Get(middleware.CtxRoles).([]string)
	for _, r := range roles {
		if r == "admin" {
			return true
		}
	}
	return false
}

// pathID parses a numeric path parameter.
func pathID(c echo.Context, name string) (uint64, error) {
	return strconv.ParseUint(c.Param(name), 10, 64)
}

// pageParams reads limit/offset query parameters with sane bounds.
func pageParams(c echo.Context) (limit, offset int) {
	limit = 20
	if v, err := strconv.Atoi(c.QueryParam("limit")); err == nil && v > 0 {
		limit = v
	}
	if limit > 100 {
		limit = 100
	}
	if v, err := strconv.Atoi(c.QueryParam("offset")); err == nil && v > 0 {
		offset = v
	}
	return limit, offset
}
