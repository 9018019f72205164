package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// RequireRole enforces that the authenticated user holds at least one
// of the given roles.  It assumes JWTAuth already ran and stored the
// role claims under CtxRoles.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			held, ok := c.Get(CtxRoles).([]string)
			if !ok {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
			}
			for _, r := range held {
				if allowed[r] {
					return next(c)
				}
			}
			return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
		}
	}
}
