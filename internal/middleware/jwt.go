// Package middleware contains reusable HTTP middleware: the access
// token gate, role checks, a credential-endpoint rate limiter and a
// response cache for public routes.
package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/avdeevk/job-board/internal/repository"
	"github.com/avdeevk/job-board/internal/token"
)

// Context keys set by JWTAuth for downstream handlers.
const (
	CtxUserID      = "user_id"
	CtxRoles       = "roles"
	CtxAccessToken = "access_token"
)

// TokenVerifier is the slice of the auth service the gate consumes.
type TokenVerifier interface {
	VerifyAccessToken(ctx context.Context, raw string) (*token.Payload, error)
}

// JWTAuth returns an Echo middleware that runs every request's Bearer
// token through the verification gate (signature, revocation list,
// expiry) and injects the subject id, roles and the raw token into the
// request context.  Handlers read them back via c.Get with the Ctx*
// keys above.
func JWTAuth(verifier TokenVerifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			raw := strings.TrimPrefix(auth, "Bearer ")

			payload, err := verifier.VerifyAccessToken(c.Request().Context(), raw)
			if err != nil {
				if errors.Is(err, repository.ErrUnauthenticated) {
					return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or revoked token"})
				}
				return c.JSON(http.StatusInternalServerError, echo.Map{"error": "authorization check failed"})
			}

			c.Set(CtxUserID, payload.UserID())
			c.Set(CtxRoles, payload.Roles)
			c.Set(CtxAccessToken, raw)
			return next(c)
		}
	}
}
