package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/avdeevk/job-board/internal/queue"
	"github.com/avdeevk/job-board/internal/repository"
	"github.com/avdeevk/job-board/internal/service"
	"github.com/avdeevk/job-board/internal/service/queue_publisher"
)

const refreshCookie = "refresh_token"

// AuthHandler bundles dependencies for the auth endpoints.
type AuthHandler struct {
	Auth       *service.AuthService
	RefreshTTL time.Duration // cookie lifetime, matches refresh token TTL
}

func NewAuthHandler(auth *service.AuthService, refreshTTL time.Duration) *AuthHandler {
	return &AuthHandler{Auth: auth, RefreshTTL: refreshTTL}
}

// ----- DTOs -----

type registerReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}
type passwordReq struct {
	OldPassword  string `json:"old_password"`
	NewPassword  string `json:"new_password"`
	RefreshToken string `json:"refresh_token"`
}
type updateMeReq struct {
	Email *string `json:"email"`
}

type userResp struct {
	ID        uint64    `json:"id"`
	Email     string    `json:"email"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}
type tokenResp struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

// Register creates a new account.  No session is opened; the client
// logs in afterwards.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email/password required"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	user, err := h.Auth.Register(ctx, req.Email, req.Password)
	if err != nil {
		return fail(c, err, "create user failed")
	}

	h.publish(queue.AuthEvent{
		Type:   queue.EventUserRegistered,
		UserID: user.ID,
		Email:  user.Email,
		At:     time.Now().UTC().Format(time.RFC3339),
	})

	return c.JSON(http.StatusCreated, userResp{
		ID: user.ID, Email: user.Email, IsActive: user.IsActive, CreatedAt: user.CreatedAt,
	})
}

// Login verifies credentials and opens a session for the caller's
// device.  The refresh token travels both in the body and in an
// HTTP-only cookie.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email/password required"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	pair, err := h.Auth.Login(ctx, req.Email, req.Password, userAgent(c))
	if err != nil {
		return fail(c, err, "login failed")
	}

	h.setRefreshCookie(c, pair.Refresh)
	return c.JSON(http.StatusOK, tokenResp{
		AccessToken: pair.Access, RefreshToken: pair.Refresh, TokenType: "bearer",
	})
}

// Refresh rotates the caller's refresh token and returns a fresh pair.
func (h *AuthHandler) Refresh(c echo.Context) error {
	raw := h.refreshToken(c)
	if raw == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "refresh token required"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	pair, err := h.Auth.RefreshTokens(ctx, raw, userAgent(c))
	if err != nil {
		return fail(c, err, "refresh failed")
	}

	h.setRefreshCookie(c, pair.Refresh)
	return c.JSON(http.StatusOK, tokenResp{
		AccessToken: pair.Access, RefreshToken: pair.Refresh, TokenType: "bearer",
	})
}

// Logout ends the caller's current session and revokes both tokens.
func (h *AuthHandler) Logout(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	uid, _ := currentUserID(c)
	if err := h.Auth.Logout(ctx, currentAccessToken(c), h.refreshToken(c), userAgent(c)); err != nil {
		return fail(c, err, "logout failed")
	}

	h.clearRefreshCookie(c)
	h.publish(queue.AuthEvent{
		Type: queue.EventSessionClosed, UserID: uid, UserAgent: userAgent(c),
		At: time.Now().UTC().Format(time.RFC3339),
	})
	return c.NoContent(http.StatusNoContent)
}

// LogoutAll ends every session of the caller across devices.
func (h *AuthHandler) LogoutAll(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	uid, _ := currentUserID(c)
	if err := h.Auth.LogoutAll(ctx, currentAccessToken(c)); err != nil {
		return fail(c, err, "logout failed")
	}

	h.clearRefreshCookie(c)
	h.publish(queue.AuthEvent{
		Type: queue.EventSessionClosed, UserID: uid,
		At: time.Now().UTC().Format(time.RFC3339),
	})
	return c.NoContent(http.StatusNoContent)
}

// Me returns the caller's user record.
func (h *AuthHandler) Me(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	user, err := h.Auth.GetUserData(ctx, currentAccessToken(c))
	if err != nil {
		return fail(c, err, "load user failed")
	}
	return c.JSON(http.StatusOK, userResp{
		ID: user.ID, Email: user.Email, IsActive: user.IsActive, CreatedAt: user.CreatedAt,
	})
}

// MyRoles returns the caller's current role names, read from storage
// rather than from the token claims.
func (h *AuthHandler) MyRoles(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	roles, err := h.Auth.GetUserRoles(ctx, currentAccessToken(c))
	if err != nil {
		return fail(c, err, "load roles failed")
	}
	return c.JSON(http.StatusOK, echo.Map{"roles": roles})
}

// UpdateMe applies a partial update to the caller's account.
func (h *AuthHandler) UpdateMe(c echo.Context) error {
	var req updateMeReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.Email != nil {
		norm := strings.ToLower(strings.TrimSpace(*req.Email))
		if norm == "" {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "email must not be empty"})
		}
		req.Email = &norm
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	user, err := h.Auth.UpdateUserData(ctx, currentAccessToken(c), repository.UserPatch{Email: req.Email})
	if err != nil {
		return fail(c, err, "update user failed")
	}
	return c.JSON(http.StatusOK, userResp{
		ID: user.ID, Email: user.Email, IsActive: user.IsActive, CreatedAt: user.CreatedAt,
	})
}

// ChangePassword swaps the caller's password and logs the current
// session out, so the device has to authenticate again.
func (h *AuthHandler) ChangePassword(c echo.Context) error {
	var req passwordReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.OldPassword == "" || req.NewPassword == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "old_password/new_password required"})
	}
	// The body has already been bound, so the refresh token must come
	// from the same struct; binding again would read an empty body.
	refresh := strings.TrimSpace(req.RefreshToken)
	if refresh == "" {
		refresh = h.cookieRefreshToken(c)
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Auth.UpdateUserPassword(ctx, currentAccessToken(c), refresh, req.OldPassword, req.NewPassword, userAgent(c)); err != nil {
		return fail(c, err, "change password failed")
	}

	h.clearRefreshCookie(c)
	return c.NoContent(http.StatusNoContent)
}

// Entries returns the caller's login history.  ?unique=true collapses
// rows to the latest per device, ?active=true keeps open sessions only.
func (h *AuthHandler) Entries(c echo.Context) error {
	limit, offset := pageParams(c)
	unique := c.QueryParam("unique") == "true"
	activeOnly := c.QueryParam("active") == "true"

	ctx, cancel := reqCtx(c)
	defer cancel()

	entries, err := h.Auth.EntryHistory(ctx, currentAccessToken(c), unique, activeOnly, limit, offset)
	if err != nil {
		return fail(c, err, "load entries failed")
	}

	type entryResp struct {
		ID        uint64    `json:"id"`
		UserAgent string    `json:"user_agent"`
		IsActive  bool      `json:"is_active"`
		CreatedAt time.Time `json:"created_at"`
	}
	out := make([]entryResp, 0, len(entries))
	for _, e := range entries {
		out = append(out, entryResp{ID: e.ID, UserAgent: e.UserAgent, IsActive: e.IsActive, CreatedAt: e.CreatedAt})
	}
	return c.JSON(http.StatusOK, out)
}

// Deactivate soft-deletes the caller's account after closing every
// session.
func (h *AuthHandler) Deactivate(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	uid, _ := currentUserID(c)
	if err := h.Auth.DeactivateUser(ctx, currentAccessToken(c)); err != nil {
		return fail(c, err, "deactivate failed")
	}

	h.clearRefreshCookie(c)
	h.publish(queue.AuthEvent{
		Type: queue.EventSessionClosed, UserID: uid,
		At: time.Now().UTC().Format(time.RFC3339),
	})
	return c.NoContent(http.StatusNoContent)
}

// ----- helpers -----

func userAgent(c echo.Context) string {
	return c.Request().Header.Get("User-Agent")
}

// refreshToken reads the refresh token from the body first, falling
// back to the HTTP-only cookie set at login.  Callers that bind the
// body themselves must not use this helper: the body can only be bound
// once.
func (h *AuthHandler) refreshToken(c echo.Context) string {
	var req refreshReq
	_ = c.Bind(&req)
	if raw := strings.TrimSpace(req.RefreshToken); raw != "" {
		return raw
	}
	return h.cookieRefreshToken(c)
}

func (h *AuthHandler) cookieRefreshToken(c echo.Context) string {
	if cookie, err := c.Cookie(refreshCookie); err == nil {
		return cookie.Value
	}
	return ""
}

// refreshCookiePath must cover every route that consumes the cookie;
// the auth group is mounted under /v1/auth.
const refreshCookiePath = "/v1/auth"

func (h *AuthHandler) setRefreshCookie(c echo.Context, token string) {
	c.SetCookie(&http.Cookie{
		Name:     refreshCookie,
		Value:    token,
		Path:     refreshCookiePath,
		MaxAge:   int(h.RefreshTTL / time.Second),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) clearRefreshCookie(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     refreshCookie,
		Value:    "",
		Path:     refreshCookiePath,
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// publish fires an auth event at the broker without blocking the
// request; delivery failures are logged inside the publisher.
func (h *AuthHandler) publish(ev queue.AuthEvent) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = queue_publisher.PublishAuthEvent(ctx, ev)
	}()
}
