package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/avdeevk/job-board/internal/middleware"
	"github.com/avdeevk/job-board/internal/model"
	"github.com/avdeevk/job-board/internal/repository"
	"github.com/avdeevk/job-board/internal/service"
	"github.com/avdeevk/job-board/internal/token"
)

// ----- in-memory stores backing a real AuthService -----

type memUsers struct {
	mu     sync.Mutex
	nextID uint64
	byID   map[uint64]*model.User
}

func newMemUsers() *memUsers { return &memUsers{byID: map[uint64]*model.User{}} }

func (m *memUsers) Create(_ context.Context, email, passwordHash string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	u := &model.User{
		ID: m.nextID, Email: email, PasswordHash: passwordHash,
		IsActive: true, CreatedAt: time.Now().UTC(),
	}
	m.byID[u.ID] = u
	cp := *u
	return &cp, nil
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if u.Email == email && u.IsActive {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memUsers) GetByID(_ context.Context, id uint64) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.byID[id]; ok && u.IsActive {
		cp := *u
		return &cp, nil
	}
	return nil, repository.ErrNotFound
}

func (m *memUsers) Update(_ context.Context, id uint64, patch repository.UserPatch) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if patch.Email != nil {
		u.Email = *patch.Email
	}
	cp := *u
	return &cp, nil
}

func (m *memUsers) UpdatePassword(_ context.Context, id uint64, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.PasswordHash = passwordHash
	return nil
}

func (m *memUsers) Deactivate(_ context.Context, id uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.byID[id]; ok {
		u.IsActive = false
	}
	return nil
}

type memRoles struct{}

func (memRoles) GetByUserID(context.Context, uint64) ([]model.Role, error) { return nil, nil }

type memEntries struct {
	mu     sync.Mutex
	nextID uint64
	rows   []*model.Entry
}

func newMemEntries() *memEntries { return &memEntries{} }

func (m *memEntries) Open(_ context.Context, userID uint64, userAgent string, issue func(entryID uint64) (string, error)) (*model.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	e := &model.Entry{
		ID: m.nextID, UserID: userID, UserAgent: userAgent,
		IsActive: true, CreatedAt: time.Now().UTC(),
	}
	m.rows = append(m.rows, e)
	t, err := issue(e.ID)
	if err != nil {
		m.rows = m.rows[:len(m.rows)-1]
		return nil, err
	}
	e.RefreshToken = &t
	cp := *e
	return &cp, nil
}

func (m *memEntries) Close(_ context.Context, entryID uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.rows {
		if e.ID == entryID {
			e.IsActive = false
		}
	}
	return nil
}

func (m *memEntries) GetByID(_ context.Context, entryID uint64) (*model.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.rows {
		if e.ID == entryID {
			cp := *e
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memEntries) GetActiveByUserAgent(_ context.Context, userID uint64, userAgent string) (*model.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.rows) - 1; i >= 0; i-- {
		e := m.rows[i]
		if e.UserID == userID && e.UserAgent == userAgent && e.IsActive {
			cp := *e
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memEntries) ListActiveByUser(_ context.Context, userID uint64) ([]model.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Entry
	for _, e := range m.rows {
		if e.UserID == userID && e.IsActive {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (m *memEntries) ListByUser(_ context.Context, userID uint64, _, _ bool, _, _ int) ([]model.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Entry
	for _, e := range m.rows {
		if e.UserID == userID {
			out = append(out, *e)
		}
	}
	return out, nil
}

type memTokens struct {
	mu  sync.Mutex
	set map[string]bool
}

func newMemTokens() *memTokens { return &memTokens{set: map[string]bool{}} }

func (m *memTokens) Put(_ context.Context, token string, _ uint64, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.set[token] = true
	return nil
}

func (m *memTokens) Contains(_ context.Context, token string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.set[token], nil
}

// ----- fixture -----

type authFixture struct {
	h       *AuthHandler
	svc     *service.AuthService
	entries *memEntries
	echo    *echo.Echo
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	f := &authFixture{echo: echo.New(), entries: newMemEntries()}
	f.svc = service.NewAuthService(
		newMemUsers(), memRoles{}, f.entries, newMemTokens(),
		token.NewCodec("access-secret", "refresh-secret", 15*time.Minute, 24*time.Hour),
		bcrypt.MinCost,
	)
	f.h = NewAuthHandler(f.svc, 24*time.Hour)
	return f
}

// signup registers and logs a user in for the given device, returning
// the user id and token pair.
func (f *authFixture) signup(t *testing.T, email, password, agent string) (uint64, service.TokenPair) {
	t.Helper()
	ctx := context.Background()
	u, err := f.svc.Register(ctx, email, password)
	require.NoError(t, err)
	pair, err := f.svc.Login(ctx, email, password, agent)
	require.NoError(t, err)
	return u.ID, pair
}

// request builds an authenticated echo context the way the JWT gate
// would hand it to a handler.
func (f *authFixture) request(method, path, body, agent string, uid uint64, access string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	req.Header.Set("User-Agent", agent)
	rec := httptest.NewRecorder()
	c := f.echo.NewContext(req, rec)
	c.Set(middleware.CtxUserID, uid)
	c.Set(middleware.CtxAccessToken, access)
	return c, rec
}

// ----- tests -----

func TestChangePasswordClosesSessionFromBody(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	uid, pair := f.signup(t, "a@b.c", "hunter2", "cli/1.0")

	// Old, new and refresh token all arrive in one JSON body; the
	// handler must read the refresh token from that single bind.
	body := `{"old_password":"hunter2","new_password":"newpass","refresh_token":"` + pair.Refresh + `"}`
	c, rec := f.request(http.MethodPut, "/v1/auth/password", body, "cli/1.0", uid, pair.Access)
	require.NoError(t, f.h.ChangePassword(c))
	require.Equal(t, http.StatusNoContent, rec.Code)

	// The session is closed and both tokens are dead.
	_, err := f.svc.VerifyRefreshToken(ctx, pair.Refresh)
	assert.ErrorIs(t, err, repository.ErrUnauthenticated)
	_, err = f.svc.VerifyAccessToken(ctx, pair.Access)
	assert.ErrorIs(t, err, repository.ErrUnauthenticated)

	active, err := f.entries.ListActiveByUser(ctx, uid)
	require.NoError(t, err)
	assert.Empty(t, active)

	// Only the new password opens a session again.
	_, err = f.svc.Login(ctx, "a@b.c", "hunter2", "cli/1.0")
	assert.ErrorIs(t, err, repository.ErrForbidden)
	_, err = f.svc.Login(ctx, "a@b.c", "newpass", "cli/1.0")
	assert.NoError(t, err)
}

func TestChangePasswordClosesSessionWithoutRefreshToken(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	uid, pair := f.signup(t, "a@b.c", "hunter2", "cli/1.0")

	// No refresh token anywhere: the handler passes the device's user
	// agent through so the service can still locate and close the entry.
	body := `{"old_password":"hunter2","new_password":"newpass"}`
	c, rec := f.request(http.MethodPut, "/v1/auth/password", body, "cli/1.0", uid, pair.Access)
	require.NoError(t, f.h.ChangePassword(c))
	require.Equal(t, http.StatusNoContent, rec.Code)

	active, err := f.entries.ListActiveByUser(ctx, uid)
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestRefreshCookieCoversMountedAuthRoutes(t *testing.T) {
	f := newAuthFixture(t)

	_, err := f.svc.Register(context.Background(), "a@b.c", "hunter2")
	require.NoError(t, err)

	c, rec := f.request(http.MethodPost, "/v1/auth/login",
		`{"email":"a@b.c","password":"hunter2"}`, "cli/1.0", 0, "")
	require.NoError(t, f.h.Login(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var cookie *http.Cookie
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == refreshCookie {
			cookie = ck
		}
	}
	require.NotNil(t, cookie, "login must set the refresh cookie")
	// The auth group is mounted under /v1/auth; a narrower path would
	// keep the browser from ever sending the cookie back.
	assert.Equal(t, "/v1/auth", cookie.Path)
	assert.True(t, cookie.HttpOnly)
	assert.NotEmpty(t, cookie.Value)
}
