package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/avdeevk/job-board/internal/model"
	"github.com/avdeevk/job-board/internal/repository"
	"github.com/avdeevk/job-board/internal/token"
	"github.com/avdeevk/job-board/internal/utils"
)

// ----- in-memory fakes -----

type fakeUsers struct {
	mu     sync.Mutex
	nextID uint64
	byID   map[uint64]*model.User
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{byID: map[uint64]*model.User{}}
}

func (f *fakeUsers) Create(_ context.Context, email, passwordHash string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if u.Email == email {
			return nil, fmt.Errorf("%w: email already exists", repository.ErrConflict)
		}
	}
	f.nextID++
	u := &model.User{
		ID: f.nextID, Email: email, PasswordHash: passwordHash,
		IsActive: true, CreatedAt: time.Now().UTC(),
	}
	f.byID[u.ID] = u
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if u.Email == email && u.IsActive {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeUsers) GetByID(_ context.Context, id uint64) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok || !u.IsActive {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) Update(_ context.Context, id uint64, patch repository.UserPatch) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok || !u.IsActive {
		return nil, repository.ErrNotFound
	}
	if patch.Email != nil {
		u.Email = *patch.Email
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) UpdatePassword(_ context.Context, id uint64, passwordHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok || !u.IsActive {
		return repository.ErrNotFound
	}
	u.PasswordHash = passwordHash
	return nil
}

func (f *fakeUsers) Deactivate(_ context.Context, id uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.IsActive = false
	return nil
}

// hash reads the stored password hash directly, bypassing the
// is_active filter, for assertions.
func (f *fakeUsers) hash(id uint64) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.byID[id].PasswordHash
}

type fakeRoles struct {
	mu     sync.Mutex
	byUser map[uint64][]model.Role
	err    error
}

func newFakeRoles() *fakeRoles { return &fakeRoles{byUser: map[uint64][]model.Role{}} }

func (f *fakeRoles) GetByUserID(_ context.Context, userID uint64) ([]model.Role, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return append([]model.Role(nil), f.byUser[userID]...), nil
}

func (f *fakeRoles) grant(userID uint64, name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byUser[userID] = append(f.byUser[userID], model.Role{ID: uint64(len(f.byUser[userID]) + 1), Name: name})
}

type fakeEntries struct {
	mu     sync.Mutex
	nextID uint64
	rows   []*model.Entry
}

func newFakeEntries() *fakeEntries { return &fakeEntries{} }

// Open mirrors the transactional contract of the real repository: when
// the issue callback fails the inserted row is discarded.
func (f *fakeEntries) Open(_ context.Context, userID uint64, userAgent string, issue func(entryID uint64) (string, error)) (*model.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	e := &model.Entry{
		ID: f.nextID, UserID: userID, UserAgent: userAgent,
		IsActive: true, CreatedAt: time.Now().UTC(),
	}
	f.rows = append(f.rows, e)
	token, err := issue(e.ID)
	if err != nil {
		f.rows = f.rows[:len(f.rows)-1]
		return nil, err
	}
	e.RefreshToken = &token
	cp := *e
	return &cp, nil
}

func (f *fakeEntries) Close(_ context.Context, entryID uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.rows {
		if e.ID == entryID {
			e.IsActive = false
			return nil
		}
	}
	return nil
}

func (f *fakeEntries) GetByID(_ context.Context, entryID uint64) (*model.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.rows {
		if e.ID == entryID {
			cp := *e
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeEntries) GetActiveByUserAgent(_ context.Context, userID uint64, userAgent string) (*model.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.rows) - 1; i >= 0; i-- {
		e := f.rows[i]
		if e.UserID == userID && e.UserAgent == userAgent && e.IsActive {
			cp := *e
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeEntries) ListActiveByUser(_ context.Context, userID uint64) ([]model.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Entry
	for _, e := range f.rows {
		if e.UserID == userID && e.IsActive {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (f *fakeEntries) ListByUser(_ context.Context, userID uint64, uniqueByAgent, activeOnly bool, limit, offset int) ([]model.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	type key struct {
		agent  string
		active bool
	}
	latest := map[key]*model.Entry{}
	var out []model.Entry
	for _, e := range f.rows {
		if e.UserID != userID {
			continue
		}
		if activeOnly && !e.IsActive {
			continue
		}
		if uniqueByAgent {
			latest[key{e.UserAgent, e.IsActive}] = e
			continue
		}
		out = append(out, *e)
	}
	if uniqueByAgent {
		for _, e := range latest {
			out = append(out, *e)
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type fakeTokenStore struct {
	mu   sync.Mutex
	ttls map[string]time.Duration
}

func newFakeTokenStore() *fakeTokenStore {
	return &fakeTokenStore{ttls: map[string]time.Duration{}}
}

func (f *fakeTokenStore) Put(_ context.Context, tok string, _ uint64, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ttls[tok] = ttl
	return nil
}

func (f *fakeTokenStore) Contains(_ context.Context, tok string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.ttls[tok]
	return ok, nil
}

// ----- fixture -----

type fixture struct {
	svc     *AuthService
	users   *fakeUsers
	roles   *fakeRoles
	entries *fakeEntries
	revoked *fakeTokenStore
	codec   *token.Codec
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		users:   newFakeUsers(),
		roles:   newFakeRoles(),
		entries: newFakeEntries(),
		revoked: newFakeTokenStore(),
		codec:   token.NewCodec("access-secret", "refresh-secret", 15*time.Minute, 24*time.Hour),
	}
	f.svc = NewAuthService(f.users, f.roles, f.entries, f.revoked, f.codec, bcrypt.MinCost)
	return f
}

func (f *fixture) register(t *testing.T, email, password string) *model.User {
	t.Helper()
	u, err := f.svc.Register(context.Background(), email, password)
	require.NoError(t, err)
	return u
}

func (f *fixture) login(t *testing.T, email, password, agent string) TokenPair {
	t.Helper()
	pair, err := f.svc.Login(context.Background(), email, password, agent)
	require.NoError(t, err)
	return pair
}

// ----- tests -----

func TestRegisterHashesPassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	u := f.register(t, "a@b.c", "hunter2")
	assert.NotEmpty(t, u.ID)
	assert.True(t, u.IsActive)
	assert.True(t, utils.VerifyPassword(f.users.hash(u.ID), "hunter2"))

	_, err := f.svc.Register(ctx, "a@b.c", "other")
	assert.ErrorIs(t, err, repository.ErrConflict)
}

func TestLoginReturnsWorkingTokenPair(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	u := f.register(t, "a@b.c", "hunter2")
	pair := f.login(t, "a@b.c", "hunter2", "cli/1.0")

	access, err := f.svc.VerifyAccessToken(ctx, pair.Access)
	require.NoError(t, err)
	assert.Equal(t, u.ID, access.UserID())
	assert.Equal(t, []string{DefaultRoleName}, access.Roles)

	refresh, err := f.svc.VerifyRefreshToken(ctx, pair.Refresh)
	require.NoError(t, err)
	assert.Equal(t, u.ID, refresh.UserID())

	// The session entry holds the issued refresh token.
	entry, err := f.entries.GetByID(ctx, refresh.SessionID)
	require.NoError(t, err)
	assert.True(t, entry.IsActive)
	require.NotNil(t, entry.RefreshToken)
	assert.Equal(t, pair.Refresh, *entry.RefreshToken)
	assert.Equal(t, "cli/1.0", entry.UserAgent)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.register(t, "a@b.c", "hunter2")

	_, err := f.svc.Login(ctx, "a@b.c", "wrong", "ua")
	assert.ErrorIs(t, err, repository.ErrForbidden)

	_, err = f.svc.Login(ctx, "nobody@b.c", "hunter2", "ua")
	assert.ErrorIs(t, err, repository.ErrForbidden)
}

func TestLoginSameDeviceClosesPreviousSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	u := f.register(t, "a@b.c", "hunter2")
	first := f.login(t, "a@b.c", "hunter2", "cli/1.0")
	second := f.login(t, "a@b.c", "hunter2", "cli/1.0")

	// Old refresh token was revoked, new one works.
	_, err := f.svc.VerifyRefreshToken(ctx, first.Refresh)
	assert.ErrorIs(t, err, repository.ErrUnauthenticated)
	_, err = f.svc.VerifyRefreshToken(ctx, second.Refresh)
	assert.NoError(t, err)

	// Exactly one active entry remains for the device.
	active, err := f.entries.ListActiveByUser(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "cli/1.0", active[0].UserAgent)
}

func TestLoginDifferentDevicesKeepsBothSessions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	u := f.register(t, "a@b.c", "hunter2")
	f.login(t, "a@b.c", "hunter2", "cli/1.0")
	f.login(t, "a@b.c", "hunter2", "web/2.0")

	active, err := f.entries.ListActiveByUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Len(t, active, 2)
}

func TestFailedLoginLeavesNoSessionRow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	u := f.register(t, "a@b.c", "hunter2")
	f.roles.err = fmt.Errorf("%w: role lookup failed", repository.ErrInternal)

	_, err := f.svc.Login(ctx, "a@b.c", "hunter2", "cli/1.0")
	require.Error(t, err)

	// A login that dies before handing out tokens must not leave an
	// active token-less entry behind.
	active, err := f.entries.ListActiveByUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, active)
	assert.Empty(t, f.entries.rows)
}

func TestRefreshRotatesTokens(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.register(t, "a@b.c", "hunter2")
	pair := f.login(t, "a@b.c", "hunter2", "cli/1.0")

	rotated, err := f.svc.RefreshTokens(ctx, pair.Refresh, "cli/1.0")
	require.NoError(t, err)
	assert.NotEqual(t, pair.Refresh, rotated.Refresh)

	// The old refresh token is single-use.
	_, err = f.svc.RefreshTokens(ctx, pair.Refresh, "cli/1.0")
	assert.ErrorIs(t, err, repository.ErrUnauthenticated)

	_, err = f.svc.VerifyRefreshToken(ctx, rotated.Refresh)
	assert.NoError(t, err)
}

func TestLogoutRevokesImmediately(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	u := f.register(t, "a@b.c", "hunter2")
	pair := f.login(t, "a@b.c", "hunter2", "cli/1.0")

	require.NoError(t, f.svc.Logout(ctx, pair.Access, pair.Refresh, "cli/1.0"))

	// Both tokens fail verification even though they have not expired.
	_, err := f.svc.VerifyAccessToken(ctx, pair.Access)
	assert.ErrorIs(t, err, repository.ErrUnauthenticated)
	_, err = f.svc.VerifyRefreshToken(ctx, pair.Refresh)
	assert.ErrorIs(t, err, repository.ErrUnauthenticated)

	active, err := f.entries.ListActiveByUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestLogoutWithoutRefreshTokenFallsBackToDevice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	u := f.register(t, "a@b.c", "hunter2")
	pair := f.login(t, "a@b.c", "hunter2", "cli/1.0")

	require.NoError(t, f.svc.Logout(ctx, pair.Access, "", "cli/1.0"))

	_, err := f.svc.VerifyRefreshToken(ctx, pair.Refresh)
	assert.ErrorIs(t, err, repository.ErrUnauthenticated)
	active, err := f.entries.ListActiveByUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestLogoutAllClosesEverySession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	u := f.register(t, "a@b.c", "hunter2")
	first := f.login(t, "a@b.c", "hunter2", "cli/1.0")
	second := f.login(t, "a@b.c", "hunter2", "web/2.0")

	require.NoError(t, f.svc.LogoutAll(ctx, second.Access))

	for _, refresh := range []string{first.Refresh, second.Refresh} {
		_, err := f.svc.VerifyRefreshToken(ctx, refresh)
		assert.ErrorIs(t, err, repository.ErrUnauthenticated)
	}
	active, err := f.entries.ListActiveByUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestVerifyAccessTokenGate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.VerifyAccessToken(ctx, "")
	assert.ErrorIs(t, err, repository.ErrUnauthenticated)

	_, err = f.svc.VerifyAccessToken(ctx, "garbage")
	assert.ErrorIs(t, err, repository.ErrUnauthenticated)

	// Expired but correctly signed.
	expiredCodec := token.NewCodec("access-secret", "refresh-secret", -time.Minute, -time.Minute)
	expired, err := expiredCodec.IssueAccess(1, "a@b.c", nil)
	require.NoError(t, err)
	_, err = f.svc.VerifyAccessToken(ctx, expired)
	assert.ErrorIs(t, err, repository.ErrUnauthenticated)
}

func TestVerifyRefreshTokenRequiresActiveSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.register(t, "a@b.c", "hunter2")
	pair := f.login(t, "a@b.c", "hunter2", "cli/1.0")

	payload, err := f.svc.VerifyRefreshToken(ctx, pair.Refresh)
	require.NoError(t, err)

	// Closing the entry alone (without touching the denylist) must
	// still invalidate the refresh token.
	require.NoError(t, f.entries.Close(ctx, payload.SessionID))
	_, err = f.svc.VerifyRefreshToken(ctx, pair.Refresh)
	assert.ErrorIs(t, err, repository.ErrUnauthenticated)
}

func TestVerifyRefreshTokenRejectsAccessToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.register(t, "a@b.c", "hunter2")
	pair := f.login(t, "a@b.c", "hunter2", "cli/1.0")

	_, err := f.svc.VerifyRefreshToken(ctx, pair.Access)
	assert.ErrorIs(t, err, repository.ErrUnauthenticated)
	_, err = f.svc.VerifyAccessToken(ctx, pair.Refresh)
	assert.ErrorIs(t, err, repository.ErrUnauthenticated)
}

func TestUpdateUserPassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	u := f.register(t, "a@b.c", "hunter2")
	cli := f.login(t, "a@b.c", "hunter2", "cli/1.0")
	web := f.login(t, "a@b.c", "hunter2", "web/2.0")

	// Wrong old password: rejected, hash untouched.
	before := f.users.hash(u.ID)
	err := f.svc.UpdateUserPassword(ctx, cli.Access, cli.Refresh, "wrong", "newpass", "cli/1.0")
	assert.ErrorIs(t, err, repository.ErrForbidden)
	assert.Equal(t, before, f.users.hash(u.ID))

	// Reusing the old password is rejected too.
	err = f.svc.UpdateUserPassword(ctx, cli.Access, cli.Refresh, "hunter2", "hunter2", "cli/1.0")
	assert.ErrorIs(t, err, repository.ErrForbidden)

	require.NoError(t, f.svc.UpdateUserPassword(ctx, cli.Access, cli.Refresh, "hunter2", "newpass", "cli/1.0"))
	assert.True(t, utils.VerifyPassword(f.users.hash(u.ID), "newpass"))

	// The changing device is logged out; the other session survives.
	_, err = f.svc.VerifyAccessToken(ctx, cli.Access)
	assert.ErrorIs(t, err, repository.ErrUnauthenticated)
	_, err = f.svc.VerifyRefreshToken(ctx, web.Refresh)
	assert.NoError(t, err)

	f.login(t, "a@b.c", "newpass", "cli/1.0")
}

func TestUpdateUserPasswordWithoutRefreshClosesDevice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	u := f.register(t, "a@b.c", "hunter2")
	cli := f.login(t, "a@b.c", "hunter2", "cli/1.0")
	web := f.login(t, "a@b.c", "hunter2", "web/2.0")

	// No refresh token in hand: the user agent alone must be enough to
	// close the calling device's session.
	require.NoError(t, f.svc.UpdateUserPassword(ctx, cli.Access, "", "hunter2", "newpass", "cli/1.0"))

	_, err := f.svc.VerifyRefreshToken(ctx, cli.Refresh)
	assert.ErrorIs(t, err, repository.ErrUnauthenticated)
	_, err = f.svc.VerifyRefreshToken(ctx, web.Refresh)
	assert.NoError(t, err)

	active, err := f.entries.ListActiveByUser(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "web/2.0", active[0].UserAgent)
}

func TestDeactivateUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	u := f.register(t, "a@b.c", "hunter2")
	cli := f.login(t, "a@b.c", "hunter2", "cli/1.0")
	f.login(t, "a@b.c", "hunter2", "web/2.0")

	require.NoError(t, f.svc.DeactivateUser(ctx, cli.Access))

	active, err := f.entries.ListActiveByUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, active)

	_, err = f.svc.Login(ctx, "a@b.c", "hunter2", "cli/1.0")
	assert.ErrorIs(t, err, repository.ErrForbidden)
}

func TestGetUserRolesReadsStorage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	u := f.register(t, "a@b.c", "hunter2")
	pair := f.login(t, "a@b.c", "hunter2", "cli/1.0")

	roles, err := f.svc.GetUserRoles(ctx, pair.Access)
	require.NoError(t, err)
	assert.Equal(t, []string{DefaultRoleName}, roles)

	// Role changes are visible without re-issuing the token.
	f.roles.grant(u.ID, "admin")
	roles, err = f.svc.GetUserRoles(ctx, pair.Access)
	require.NoError(t, err)
	assert.Equal(t, []string{"admin"}, roles)
}

func TestEntryHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.register(t, "a@b.c", "hunter2")
	f.login(t, "a@b.c", "hunter2", "cli/1.0")
	f.login(t, "a@b.c", "hunter2", "cli/1.0")
	pair := f.login(t, "a@b.c", "hunter2", "cli/1.0")

	all, err := f.svc.EntryHistory(ctx, pair.Access, false, false, 10, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	// unique collapses to one closed and one active row per device.
	unique, err := f.svc.EntryHistory(ctx, pair.Access, true, false, 10, 0)
	require.NoError(t, err)
	assert.Len(t, unique, 2)

	active, err := f.svc.EntryHistory(ctx, pair.Access, false, true, 10, 0)
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

func TestUpdateUserData(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.register(t, "a@b.c", "hunter2")
	pair := f.login(t, "a@b.c", "hunter2", "cli/1.0")

	email := "new@b.c"
	u, err := f.svc.UpdateUserData(ctx, pair.Access, repository.UserPatch{Email: &email})
	require.NoError(t, err)
	assert.Equal(t, "new@b.c", u.Email)

	got, err := f.svc.GetUserData(ctx, pair.Access)
	require.NoError(t, err)
	assert.Equal(t, "new@b.c", got.Email)
}

func TestRevokedTokenTTLMatchesRemainingLifetime(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.register(t, "a@b.c", "hunter2")
	pair := f.login(t, "a@b.c", "hunter2", "cli/1.0")
	require.NoError(t, f.svc.Logout(ctx, pair.Access, pair.Refresh, "cli/1.0"))

	// Denylist entries only need to outlive the tokens themselves.
	f.revoked.mu.Lock()
	defer f.revoked.mu.Unlock()
	assert.InDelta(t, float64(15*time.Minute), float64(f.revoked.ttls[pair.Access]), float64(time.Minute))
	assert.InDelta(t, float64(24*time.Hour), float64(f.revoked.ttls[pair.Refresh]), float64(time.Minute))
}
