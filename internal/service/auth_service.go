// Package service contains the authentication core: dual-token
// issuance, the verification gate, per-device session tracking and the
// coordinated logout/refresh/password-change flows that keep the
// relational session table and the Redis denylist consistent.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/avdeevk/job-board/internal/model"
	"github.com/avdeevk/job-board/internal/repository"
	"github.com/avdeevk/job-board/internal/token"
	"github.com/avdeevk/job-board/internal/utils"
)

// DefaultRoleName is carried in token claims for users that hold no
// explicit role rows.
const DefaultRoleName = "user"

// UserStore is the slice of the user repository the auth core consumes.
type UserStore interface {
	Create(ctx context.Context, email, passwordHash string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByID(ctx context.Context, id uint64) (*model.User, error)
	Update(ctx context.Context, id uint64, patch repository.UserPatch) (*model.User, error)
	UpdatePassword(ctx context.Context, id uint64, passwordHash string) error
	Deactivate(ctx context.Context, id uint64) error
}

// RoleStore resolves the roles a user holds; role names end up in token
// claims.
type RoleStore interface {
	GetByUserID(ctx context.Context, userID uint64) ([]model.Role, error)
}

// EntryStore is the session table contract.  See repository.EntryRepo
// for the concrete MySQL implementation.
type EntryStore interface {
	Open(ctx context.Context, userID uint64, userAgent string, issue func(entryID uint64) (string, error)) (*model.Entry, error)
	Close(ctx context.Context, entryID uint64) error
	GetByID(ctx context.Context, entryID uint64) (*model.Entry, error)
	GetActiveByUserAgent(ctx context.Context, userID uint64, userAgent string) (*model.Entry, error)
	ListActiveByUser(ctx context.Context, userID uint64) ([]model.Entry, error)
	ListByUser(ctx context.Context, userID uint64, uniqueByAgent, activeOnly bool, limit, offset int) ([]model.Entry, error)
}

// TokenPair is what login and refresh hand back to the HTTP layer.
type TokenPair struct {
	Access  string
	Refresh string
}

// AuthService orchestrates registration, login, refresh, logout and the
// account mutations that touch sessions.  It is constructed with
// injected stores; it holds no state of its own beyond configuration.
type AuthService struct {
	users      UserStore
	roles      RoleStore
	entries    EntryStore
	revoked    repository.TokenStore
	codec      *token.Codec
	bcryptCost int
}

func NewAuthService(users UserStore, roles RoleStore, entries EntryStore, revoked repository.TokenStore, codec *token.Codec, bcryptCost int) *AuthService {
	return &AuthService{
		users:      users,
		roles:      roles,
		entries:    entries,
		revoked:    revoked,
		codec:      codec,
		bcryptCost: bcryptCost,
	}
}

// Register creates a new user with a freshly hashed password.  A taken
// email maps to ErrConflict.  Sessions are not touched.
func (s *AuthService) Register(ctx context.Context, email, password string) (*model.User, error) {
	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, fmt.Errorf("%w: email already exists", repository.ErrConflict)
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	hash, err := utils.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("%w: hash password: %v", repository.ErrInternal, err)
	}
	// The unique index still backstops the read-then-create race.
	return s.users.Create(ctx, email, hash)
}

// Login verifies credentials and opens a new session for the device.
// If the device already has an active session it is closed first
// (revoke, then close) so at most one active entry per
// (user, user agent) pair survives.  Best effort: two concurrent logins
// for the same device may both pass the lookup; no lock is taken.
func (s *AuthService) Login(ctx context.Context, email, password, userAgent string) (TokenPair, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return TokenPair{}, fmt.Errorf("%w: invalid email or password", repository.ErrForbidden)
	}
	if err != nil {
		return TokenPair{}, err
	}
	if !utils.VerifyPassword(user.PasswordHash, password) {
		return TokenPair{}, fmt.Errorf("%w: invalid email or password", repository.ErrForbidden)
	}
	if !user.IsActive {
		return TokenPair{}, fmt.Errorf("%w: account is not active", repository.ErrForbidden)
	}

	stale, err := s.entries.GetActiveByUserAgent(ctx, user.ID, userAgent)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return TokenPair{}, err
	}
	if stale != nil {
		if err := s.closeEntry(ctx, stale); err != nil {
			return TokenPair{}, err
		}
	}

	return s.openSession(ctx, user, userAgent)
}

// RefreshTokens rotates a refresh token: the presented token is
// revoked, its session closed, and a brand new session opened for the
// device.  Refresh tokens are single-use.
func (s *AuthService) RefreshTokens(ctx context.Context, refreshToken, userAgent string) (TokenPair, error) {
	payload, err := s.VerifyRefreshToken(ctx, refreshToken)
	if err != nil {
		return TokenPair{}, err
	}
	if err := s.closeByRefreshToken(ctx, refreshToken, payload); err != nil {
		return TokenPair{}, err
	}
	user, err := s.users.GetByID(ctx, payload.UserID())
	if errors.Is(err, repository.ErrNotFound) {
		return TokenPair{}, fmt.Errorf("%w: account no longer active", repository.ErrUnauthenticated)
	}
	if err != nil {
		return TokenPair{}, err
	}
	return s.openSession(ctx, user, userAgent)
}

// Logout revokes the presented access token and closes the session tied
// to the refresh token.  When no refresh token is supplied the active
// entry for the device is located and closed through its stored token.
// Revocation happens before the close, never the other way around.
func (s *AuthService) Logout(ctx context.Context, accessToken, refreshToken, userAgent string) error {
	payload, err := s.codec.DecodeAccess(accessToken)
	if err != nil {
		return fmt.Errorf("%w: invalid access token", repository.ErrUnauthenticated)
	}
	if err := s.revoked.Put(ctx, accessToken, payload.UserID(), payload.TTL()); err != nil {
		return err
	}

	if refreshToken == "" {
		entry, err := s.entries.GetActiveByUserAgent(ctx, payload.UserID(), userAgent)
		if errors.Is(err, repository.ErrNotFound) {
			return nil // nothing left to close for this device
		}
		if err != nil {
			return err
		}
		return s.closeEntry(ctx, entry)
	}

	refreshPayload, err := s.codec.DecodeRefresh(refreshToken)
	if err != nil {
		return fmt.Errorf("%w: invalid refresh token", repository.ErrUnauthenticated)
	}
	return s.closeByRefreshToken(ctx, refreshToken, refreshPayload)
}

// LogoutAll revokes the access token and closes every active session of
// the subject.
func (s *AuthService) LogoutAll(ctx context.Context, accessToken string) error {
	payload, err := s.codec.DecodeAccess(accessToken)
	if err != nil {
		return fmt.Errorf("%w: invalid access token", repository.ErrUnauthenticated)
	}
	if err := s.revoked.Put(ctx, accessToken, payload.UserID(), payload.TTL()); err != nil {
		return err
	}
	active, err := s.entries.ListActiveByUser(ctx, payload.UserID())
	if err != nil {
		return err
	}
	for i := range active {
		if err := s.closeEntry(ctx, &active[i]); err != nil {
			return err
		}
	}
	return nil
}

// VerifyAccessToken is the boundary gate for authenticated calls:
// missing, malformed, revoked and expired tokens all fail with
// ErrUnauthenticated, in that order of checks.
func (s *AuthService) VerifyAccessToken(ctx context.Context, raw string) (*token.Payload, error) {
	return s.verify(ctx, raw, s.codec.DecodeAccess, false)
}

// VerifyRefreshToken applies the same gate with the refresh secret and
// additionally requires the session named by the token to still be
// active.
func (s *AuthService) VerifyRefreshToken(ctx context.Context, raw string) (*token.Payload, error) {
	return s.verify(ctx, raw, s.codec.DecodeRefresh, true)
}

func (s *AuthService) verify(ctx context.Context, raw string, decode func(string) (*token.Payload, error), checkSession bool) (*token.Payload, error) {
	if raw == "" {
		return nil, fmt.Errorf("%w: missing token", repository.ErrUnauthenticated)
	}
	payload, err := decode(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid token", repository.ErrUnauthenticated)
	}
	revoked, err := s.revoked.Contains(ctx, raw)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, fmt.Errorf("%w: token revoked", repository.ErrUnauthenticated)
	}
	if payload.Expired() {
		return nil, fmt.Errorf("%w: token expired", repository.ErrUnauthenticated)
	}
	if checkSession {
		entry, err := s.entries.GetByID(ctx, payload.SessionID)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: session not found", repository.ErrUnauthenticated)
		}
		if err != nil {
			return nil, err
		}
		if !entry.IsActive {
			return nil, fmt.Errorf("%w: session closed", repository.ErrUnauthenticated)
		}
	}
	return payload, nil
}

// GetUserData returns the current user record for an access token.
func (s *AuthService) GetUserData(ctx context.Context, accessToken string) (*model.User, error) {
	payload, err := s.codec.DecodeAccess(accessToken)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid access token", repository.ErrUnauthenticated)
	}
	return s.users.GetByID(ctx, payload.UserID())
}

// GetUserRoles returns the current role names of the token's subject,
// re-read from storage rather than trusted from the claims.
func (s *AuthService) GetUserRoles(ctx context.Context, accessToken string) ([]string, error) {
	payload, err := s.codec.DecodeAccess(accessToken)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid access token", repository.ErrUnauthenticated)
	}
	return s.roleNames(ctx, payload.UserID())
}

// EntryHistory returns the paginated login history of the subject.
// unique deduplicates rows by (user agent, active) pair.
func (s *AuthService) EntryHistory(ctx context.Context, accessToken string, unique, activeOnly bool, limit, offset int) ([]model.Entry, error) {
	payload, err := s.codec.DecodeAccess(accessToken)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid access token", repository.ErrUnauthenticated)
	}
	return s.entries.ListByUser(ctx, payload.UserID(), unique, activeOnly, limit, offset)
}

// UpdateUserData applies a partial update to the subject's user row and
// returns the refreshed record.  Sessions are not touched.
func (s *AuthService) UpdateUserData(ctx context.Context, accessToken string, patch repository.UserPatch) (*model.User, error) {
	payload, err := s.codec.DecodeAccess(accessToken)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid access token", repository.ErrUnauthenticated)
	}
	return s.users.Update(ctx, payload.UserID(), patch)
}

// UpdateUserPassword verifies the old password, stores the new hash and
// then logs the current session out, forcing re-authentication on this
// device.  Other sessions stay open, mirroring Logout's scope.  The
// user agent lets Logout locate the device's entry when no refresh
// token accompanies the call.
func (s *AuthService) UpdateUserPassword(ctx context.Context, accessToken, refreshToken, oldPassword, newPassword, userAgent string) error {
	payload, err := s.codec.DecodeAccess(accessToken)
	if err != nil {
		return fmt.Errorf("%w: invalid access token", repository.ErrUnauthenticated)
	}
	user, err := s.users.GetByID(ctx, payload.UserID())
	if err != nil {
		return err
	}
	if !utils.VerifyPassword(user.PasswordHash, oldPassword) {
		return fmt.Errorf("%w: old password does not match", repository.ErrForbidden)
	}
	if newPassword == oldPassword {
		return fmt.Errorf("%w: new password must differ from the old one", repository.ErrForbidden)
	}
	hash, err := utils.HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return fmt.Errorf("%w: hash password: %v", repository.ErrInternal, err)
	}
	if err := s.users.UpdatePassword(ctx, user.ID, hash); err != nil {
		return err
	}
	return s.Logout(ctx, accessToken, refreshToken, userAgent)
}

// DeactivateUser closes every session of the subject and soft-deletes
// the account.  The active→inactive transition is one-way; dependent
// sessions are invalidated here explicitly, not by a database trigger.
func (s *AuthService) DeactivateUser(ctx context.Context, accessToken string) error {
	payload, err := s.codec.DecodeAccess(accessToken)
	if err != nil {
		return fmt.Errorf("%w: invalid access token", repository.ErrUnauthenticated)
	}
	if err := s.LogoutAll(ctx, accessToken); err != nil {
		return err
	}
	return s.users.Deactivate(ctx, payload.UserID())
}

// openSession issues the access token up front, then opens the session
// row and its refresh token atomically through EntryStore.Open: the
// refresh token is minted inside the store's transaction once the entry
// id is known, so a failure anywhere leaves neither an orphan entry nor
// a live token pointing at a missing session.
func (s *AuthService) openSession(ctx context.Context, user *model.User, userAgent string) (TokenPair, error) {
	roles, err := s.roleNames(ctx, user.ID)
	if err != nil {
		return TokenPair{}, err
	}
	access, err := s.codec.IssueAccess(user.ID, user.Email, roles)
	if err != nil {
		return TokenPair{}, fmt.Errorf("%w: issue access token: %v", repository.ErrInternal, err)
	}
	var refresh string
	_, err = s.entries.Open(ctx, user.ID, userAgent, func(entryID uint64) (string, error) {
		r, err := s.codec.IssueRefresh(user.ID, user.Email, roles, entryID)
		if err != nil {
			return "", fmt.Errorf("%w: issue refresh token: %v", repository.ErrInternal, err)
		}
		refresh = r
		return r, nil
	})
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{Access: access, Refresh: refresh}, nil
}

// closeByRefreshToken revokes a refresh token into the denylist with
// its remaining lifetime, then closes the session it names.
func (s *AuthService) closeByRefreshToken(ctx context.Context, raw string, payload *token.Payload) error {
	if err := s.revoked.Put(ctx, raw, payload.UserID(), payload.TTL()); err != nil {
		return err
	}
	return s.entries.Close(ctx, payload.SessionID)
}

// closeEntry closes a session through its stored refresh token.  An
// entry that never received its token (patch failed mid-login) is just
// closed; there is no token to revoke.
func (s *AuthService) closeEntry(ctx context.Context, entry *model.Entry) error {
	if entry.RefreshToken != nil {
		if payload, err := s.codec.DecodeRefresh(*entry.RefreshToken); err == nil {
			return s.closeByRefreshToken(ctx, *entry.RefreshToken, payload)
		}
	}
	return s.entries.Close(ctx, entry.ID)
}

// roleNames resolves a user's role names for token claims, falling back
// to the default role for users with no explicit assignment.
func (s *AuthService) roleNames(ctx context.Context, userID uint64) ([]string, error) {
	roles, err := s.roles.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(roles) == 0 {
		return []string{DefaultRoleName}, nil
	}
	names := make([]string, 0, len(roles))
	for _, r := range roles {
		names = append(names, r.Name)
	}
	return names, nil
}
