package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/avdeevk/job-board/internal/model"
)

// UserRepo provides CRUD over the `users` table.  All reads filter out
// soft-deleted rows unless noted otherwise; Deactivate flips the
// is_active flag instead of removing the row.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

// UserPatch carries the optional fields of a partial user update.  Nil
// pointers leave the corresponding column untouched.
type UserPatch struct {
	Email *string
}

// Create inserts a user with an already-hashed password and returns the
// stored record.  A duplicate email maps to ErrConflict.
func (r *UserRepo) Create(ctx context.Context, email, passwordHash string) (*model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (email, password_hash) VALUES (?,?)",
		email, passwordHash)
	if err != nil {
		if isDuplicate(err) {
			return nil, fmt.Errorf("%w: email already exists", ErrConflict)
		}
		return nil, fmt.Errorf("%w: create user: %v", ErrInternal, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("%w: create user: %v", ErrInternal, err)
	}
	return r.GetByID(ctx, uint64(id))
}

// GetByEmail fetches an active user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return r.scanOne(r.DB.QueryRowContext(ctx,
		"SELECT id,email,password_hash,is_active,created_at,updated_at FROM users WHERE email=? AND is_active=1 LIMIT 1",
		email))
}

// GetByID fetches an active user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (*model.User, error) {
	return r.scanOne(r.DB.QueryRowContext(ctx,
		"SELECT id,email,password_hash,is_active,created_at,updated_at FROM users WHERE id=? AND is_active=1 LIMIT 1",
		id))
}

// Update applies a partial update and returns the refreshed record.
// An empty patch is a no-op read.
func (r *UserRepo) Update(ctx context.Context, id uint64, patch UserPatch) (*model.User, error) {
	if patch.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*patch.Email))
		if _, err := r.DB.ExecContext(ctx,
			"UPDATE users SET email=? WHERE id=? AND is_active=1", email, id); err != nil {
			if isDuplicate(err) {
				return nil, fmt.Errorf("%w: email already exists", ErrConflict)
			}
			return nil, fmt.Errorf("%w: update user: %v", ErrInternal, err)
		}
	}
	return r.GetByID(ctx, id)
}

// UpdatePassword replaces the stored password hash.
func (r *UserRepo) UpdatePassword(ctx context.Context, id uint64, passwordHash string) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET password_hash=? WHERE id=? AND is_active=1", passwordHash, id)
	if err != nil {
		return fmt.Errorf("%w: update password: %v", ErrInternal, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Deactivate soft-deletes a user.  The transition is one-way: there is
// no corresponding reactivation query.
func (r *UserRepo) Deactivate(ctx context.Context, id uint64) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET is_active=0 WHERE id=? AND is_active=1", id)
	if err != nil {
		return fmt.Errorf("%w: deactivate user: %v", ErrInternal, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *UserRepo) scanOne(row *sql.Row) (*model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: query user: %v", ErrInternal, err)
	}
	return &u, nil
}

// isDuplicate reports whether err is a MySQL duplicate-key violation
// (error 1062).
func isDuplicate(err error) bool {
	return err != nil && strings.Contains(err.Error(), "1062")
}
