package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/avdeevk/job-board/internal/model"
)

// EntryRepo persists login sessions ("entries") in the `entries` table.
// Closing a session flips is_active to false; rows are kept as login
// history and never hard-deleted here.
type EntryRepo struct{ DB *sql.DB }

func NewEntryRepo(db *sql.DB) *EntryRepo { return &EntryRepo{DB: db} }

const entryColumns = "id,user_id,user_agent,refresh_token,is_active,created_at"

// Open creates an active entry and stores its refresh token in one
// transaction.  The token must embed the entry id, so it cannot exist
// before the row does: the issue callback is invoked with the freshly
// inserted id and its result is written back before commit.  If the
// callback fails the insert is rolled back and its error returned
// unchanged, leaving no token-less orphan row behind.
func (r *EntryRepo) Open(ctx context.Context, userID uint64, userAgent string, issue func(entryID uint64) (string, error)) (*model.Entry, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: open entry: %v", ErrInternal, err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		"INSERT INTO entries (user_id, user_agent) VALUES (?,?)", userID, userAgent)
	if err != nil {
		return nil, fmt.Errorf("%w: open entry: %v", ErrInternal, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("%w: open entry: %v", ErrInternal, err)
	}
	token, err := issue(uint64(id))
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE entries SET refresh_token=? WHERE id=?", token, id); err != nil {
		return nil, fmt.Errorf("%w: open entry: %v", ErrInternal, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: open entry: %v", ErrInternal, err)
	}
	return r.GetByID(ctx, uint64(id))
}

// Close logically closes an entry.  Closing an already-closed entry is
// a no-op, which makes the call idempotent.
func (r *EntryRepo) Close(ctx context.Context, entryID uint64) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE entries SET is_active=0 WHERE id=?", entryID)
	if err != nil {
		return fmt.Errorf("%w: close entry: %v", ErrInternal, err)
	}
	return nil
}

// GetActiveByUserAgent returns the active entry for a (user, user agent)
// pair, or ErrNotFound when the device has no open session.  Used at
// login to preempt a stale session for the same device.
func (r *EntryRepo) GetActiveByUserAgent(ctx context.Context, userID uint64, userAgent string) (*model.Entry, error) {
	return scanEntry(r.DB.QueryRowContext(ctx,
		"SELECT "+entryColumns+" FROM entries WHERE user_id=? AND user_agent=? AND is_active=1 ORDER BY id DESC LIMIT 1",
		userID, userAgent))
}

// ListActiveByUser returns every open session of a user.  Used by
// logout-all and deactivation.
func (r *EntryRepo) ListActiveByUser(ctx context.Context, userID uint64) ([]model.Entry, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+entryColumns+" FROM entries WHERE user_id=? AND is_active=1 ORDER BY id", userID)
	if err != nil {
		return nil, fmt.Errorf("%w: active entries: %v", ErrInternal, err)
	}
	return collectEntries(rows)
}

// ListByUser returns the (paginated) login history of a user.  With
// uniqueByAgent each (user_agent, is_active) pair appears once, keeping
// the most recent row; activeOnly filters out closed sessions.
func (r *EntryRepo) ListByUser(ctx context.Context, userID uint64, uniqueByAgent, activeOnly bool, limit, offset int) ([]model.Entry, error) {
	q := "SELECT " + entryColumns + " FROM entries WHERE user_id=?"
	if activeOnly {
		q += " AND is_active=1"
	}
	if uniqueByAgent {
		// Keep the newest entry per (user_agent, is_active) pair.
		q = `SELECT ` + entryColumns + ` FROM entries WHERE id IN (
			SELECT MAX(id) FROM entries WHERE user_id=?`
		if activeOnly {
			q += " AND is_active=1"
		}
		q += " GROUP BY user_agent, is_active)"
	}
	q += " ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?"

	rows, err := r.DB.QueryContext(ctx, q, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%w: list entries: %v", ErrInternal, err)
	}
	return collectEntries(rows)
}

func (r *EntryRepo) GetByID(ctx context.Context, id uint64) (*model.Entry, error) {
	return scanEntry(r.DB.QueryRowContext(ctx,
		"SELECT "+entryColumns+" FROM entries WHERE id=? LIMIT 1", id))
}

func scanEntry(row *sql.Row) (*model.Entry, error) {
	var (
		e     model.Entry
		token sql.NullString
	)
	err := row.Scan(&e.ID, &e.UserID, &e.UserAgent, &token, &e.IsActive, &e.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: query entry: %v", ErrInternal, err)
	}
	if token.Valid {
		t := token.String
		e.RefreshToken = &t
	}
	return &e, nil
}

func collectEntries(rows *sql.Rows) ([]model.Entry, error) {
	defer rows.Close()
	var out []model.Entry
	for rows.Next() {
		var (
			e     model.Entry
			token sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.UserID, &e.UserAgent, &token, &e.IsActive, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: scan entry: %v", ErrInternal, err)
		}
		if token.Valid {
			t := token.String
			e.RefreshToken = &t
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate entries: %v", ErrInternal, err)
	}
	return out, nil
}
