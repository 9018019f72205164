package model

import "time"

// Entry models a row of the `entries` table: one login session per
// user and device (user agent).  A row is created together with its
// refresh token at login or refresh, and logically closed
// (IsActive=false) at logout, refresh rotation or password change.
// Closed rows are retained as login history.
//
// The intended invariant is at most one active entry per
// (user_id, user_agent) pair; a new login for an already-active agent
// closes the prior entry first.
type Entry struct {
	ID           uint64    // entries.id
	UserID       uint64    // entries.user_id
	UserAgent    string    // entries.user_agent
	RefreshToken *string   // entries.refresh_token (written in the same transaction that creates the row)
	IsActive     bool      // entries.is_active
	CreatedAt    time.Time // entries.created_at
}
