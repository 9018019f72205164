package model

import "time"

// User represents an application user record as stored in the `users`
// table.  Accounts are soft-deleted: deactivation flips IsActive to
// false and the row is never physically removed.  The json tags are
// omitted here because these structs are used internally by the
// repository layer; handlers define separate response types with
// appropriate JSON tags.
//
// Fields:
//
//	ID           – primary key identifier of the user.
//	Email        – unique email address (stored lower-cased).
//	PasswordHash – bcrypt hashed password.
//	IsActive     – whether the account is active (false = soft-deleted).
//	CreatedAt    – timestamp of creation.
//	UpdatedAt    – timestamp of last update.
type User struct {
	ID           uint64    // users.id
	Email        string    // users.email
	PasswordHash string    // users.password_hash
	IsActive     bool      // users.is_active
	CreatedAt    time.Time // users.created_at
	UpdatedAt    time.Time // users.updated_at
}

// Role represents a row in the `roles` table.  Users reference roles
// through the user_roles join table; a user may hold several roles.
type Role struct {
	ID   uint64 // roles.id
	Name string // roles.name (unique, e.g. "user", "hr", "admin")
}

// UserRole is a row of the `user_roles` join table.  Rows cascade on
// delete of either parent so orphaned links cannot survive.
type UserRole struct {
	ID     uint64 // user_roles.id
	UserID uint64 // user_roles.user_id
	RoleID uint64 // user_roles.role_id
}
