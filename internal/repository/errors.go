// Package repository defines error types that are reused across multiple
// repositories and by the auth service. These sentinel values allow
// higher layers such as handlers to distinguish between different
// failure scenarios without inspecting store-specific errors. For
// example, ErrForbidden indicates that the current user is not
// authorized to perform an operation on a resource owned by someone
// else, while ErrConflict signals a uniqueness violation such as a
// duplicate email or role name.
package repository

import "errors"

// ErrNotFound is returned when a requested user, role, session entry or
// business record does not exist (or has been soft-deleted). Handlers
// should translate this into an HTTP 404 response.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when an insert or update cannot proceed
// because of conflicting state, such as registering an email that
// already exists or creating a role with a taken name. Handlers should
// translate this into an HTTP 409 response.
var ErrConflict = errors.New("conflict")

// ErrForbidden is returned when the caller attempts an operation on a
// resource they do not own, presents bad credentials, or reuses the
// previous password on a password change. Handlers should translate
// this into an HTTP 403 response.
var ErrForbidden = errors.New("forbidden")

// ErrUnauthenticated is returned by the token verification gate when a
// token is missing, malformed, revoked or expired. Handlers should
// translate this into an HTTP 401 response.
var ErrUnauthenticated = errors.New("unauthenticated")

// ErrInternal wraps store or codec failures that survive the retry
// policy. No raw driver error escapes the repository layer without
// being wrapped in one of the sentinels above.
var ErrInternal = errors.New("internal error")
