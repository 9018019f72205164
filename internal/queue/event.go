// Package queue defines message payloads exchanged over the message broker.
package queue

// Event types published onto the auth.events queue.
const (
	EventUserRegistered = "user.registered"
	EventSessionClosed  = "session.closed"
)

// AuthEvent is published whenever the auth flow registers a user or
// closes a session.  It carries enough information for downstream
// consumers to audit logins without querying the primary database.
type AuthEvent struct {
	Type      string `json:"type"`
	UserID    uint64 `json:"user_id"`
	Email     string `json:"email,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
	At        string `json:"at"` // RFC 3339 UTC
}
