// Package token implements the dual-token JWT codec: short-lived access
// tokens and long-lived refresh tokens, signed with two independent
// HS256 secrets.  A refresh token additionally carries the id of the
// session entry it was issued for, which links it back to the entries
// table.
package token

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrDecode is returned when a token's signature does not verify or its
// payload is malformed.  Expiry is NOT part of decoding: the
// verification gate checks it separately so an expired token can still
// be decoded and revoked during logout.
var ErrDecode = errors.New("token decode failed")

// Payload is the claim set carried by both token kinds.  SessionID is
// zero for access tokens.
type Payload struct {
	Email     string   `json:"email"`
	Roles     []string `json:"role"`
	SessionID uint64   `json:"session_id,omitempty"`
	jwt.RegisteredClaims
}

// UserID parses the subject claim back into a user id.  Returns zero
// for a malformed subject.
func (p *Payload) UserID() uint64 {
	id, err := strconv.ParseUint(p.Subject, 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// Expired reports whether the payload's expiry lies in the past.
func (p *Payload) Expired() bool {
	if p.ExpiresAt == nil {
		return true
	}
	return p.ExpiresAt.Time.Before(time.Now().UTC())
}

// TTL returns the token's remaining lifetime, floored at zero.  Used as
// the denylist entry TTL when the token is revoked early.
func (p *Payload) TTL() time.Duration {
	if p.ExpiresAt == nil {
		return 0
	}
	left := time.Until(p.ExpiresAt.Time)
	if left < 0 {
		return 0
	}
	return left
}

// Codec signs and verifies both token kinds.  The two secrets must
// never be shared between kinds: an access token presented as a refresh
// token (or vice versa) has to fail signature verification.
type Codec struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

func NewCodec(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) *Codec {
	return &Codec{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
	}
}

// IssueAccess signs an access token for a user with the given role
// names.  Claims: {sub, email, role, exp, iat}.
func (c *Codec) IssueAccess(userID uint64, email string, roles []string) (string, error) {
	return c.sign(c.accessSecret, c.accessTTL, userID, email, roles, 0)
}

// IssueRefresh signs a refresh token.  It carries the same claims as an
// access token plus the session entry id it belongs to.
func (c *Codec) IssueRefresh(userID uint64, email string, roles []string, sessionID uint64) (string, error) {
	return c.sign(c.refreshSecret, c.refreshTTL, userID, email, roles, sessionID)
}

// DecodeAccess verifies the access signature and returns the payload.
func (c *Codec) DecodeAccess(raw string) (*Payload, error) {
	return decode(raw, c.accessSecret)
}

// DecodeRefresh verifies the refresh signature and returns the payload.
func (c *Codec) DecodeRefresh(raw string) (*Payload, error) {
	return decode(raw, c.refreshSecret)
}

func (c *Codec) sign(secret []byte, ttl time.Duration, userID uint64, email string, roles []string, sessionID uint64) (string, error) {
	now := time.Now().UTC()
	payload := Payload{
		Email:     email,
		Roles:     roles,
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(userID, 10),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &payload).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// decode verifies the signature with the given secret and unpacks the
// payload.  Claim validation (including exp) is disabled on purpose;
// see ErrDecode.
func decode(raw string, secret []byte) (*Payload, error) {
	var payload Payload
	tok, err := jwt.ParseWithClaims(raw, &payload, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return secret, nil
	}, jwt.WithoutClaimsValidation())
	if err != nil || !tok.Valid {
		return nil, ErrDecode
	}
	if payload.Subject == "" || payload.UserID() == 0 {
		return nil, ErrDecode
	}
	return &payload, nil
}
