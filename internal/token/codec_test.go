package token

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCodec() *Codec {
	return NewCodec("access-secret", "refresh-secret", 15*time.Minute, 24*time.Hour)
}

func TestAccessTokenRoundTrip(t *testing.T) {
	c := newTestCodec()

	raw, err := c.IssueAccess(42, "user@example.com", []string{"user"})
	require.NoError(t, err)

	p, err := c.DecodeAccess(raw)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), p.UserID())
	assert.Equal(t, "user@example.com", p.Email)
	assert.Equal(t, []string{"user"}, p.Roles)
	assert.Zero(t, p.SessionID)
	assert.False(t, p.Expired())
	assert.Greater(t, p.TTL(), time.Duration(0))
}

func TestRefreshTokenCarriesSessionID(t *testing.T) {
	c := newTestCodec()

	raw, err := c.IssueRefresh(42, "user@example.com", []string{"user"}, 7)
	require.NoError(t, err)

	p, err := c.DecodeRefresh(raw)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), p.SessionID)
	assert.Equal(t, uint64(42), p.UserID())
}

func TestSecretsAreNotInterchangeable(t *testing.T) {
	c := newTestCodec()

	access, err := c.IssueAccess(1, "a@b.c", nil)
	require.NoError(t, err)
	refresh, err := c.IssueRefresh(1, "a@b.c", nil, 3)
	require.NoError(t, err)

	_, err = c.DecodeRefresh(access)
	assert.ErrorIs(t, err, ErrDecode)
	_, err = c.DecodeAccess(refresh)
	assert.ErrorIs(t, err, ErrDecode)
}

func TestExpiredTokenStillDecodes(t *testing.T) {
	// Expiry must not block decoding: logout needs the claims of an
	// expired token to revoke it.
	c := NewCodec("as", "rs", -time.Minute, -time.Minute)

	raw, err := c.IssueAccess(9, "x@y.z", []string{"user"})
	require.NoError(t, err)

	p, err := c.DecodeAccess(raw)
	require.NoError(t, err)
	assert.True(t, p.Expired())
	assert.Equal(t, time.Duration(0), p.TTL())
	assert.Equal(t, uint64(9), p.UserID())
}

func TestDecodeRejectsGarbage(t *testing.T) {
	c := newTestCodec()

	for _, raw := range []string{"", "not-a-jwt", "a.b.c"} {
		_, err := c.DecodeAccess(raw)
		assert.ErrorIs(t, err, ErrDecode, "input %q", raw)
	}
}

func TestDecodeRejectsTamperedToken(t *testing.T) {
	c := newTestCodec()

	raw, err := c.IssueAccess(42, "user@example.com", []string{"user"})
	require.NoError(t, err)

	tampered := raw[:len(raw)-2] + "xx"
	_, err = c.DecodeAccess(tampered)
	assert.ErrorIs(t, err, ErrDecode)
}

func TestDecodeRejectsZeroSubject(t *testing.T) {
	c := newTestCodec()

	raw, err := c.IssueAccess(0, "user@example.com", nil)
	require.NoError(t, err)

	_, err = c.DecodeAccess(raw)
	assert.ErrorIs(t, err, ErrDecode)
}
