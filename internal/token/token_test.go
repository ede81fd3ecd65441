package token

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imgshare-backend/internal/models"
)

func testCodec(secret string, now time.Time) *Codec {
	c := NewCodec(secret)
	c.now = func() time.Time { return now }
	return c
}

func TestSignVerifyRoundTrip(t *testing.T) {
	now := time.Unix(1700000000, 0)
	c := testCodec("test-secret", now)

	want := Payload{
		Username:  "alice",
		Role:      models.UserRoleAdmin,
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Unix() + 3600,
	}

	tok, err := c.Sign(want)
	require.NoError(t, err)
	require.Len(t, strings.Split(tok, "."), 2)

	got, ok := c.Verify(tok)
	require.True(t, ok)
	assert.Equal(t, want, got)
}

func TestVerifyRejectsTampering(t *testing.T) {
	now := time.Unix(1700000000, 0)
	c := testCodec("test-secret", now)

	tok, err := c.Issue("alice", models.UserRoleUser, time.Hour)
	require.NoError(t, err)

	// Flipping any single bit in either half must invalidate the token.
	for i := 0; i < len(tok); i++ {
		if tok[i] == '.' {
			continue
		}
		mangled := []byte(tok)
		mangled[i] ^= 0x01
		if _, ok := c.Verify(string(mangled)); ok {
			t.Fatalf("tampered token accepted at byte %d", i)
		}
	}
}

func TestVerifyRejectsExpired(t *testing.T) {
	issued := time.Unix(1700000000, 0)
	c := testCodec("test-secret", issued)

	tok, err := c.Issue("alice", models.UserRoleUser, time.Hour)
	require.NoError(t, err)

	// Same secret, clock moved past expiry. Signature is still valid.
	late := testCodec("test-secret", issued.Add(2*time.Hour))
	_, ok := late.Verify(tok)
	assert.False(t, ok)

	// Just before expiry it still verifies.
	early := testCodec("test-secret", issued.Add(time.Hour-time.Second))
	_, ok = early.Verify(tok)
	assert.True(t, ok)
}

func TestVerifyRejectsMalformed(t *testing.T) {
	now := time.Unix(1700000000, 0)
	c := testCodec("test-secret", now)

	tok, err := c.Issue("alice", models.UserRoleUser, time.Hour)
	require.NoError(t, err)
	data, _, _ := strings.Cut(tok, ".")

	// A signed part that is not JSON.
	junk := base64.RawURLEncoding.EncodeToString([]byte("not json"))
	badJSON := junk + "." + c.signature(junk)

	// A signed part that is not base64url.
	badB64 := "!!" + "." + c.signature("!!")

	cases := map[string]string{
		"empty":       "",
		"no dot":      data,
		"three parts": tok + ".extra",
		"wrong json":  badJSON,
		"bad base64":  badB64,
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, ok := c.Verify(in)
			assert.False(t, ok)
		})
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	now := time.Unix(1700000000, 0)
	tok, err := testCodec("secret-a", now).Issue("alice", models.UserRoleUser, time.Hour)
	require.NoError(t, err)

	_, ok := testCodec("secret-b", now).Verify(tok)
	assert.False(t, ok)
}
