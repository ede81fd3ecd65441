package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"strings"
	"time"

	"imgshare-backend/internal/models"
)

// Payload is the session identity carried inside a token. It is immutable
// once issued and expires on its own; there is no server-side revocation.
type Payload struct {
	Username  string          `json:"username"`
	Role      models.UserRole `json:"role"`
	IssuedAt  int64           `json:"issuedAt"`
	ExpiresAt int64           `json:"expiresAt"`
}

// Codec signs and verifies compact session tokens of the form
//
//	base64url(JSON(payload)) + "." + base64url(HMAC-SHA256(secret, first part))
//
// Verification is a pure function of the token, the secret and the clock.
type Codec struct {
	secret []byte
	now    func() time.Time
}

func NewCodec(secret string) *Codec {
	return &Codec{secret: []byte(secret), now: time.Now}
}

func (c *Codec) Sign(p Payload) (string, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	data := base64.RawURLEncoding.EncodeToString(body)
	return data + "." + c.signature(data), nil
}

// Verify returns the payload for a well-formed, correctly signed, unexpired
// token, or ok=false for anything else. It never returns an error: a bad
// token and a missing token are the same thing to callers.
func (c *Codec) Verify(token string) (Payload, bool) {
	data, sig, found := strings.Cut(token, ".")
	if !found || strings.Contains(sig, ".") {
		return Payload{}, false
	}

	expected := c.signature(data)
	if !hmac.Equal([]byte(expected), []byte(sig)) {
		return Payload{}, false
	}

	body, err := base64.RawURLEncoding.DecodeString(data)
	if err != nil {
		return Payload{}, false
	}

	var p Payload
	if err := json.Unmarshal(body, &p); err != nil {
		return Payload{}, false
	}

	if p.ExpiresAt <= c.now().Unix() {
		return Payload{}, false
	}
	return p, true
}

// Issue builds and signs a payload for user valid for ttl from now.
func (c *Codec) Issue(username string, role models.UserRole, ttl time.Duration) (string, error) {
	now := c.now().Unix()
	return c.Sign(Payload{
		Username:  username,
		Role:      role,
		IssuedAt:  now,
		ExpiresAt: now + int64(ttl.Seconds()),
	})
}

func (c *Codec) signature(data string) string {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(data))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
