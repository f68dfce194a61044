package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// TokenAuth issues and verifies per-debate access tokens. A token is
// the HMAC-SHA256 of the debate id under the server's shared secret, so
// it grants access to exactly one debate stream. An empty secret
// disables authentication entirely.
type TokenAuth struct {
	sharedSecret string
}

// NewTokenAuth creates a token authenticator.
func NewTokenAuth(sharedSecret string) *TokenAuth {
	return &TokenAuth{sharedSecret: sharedSecret}
}

// Enabled reports whether token checks are enforced.
func (a *TokenAuth) Enabled() bool {
	return a.sharedSecret != ""
}

// Sign produces the access token for one debate.
func (a *TokenAuth) Sign(debateID string) string {
	h := hmac.New(sha256.New, []byte(a.sharedSecret))
	h.Write([]byte(debateID))
	return hex.EncodeToString(h.Sum(nil))
}

// Verify checks a presented token against the expected one. Uses
// constant-time comparison to prevent timing attacks.
func (a *TokenAuth) Verify(debateID, token string) bool {
	if !a.Enabled() {
		return true
	}
	expected := a.Sign(debateID)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(token)) == 1
}
