package querygate

import "github.com/querygate/querygate/internal/vault"

// Authenticator verifies a raw bearer token. The core treats it as an opaque
// identity lookup: ok is false for a missing, unknown, or malformed token.
type Authenticator interface {
	Verify(token string) (identity string, ok bool)
}

// TokenAuthenticator authenticates against a static token list from config.
type TokenAuthenticator struct {
	entries []TokenEntry
}

// NewTokenAuthenticator creates a TokenAuthenticator from config entries.
func NewTokenAuthenticator(entries []TokenEntry) *TokenAuthenticator {
	return &TokenAuthenticator{entries: entries}
}

// Verify compares the token against every configured entry in constant time.
func (a *TokenAuthenticator) Verify(token string) (string, bool) {
	if token == "" {
		return "", false
	}
	for _, entry := range a.entries {
		if vault.ConstantTimeCompare([]byte(token), []byte(entry.Token)) {
			return entry.Identity, true
		}
	}
	return "", false
}
