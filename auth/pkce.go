// Package auth implements the login side of the distribution client: PKCE
// parameters, token persistence, expiry checks, the browser based
// authorization code flow and the access token provider built on top of them.
package auth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

// randomByteCount is the number of raw random bytes behind verifiers and states.
const randomByteCount = 32

// PKCEPair holds the code verifier and its S256 challenge for one
// authorization attempt. It is never persisted.
type PKCEPair struct {
	Verifier  string
	Challenge string
}

// NewPKCEPair generates a fresh verifier/challenge pair from r.
// A nil reader uses crypto/rand.
func NewPKCEPair(r io.Reader) (PKCEPair, error) {
	verifier, err := randomURLSafeString(r)
	if err != nil {
		return PKCEPair{}, fmt.Errorf("%w: failed to generate code verifier: %v", ErrCryptoUnavailable, err)
	}

	return PKCEPair{
		Verifier:  verifier,
		Challenge: oauth2.S256ChallengeFromVerifier(verifier),
	}, nil
}

// NewState generates an anti-CSRF state value. If the random source fails it
// falls back to a random UUID with the separators removed.
func NewState(r io.Reader) string {
	state, err := randomURLSafeString(r)
	if err != nil {
		return strings.ReplaceAll(uuid.NewString(), "-", "")
	}
	return state
}

// randomURLSafeString reads randomByteCount bytes and encodes them as
// URL-safe base64 without padding.
func randomURLSafeString(r io.Reader) (string, error) {
	if r == nil {
		r = rand.Reader
	}
	buf := make([]byte, randomByteCount)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
