package auth

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"
	"strings"
	"testing"
)

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("entropy exhausted") }

func TestNewPKCEPair(t *testing.T) {
	pair, err := NewPKCEPair(nil)
	if err != nil {
		t.Fatalf("NewPKCEPair() error = %v", err)
	}

	if len(pair.Verifier) != 43 {
		t.Errorf("verifier length = %d, want 43", len(pair.Verifier))
	}
	if strings.ContainsAny(pair.Verifier, "+/=") {
		t.Errorf("verifier %q is not URL-safe unpadded base64", pair.Verifier)
	}

	sum := sha256.Sum256([]byte(pair.Verifier))
	want := base64.RawURLEncoding.EncodeToString(sum[:])
	if pair.Challenge != want {
		t.Errorf("challenge = %q, want %q", pair.Challenge, want)
	}
}

func TestNewPKCEPair_Deterministic(t *testing.T) {
	seed := bytes.Repeat([]byte{0xfb}, 32)

	pair, err := NewPKCEPair(bytes.NewReader(seed))
	if err != nil {
		t.Fatalf("NewPKCEPair() error = %v", err)
	}
	if want := base64.RawURLEncoding.EncodeToString(seed); pair.Verifier != want {
		t.Errorf("verifier = %q, want %q", pair.Verifier, want)
	}
	if strings.ContainsAny(pair.Verifier+pair.Challenge, "+/=") {
		t.Errorf("pair contains non URL-safe characters: %+v", pair)
	}
}

func TestNewPKCEPair_Fresh(t *testing.T) {
	a, err := NewPKCEPair(nil)
	if err != nil {
		t.Fatalf("NewPKCEPair() error = %v", err)
	}
	b, err := NewPKCEPair(nil)
	if err != nil {
		t.Fatalf("NewPKCEPair() error = %v", err)
	}
	if a.Verifier == b.Verifier {
		t.Error("two pairs share a verifier")
	}
}

func TestNewPKCEPair_RandomFailure(t *testing.T) {
	_, err := NewPKCEPair(failingReader{})
	if !errors.Is(err, ErrCryptoUnavailable) {
		t.Fatalf("NewPKCEPair() error = %v, want ErrCryptoUnavailable", err)
	}
}

func TestNewState(t *testing.T) {
	tests := []struct {
		name    string
		source  io.Reader
		wantLen int
	}{
		{"secure random", nil, 43},
		{"short source falls back to uuid", bytes.NewReader([]byte{1, 2}), 32},
		{"failing source falls back to uuid", failingReader{}, 32},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := NewState(tt.source)
			if len(state) != tt.wantLen {
				t.Errorf("len(state) = %d, want %d (%q)", len(state), tt.wantLen, state)
			}
			if strings.Contains(state, "-") {
				t.Errorf("state %q contains dashes", state)
			}
		})
	}
}
