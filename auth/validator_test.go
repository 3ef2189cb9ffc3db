package auth

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// mintToken signs a token expiring at exp. The key is irrelevant because
// signatures are never verified.
func mintToken(t *testing.T, exp time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "user-123",
		"exp": exp.Unix(),
	})
	signed, err := token.SignedString([]byte("test-key"))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

func TestIsTokenValid(t *testing.T) {
	payload := func(json string) string {
		return base64.RawURLEncoding.EncodeToString([]byte(json))
	}

	tests := []struct {
		name  string
		token string
		want  bool
	}{
		{"expires in an hour", mintToken(t, time.Now().Add(time.Hour)), true},
		{"expired a minute ago", mintToken(t, time.Now().Add(-time.Minute)), false},
		{"empty", "", false},
		{"single segment", "abc", false},
		{"two segments", "header." + payload(`{"exp":4102444800}`), true},
		{"padded payload", "h." + base64.URLEncoding.EncodeToString([]byte(`{"exp":4102444800}`)), true},
		{"payload not base64", "h.***.s", false},
		{"payload not json", "h." + payload("not json") + ".s", false},
		{"no exp claim", "h." + payload(`{"sub":"x"}`) + ".s", false},
		{"exp is a string", "h." + payload(`{"exp":"tomorrow"}`) + ".s", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTokenValid(tt.token); got != tt.want {
				t.Errorf("IsTokenValid(%q) = %v, want %v", tt.token, got, tt.want)
			}
		})
	}
}

func TestIsTokenValidAt_Boundary(t *testing.T) {
	exp := time.Unix(1_900_000_000, 0)
	token := mintToken(t, exp)

	if !isTokenValidAt(token, exp.Add(-time.Second)) {
		t.Error("token should be valid one second before exp")
	}
	if isTokenValidAt(token, exp) {
		t.Error("token should be invalid exactly at exp")
	}
}

func TestTokenExpiry(t *testing.T) {
	exp := time.Unix(1_900_000_000, 0)

	got, ok := TokenExpiry(mintToken(t, exp))
	if !ok {
		t.Fatal("TokenExpiry() ok = false")
	}
	if !got.Equal(exp) {
		t.Errorf("TokenExpiry() = %v, want %v", got, exp)
	}
}
