package auth

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// segmentParser only decodes segments; it is never used to verify signatures.
var segmentParser = jwt.NewParser(jwt.WithPaddingAllowed())

// IsTokenValid reports whether the token's embedded exp claim is still in the
// future. Only the expiry is checked, not the signature. Malformed tokens are
// reported as invalid.
func IsTokenValid(token string) bool {
	return isTokenValidAt(token, time.Now())
}

func isTokenValidAt(token string, now time.Time) bool {
	exp, ok := TokenExpiry(token)
	if !ok {
		return false
	}
	return now.Before(exp)
}

// TokenExpiry returns the exp claim of a dot separated token as a time.
func TokenExpiry(token string) (time.Time, bool) {
	segments := strings.Split(token, ".")
	if len(segments) < 2 {
		return time.Time{}, false
	}

	payload, err := segmentParser.DecodeSegment(segments[1])
	if err != nil {
		return time.Time{}, false
	}

	var claims jwt.MapClaims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return time.Time{}, false
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
