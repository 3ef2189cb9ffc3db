package auth

import "errors"

var (
	// ErrCryptoUnavailable indicates that secure random bytes could not be read
	// while preparing PKCE parameters.
	ErrCryptoUnavailable = errors.New("secure random source unavailable")

	// ErrNoCallbackURL indicates that the authentication surface finished
	// without reporting a redirect URL for the expected callback scheme.
	ErrNoCallbackURL = errors.New("no callback URL received")

	// ErrNoAuthorizationCode indicates that the callback URL carried no code.
	ErrNoAuthorizationCode = errors.New("no authorization code in callback")

	// ErrStateMismatch indicates that the callback state does not match the
	// state sent with the authorization request.
	ErrStateMismatch = errors.New("authorization state mismatch")

	// ErrUserCancelled indicates that the user dismissed the authentication surface.
	ErrUserCancelled = errors.New("login cancelled by user")

	// ErrProvider wraps failures reported by the identity provider, either on
	// the authorization callback or from the token endpoint.
	ErrProvider = errors.New("identity provider error")

	// ErrStorage wraps token persistence failures.
	ErrStorage = errors.New("token storage error")
)
