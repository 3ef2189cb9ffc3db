package distribution

import (
	"errors"
	"fmt"
)

var (
	// ErrLoginRequired is returned when the backend answers 403 and a login
	// cannot or did not help.
	ErrLoginRequired = errors.New("login required")
	// ErrInvalidData is returned when a successful response cannot be decoded.
	ErrInvalidData = errors.New("invalid response data")
)

// BadRequestError is any non-2xx answer other than 403.
type BadRequestError struct {
	StatusCode int
	Message    string
}

func (e *BadRequestError) Error() string {
	return fmt.Sprintf("bad request (HTTP %d): %s", e.StatusCode, e.Message)
}
