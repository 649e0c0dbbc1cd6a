package bankapi

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrUnauthorized is returned for any 401 from the backend.
var ErrUnauthorized = errors.New("unauthorized")

// ErrNotFound is returned for a 404, used to detect backends without /api/init.
var ErrNotFound = errors.New("not found")

// ServerError is a non-2xx reply. Message carries the body's "error" field
// when present. 401 and 404 unwrap to ErrUnauthorized and ErrNotFound.
type ServerError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *ServerError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("bankapi: %s: status %d: %s", e.Op, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("bankapi: %s: status %d", e.Op, e.StatusCode)
}

func (e *ServerError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusNotFound:
		return ErrNotFound
	}
	return nil
}

// NetworkError wraps transport failures and unreadable response bodies.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("bankapi: %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// IsUnauthorized reports whether err means the session is gone.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// ServerMessage extracts the backend's error text, if any.
func ServerMessage(err error) string {
	var se *ServerError
	if errors.As(err, &se) {
		return se.Message
	}
	return ""
}
