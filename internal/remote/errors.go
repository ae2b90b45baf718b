package remote

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrUnauthorized is matched by errors.Is for 401 responses.
var ErrUnauthorized = errors.New("unauthorized")

// APIError is a non-2xx response from the remote ledger.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("request failed with status %d", e.Status)
	}
	return fmt.Sprintf("%s (status %d)", e.Message, e.Status)
}

// Is lets errors.Is(err, ErrUnauthorized) match 401s.
func (e *APIError) Is(target error) bool {
	return target == ErrUnauthorized && e.Status == http.StatusUnauthorized
}

// Transient reports whether a retry could succeed.
func (e *APIError) Transient() bool {
	return e.Status >= 500 || e.Status == http.StatusTooManyRequests
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}
