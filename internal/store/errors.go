package store

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes store errors so the HTTP layer can map them to
// status codes.
type ErrorCode string

const (
	// ErrCodeUsernameTaken: register with an existing username.
	ErrCodeUsernameTaken ErrorCode = "USERNAME_TAKEN"

	// ErrCodeInvalidCredentials: unknown username or wrong password.
	ErrCodeInvalidCredentials ErrorCode = "INVALID_CREDENTIALS"

	// ErrCodeInvalidSession: token missing, revoked or expired.
	ErrCodeInvalidSession ErrorCode = "INVALID_SESSION"

	// ErrCodeNotFound: the session's user no longer exists.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"

	// ErrCodeInvalidInput: empty username or password.
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
)

// Error is a categorized store failure.
type Error struct {
	Code    ErrorCode
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func newError(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// CodeOf returns the ErrorCode of err, or "" when err is not a store Error.
// Uses errors.As to handle wrapped errors.
func CodeOf(err error) ErrorCode {
	var se *Error
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}

// IsCode reports whether err is a store Error with the given code.
func IsCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}
