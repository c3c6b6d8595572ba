package auth

import (
	"github.com/go-faster/errors"
)

// Error kinds. Match them with errors.Is.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrValidation   = errors.New("validation failed")
)

// Store errors reported by CredentialStore and APIKeyStore implementations.
var (
	ErrUserNotFound = errors.New("user not found")
	ErrUserExists   = errors.New("user already exists")
	ErrKeyNotFound  = errors.New("api key not found")
)

// Error is a failure of a given kind with a caller-facing message.
type Error struct {
	Kind    error
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Kind.Error()
	}
	return e.Kind.Error() + ": " + e.Message
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the kind of e.
func (e *Error) Is(target error) bool {
	return target == e.Kind
}

// Unauthorized returns an ErrUnauthorized failure.
func Unauthorized(msg string) error {
	return &Error{Kind: ErrUnauthorized, Message: msg}
}

// Forbidden returns an ErrForbidden failure.
func Forbidden(msg string) error {
	return &Error{Kind: ErrForbidden, Message: msg}
}

// Invalid returns an ErrValidation failure.
func Invalid(msg string) error {
	return &Error{Kind: ErrValidation, Message: msg}
}

// unauthorizedCause wraps cause as ErrUnauthorized without exposing it in
// the message.
func unauthorizedCause(cause error) error {
	return &Error{Kind: ErrUnauthorized, Err: cause}
}
