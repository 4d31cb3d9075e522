package app

import "errors"

var (
	ErrValidation      = errors.New("validation failed")
	ErrUnauthenticated = errors.New("not signed in")
	ErrForbidden       = errors.New("not allowed for this user")
	ErrAuthExchange    = errors.New("auth code exchange failed")
	ErrAuthQuery       = errors.New("auth provider request failed")
	ErrAuthUnavailable = errors.New("auth provider is not configured")
)

// ValidationError names the offending field; it matches ErrValidation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Field + " " + e.Reason
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// ProviderError carries the auth provider's own message, which is safe to show on sign-in forms.
type ProviderError struct {
	Kind    error
	Message string
	Err     error
}

func (e *ProviderError) Error() string {
	return e.Kind.Error() + ": " + e.Message
}

func (e *ProviderError) Is(target error) bool {
	return target == e.Kind
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}
