package domain

import "errors"

var (
	// ErrDuplicateEmail is returned when a normalized email is already registered.
	ErrDuplicateEmail = errors.New("duplicate email")
	// ErrNotFound is returned when the requested account or artifact does not exist.
	ErrNotFound = errors.New("not found")
	// ErrExpired covers lapsed codes, links and tokens.
	ErrExpired = errors.New("expired")
	// ErrMismatch is returned when two values that must agree do not,
	// e.g. a code owned by another account or a mistyped password confirmation.
	ErrMismatch = errors.New("mismatch")
	// ErrInvalidToken covers bad signatures, malformed tokens and foreign issuer/audience.
	ErrInvalidToken = errors.New("invalid token")
	// ErrCredentialRejected hides whether the email or the password failed.
	ErrCredentialRejected = errors.New("credential rejected")
	// ErrOperationFailed is the catch-all for storage and transport faults.
	ErrOperationFailed = errors.New("operation failed")

	ErrInvalidInput    = errors.New("invalid input")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrForbidden       = errors.New("forbidden")
	ErrAccountDisabled = errors.New("account disabled")
	ErrAccountLocked   = errors.New("account locked")
	ErrRateLimited     = errors.New("rate limited")
)

// Error carries a user-facing message for one of the sentinel kinds above.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Kind }

// NewError attaches message to kind.
func NewError(kind error, message string) error {
	return &Error{Kind: kind, Message: message}
}

// MessageOf returns the user-facing message carried by err, or fallback.
func MessageOf(err error, fallback string) string {
	var de *Error
	if errors.As(err, &de) && de.Message != "" {
		return de.Message
	}
	return fallback
}
