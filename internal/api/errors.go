package api

import (
	"errors"
)

// Sentinel error kinds. Services wrap one of these into every failure they
// return so handlers can map the kind to an HTTP status without parsing
// message strings.
var (
	ErrValidation      = errors.New("invalid input")
	ErrUnauthenticated = errors.New("authentication required or invalid credentials")
	ErrForbidden       = errors.New("action forbidden")
	ErrNotFound        = errors.New("requested item not found")
	ErrConflict        = errors.New("item already exists or conflict")
	ErrUpstream        = errors.New("upstream service unavailable")
	ErrInternal        = errors.New("internal error")
)

// Error carries a user-facing message alongside its kind. The kind is
// surfaced through Unwrap so errors.Is keeps working across wrap layers.
type Error struct {
	Kind    error
	Message string
	Code    string
	Details map[string]any
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Kind
}

// NewError builds a kinded error with a caller-facing message.
func NewError(kind error, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// NewValidationError carries per-field details (field path -> message).
func NewValidationError(message string, details map[string]any) *Error {
	return &Error{Kind: ErrValidation, Message: message, Details: details}
}

// StatusForError maps an error kind to its HTTP status code.
func StatusForError(err error) int {
	switch {
	case errors.Is(err, ErrValidation):
		return 400
	case errors.Is(err, ErrUnauthenticated):
		return 401
	case errors.Is(err, ErrForbidden):
		return 403
	case errors.Is(err, ErrNotFound):
		return 404
	case errors.Is(err, ErrConflict):
		return 409
	default:
		// ErrUpstream and ErrInternal both surface as 500 unless a handler
		// chooses otherwise.
		return 500
	}
}

// MessageForError returns the caller-facing message for err. Unclassified
// errors fall back to the kind's own text so internals never leak.
func MessageForError(err error) string {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	for _, kind := range []error{ErrValidation, ErrUnauthenticated, ErrForbidden, ErrNotFound, ErrConflict, ErrUpstream} {
		if errors.Is(err, kind) {
			return kind.Error()
		}
	}
	return "An unexpected error occurred on the auth service."
}
