// Package apperror defines the error taxonomy surfaced to API callers.
package apperror

import "errors"

// Kind classifies an error so callers can branch without matching codes.
type Kind int

const (
	// KindValidation is malformed or out-of-range input, rejected before touching state.
	KindValidation Kind = iota + 1
	// KindConflict is a request incompatible with the current state.
	KindConflict
	// KindPermission means the actor lacks rights for the operation.
	KindPermission
	// KindNotFound means a referenced entity does not exist.
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindPermission:
		return "permission"
	case KindNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// Error is a classified domain error with a stable machine-readable code.
type Error struct {
	Kind    Kind
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// New creates a classified error.
func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// Validation creates a validation error with the generic "invalid_input" code.
func Validation(message string) *Error {
	return New(KindValidation, "invalid_input", message)
}

// NotFound creates a not-found error for the named entity.
func NotFound(entity string) *Error {
	return New(KindNotFound, entity+"_not_found", entity+" not found")
}

// As extracts the classified error from err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the kind of err, or 0 when err is not classified.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return 0
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
