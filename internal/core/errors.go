package core

import "errors"

// Failure classes. Store operations wrap the underlying cause with one of
// these, e.g. fmt.Errorf("%w: insert entry: %w", ErrWrite, err), so callers can
// match both the class and the cause with errors.Is.
var (
	ErrConnection = errors.New("connection error")
	ErrSchema     = errors.New("schema initialization failed")
	ErrWrite      = errors.New("write error")
	ErrRead       = errors.New("read error")
	ErrMissingID  = errors.New("missing entry id")
	ErrValidation = errors.New("validation error")
	ErrNotFound   = errors.New("entry not found")
)

// Validation details, always combined with ErrValidation.
var (
	ErrInvalidKind    = errors.New("invalid kind")
	ErrNegativeAmount = errors.New("amount cannot be negative")
	ErrInvalidNote    = errors.New("note is not valid UTF-8")
	ErrInvalidDate    = errors.New("invalid occurred_at")
	ErrKindImmutable  = errors.New("kind cannot change after creation")
)

// IsRetryable reports whether err is a transient store failure that a caller
// may retry with the same input.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrMissingID) || errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrSchema) || errors.Is(err, ErrNotFound) {
		return false
	}
	return errors.Is(err, ErrConnection) || errors.Is(err, ErrWrite) || errors.Is(err, ErrRead)
}
