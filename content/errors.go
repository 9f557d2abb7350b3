package content

import (
	"errors"
	"fmt"
)

// ErrSlugTaken is returned when a slug is already used by another record of
// the same collection, either on probe or from the store's unique index.
var ErrSlugTaken = errors.New("content: slug already taken")

// ErrStoreUnavailable matches every *StoreError via errors.Is.
var ErrStoreUnavailable = errors.New("content: store unavailable")

// ValidationError reports a required field that is missing or malformed.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("content: invalid %s: %s", e.Field, e.Reason)
}

// StoreError wraps an infrastructure failure of the document store.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("content: store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// Is reports whether target is ErrStoreUnavailable.
func (e *StoreError) Is(target error) bool {
	return target == ErrStoreUnavailable
}

// Unavailable wraps err as a StoreError for op. A nil err stays nil.
func Unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, Err: err}
}

// IsValidation reports whether err is or wraps a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
