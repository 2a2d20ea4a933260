package utils

import (
	"github.com/pkg/errors"
)

// NewTypeNotRegisteredError is used when a configured type name has no registration.
func NewTypeNotRegisteredError(kind, name string, registered []string) error {
	return errors.Errorf("no %s type %q registered (have %v)", kind, name, registered)
}

// causedError is a sentinel error carrying the error that caused it.
type causedError struct {
	sentinel error
	cause    error
}

func (e *causedError) Error() string {
	return e.cause.Error() + ": " + e.sentinel.Error()
}

// Unwrap exposes both errors so errors.Is and errors.As match either of them.
func (e *causedError) Unwrap() []error {
	return []error{e.sentinel, e.cause}
}

// NewCausedError returns sentinel caused by cause. A nil cause returns the sentinel itself and a
// cause that already matches the sentinel is returned unchanged.
func NewCausedError(sentinel, cause error) error {
	if cause == nil {
		return sentinel
	}
	if errors.Is(cause, sentinel) {
		return cause
	}
	return &causedError{sentinel: sentinel, cause: cause}
}
