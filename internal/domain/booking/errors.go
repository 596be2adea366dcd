package booking

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound reports a missing appointment or assignment.
	ErrNotFound = errors.New("appointment not found")

	// ErrNotAuthorized reports an actor whose id does not match the record's
	// patient, clinic, or doctor for the requested action.
	ErrNotAuthorized = errors.New("actor not authorized for appointment")

	// ErrConflict reports a versioned write whose expected version no longer
	// matches the row. The caller re-reads and retries.
	ErrConflict = errors.New("appointment was modified concurrently")
)

// ValidationError reports a rejected payload. No state is written when one
// is returned.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func validationf(format string, args ...interface{}) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}
