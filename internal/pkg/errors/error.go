package xerrors

import (
	"errors"
	"fmt"
)

// Common reusable application errors
var (
	ErrNotFound     = errors.New("resource not found")
	ErrUnauthorized = errors.New("unauthorized access")
	ErrInvalidInput = errors.New("invalid input")
	ErrInternal     = errors.New("internal server error")
	ErrRateLimited  = errors.New("too many requests")
)

// Payment lifecycle taxonomy. Validation errors surface synchronously to the
// initiating caller; callback-side errors are absorbed or logged, the sender
// only ever sees a protocol acknowledgement.
var (
	ErrInvalidPlan         = errors.New("unknown subscription plan")
	ErrInvalidPhoneNumber  = errors.New("invalid subscriber phone number")
	ErrProviderUnavailable = errors.New("payment provider unavailable")
	ErrMalformedCallback   = errors.New("malformed callback payload")
	ErrUnknownSession      = errors.New("callback references unknown payment session")
	ErrDuplicateCallback   = errors.New("payment session already finalized")
	ErrStoreUnavailable    = errors.New("durable store unavailable")
)

// Wrap adds context to an error (similar to fmt.Errorf("%w")).
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Is allows checking whether an error is a specific sentinel error.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// Unwrap extracts the underlying wrapped error.
func Unwrap(err error) error {
	return errors.Unwrap(err)
}
