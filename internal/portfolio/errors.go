package portfolio

import "errors"

var (
	// ErrValidation matches every *ValidationError.
	ErrValidation    = errors.New("validation failed")
	ErrDuplicateCoin = errors.New("This coin already exists in your holdings.")
	ErrNotFound      = errors.New("holding not found")
)

const (
	msgMissingFields = "Please fill in all fields."
	msgNotPositive   = "Amount and buy price must be positive numbers."
	msgInvalidMonth  = "Month must be between 0 and 11 or all."
	msgInvalidYear   = "Year must be a number or all."
)

// ValidationError carries a user-facing message for rejected input.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func invalid(msg string) error {
	return &ValidationError{Message: msg}
}
