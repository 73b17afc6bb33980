package auth

import "errors"

var (
	ErrEmailInUse    = errors.New("Email already in use. Please login instead.")
	ErrUserNotFound  = errors.New("User not found. Please check your email.")
	ErrWrongPassword = errors.New("Incorrect password. Please try again.")
	ErrInvalidToken  = errors.New("invalid or expired token")
)

// InputError is a rejected signup or login form; Error is user-facing.
type InputError struct {
	Message string
}

func (e *InputError) Error() string {
	return e.Message
}
