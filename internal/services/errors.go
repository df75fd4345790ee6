package services

import (
	"errors"
	"fmt"
)

var (
	ErrCodeExpiredOrInvalid   = errors.New("invalid verification code or code has expired")
	ErrAttemptsExceeded       = errors.New("maximum verification attempts exceeded, please request a new code")
	ErrThrottled              = errors.New("too many code requests, try again later")
	ErrPhoneNotVerified       = errors.New("phone number is not verified")
	ErrIdentityCreationFailed = errors.New("identity creation failed")
	ErrProfileCreationFailed  = errors.New("profile creation failed")
	ErrEmailTaken             = errors.New("email is already registered")
	ErrTransport              = errors.New("remote service unavailable")
	ErrInvalidTransition      = errors.New("step not allowed at this point of sign up")
	ErrInvalidSignupToken     = errors.New("sign up session is invalid or expired")
	ErrInvalidCredentials     = errors.New("invalid email or password")
	ErrInvalidToken           = errors.New("invalid or expired token")
	ErrTokenUsed              = errors.New("token already used")
)

// ValidationError means a required field is missing or malformed. Raised before any
// network call.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, msg string) error {
	return &ValidationError{Field: field, Message: msg}
}

// transportErr tags a remote failure that has no better classification.
func transportErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrTransport, op, err)
}
