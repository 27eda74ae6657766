package core

import (
	"errors"
	"fmt"
)

// Business errors.
var (
	// Identifier errors.
	ErrInvalidID = errors.New("invalid identifier")

	// Not-found errors.
	ErrSensorNotFound     = errors.New("sensor not found")
	ErrReadingNotFound    = errors.New("sensor reading not found")
	ErrAlertNotFound      = errors.New("alert not found")
	ErrDeviceNotFound     = errors.New("device not found")
	ErrPlantNotFound      = errors.New("plant not found")
	ErrPlantationNotFound = errors.New("plantation not found")
	ErrUserNotFound       = errors.New("user not found")

	// Auth errors.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailNotVerified   = errors.New("email address not verified")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrInvalidOTP         = errors.New("invalid or expired verification code")
)

// ValidationError reports malformed input: an unknown enum value or a
// missing required field.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NewValidationError builds a ValidationError for a field.
func NewValidationError(field, format string, args ...interface{}) ValidationError {
	return ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// ConflictError reports a duplicate unique key or an invalid state
// transition. Message includes the current conflicting state.
type ConflictError struct {
	Message string `json:"message"`
}

func (e ConflictError) Error() string { return e.Message }

// NewConflictError builds a ConflictError.
func NewConflictError(format string, args ...interface{}) ConflictError {
	return ConflictError{Message: fmt.Sprintf(format, args...)}
}

// IsConflict reports whether err is a ConflictError.
func IsConflict(err error) bool {
	var ce ConflictError
	return errors.As(err, &ce)
}

// IsValidation reports whether err is a ValidationError or malformed id.
func IsValidation(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve) || errors.Is(err, ErrInvalidID)
}

// IsNotFound reports whether err is one of the not-found sentinels.
func IsNotFound(err error) bool {
	for _, target := range []error{
		ErrSensorNotFound, ErrReadingNotFound, ErrAlertNotFound,
		ErrDeviceNotFound, ErrPlantNotFound, ErrPlantationNotFound,
		ErrUserNotFound,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
