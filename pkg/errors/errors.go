package errors

import (
	"errors"
	"fmt"
)

// Domain error types for business logic

var (
	// ErrNotFound indicates a resource was not found
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidInput indicates invalid input parameters
	ErrInvalidInput = errors.New("invalid input")

	// ErrInternal indicates an internal error
	ErrInternal = errors.New("internal error")

	// ErrUnavailable indicates a service is unavailable
	ErrUnavailable = errors.New("service unavailable")

	// ErrExternal indicates an upstream service returned an error
	ErrExternal = errors.New("external service error")
)

// Negotiation-specific errors

var (
	// ErrInferenceUnavailable indicates the inference endpoint could not be
	// reached or returned no usable reply. Fatal for the current turn.
	ErrInferenceUnavailable = errors.New("inference endpoint unavailable")

	// ErrSchemaValidation indicates model output did not conform to the
	// requested structural contract. Fatal for the current turn.
	ErrSchemaValidation = errors.New("schema validation failed")

	// ErrStoreRead indicates a feature store read failed. Always absorbed by
	// the feature merger, never surfaced to the negotiation caller.
	ErrStoreRead = errors.New("feature store read failed")

	// ErrRateLimitExceeded indicates the inference rate limit was hit
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
)

// Helper functions

// Is checks if err is or wraps target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target type
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Wrap wraps an error with context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

func New(message string) error {
	return errors.New(message)
}

func Newf(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}
