package models

import (
	"errors"
	"fmt"
	"strings"

	"ms-booking/internal/availability"
)

var ErrNotFound = errors.New("not found")

var (
	ErrEventNotFound   = fmt.Errorf("event %w", ErrNotFound)
	ErrBookingNotFound = fmt.Errorf("booking %w", ErrNotFound)
)

var (
	ErrValidation       = errors.New("validation error")
	ErrCapacityExceeded = errors.New("not enough tickets available for this event")
	ErrForeignKey       = errors.New("booking references an unknown event")
)

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type ValidationError struct {
	Fields []FieldError
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: []FieldError{{Field: field, Message: message}}}
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+" "+f.Message)
	}
	return ErrValidation.Error() + ": " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// CapacityError reports a rejected admission together with the numbers
// that caused it.
type CapacityError struct {
	Availability availability.Result
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("%s: requested %d, remaining %d",
		ErrCapacityExceeded.Error(), e.Availability.Requested, e.Availability.Remaining)
}

func (e *CapacityError) Unwrap() error { return ErrCapacityExceeded }

// StorageError wraps an unexpected persistence failure.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Storage wraps err as a StorageError unless it already carries a domain kind.
func Storage(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsDomainError(err) {
		return err
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

func IsDomainError(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrCapacityExceeded) ||
		errors.Is(err, ErrForeignKey)
}
