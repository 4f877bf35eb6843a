// Package faults classifies failures crossing component boundaries.
package faults

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks caller input that was rejected before any side effect.
	ErrValidation = errors.New("validation error")
	// ErrUpstream marks a failure of the generative or compiler service.
	ErrUpstream = errors.New("upstream service error")
	// ErrPersistence marks a letter store read or write failure.
	ErrPersistence = errors.New("persistence error")
)

// Validation returns a validation error with the given message.
func Validation(msg string) error {
	return fmt.Errorf("%w: %s", ErrValidation, msg)
}

// Validationf is Validation with formatting.
func Validationf(format string, args ...any) error {
	return Validation(fmt.Sprintf(format, args...))
}

// Upstream wraps err as a failure of the named service.
// The result matches both ErrUpstream and err under errors.Is.
func Upstream(service string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrUpstream) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrUpstream, service, err)
}

// Persistence wraps err as a failed store operation.
func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrPersistence) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrPersistence, op, err)
}

// Kind reports which category err belongs to, or "" if none.
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return "validation_error"
	case errors.Is(err, ErrUpstream):
		return "upstream_error"
	case errors.Is(err, ErrPersistence):
		return "persistence_error"
	default:
		return ""
	}
}
