// Package errors provides the error taxonomy shared by the catalog, sales and store packages.
package errors

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
)

var ErrProductNotFound = errors.New("product not found")
var ErrInvalidInput = errors.New("invalid input")
var ErrInsufficientStock = errors.New("insufficient stock")
var ErrStoreUnavailable = errors.New("store unavailable")

// ValidationError lists the rule each invalid field failed. It matches ErrInvalidInput with errors.Is.
type ValidationError struct {
	Fields map[string]string
}

// NewValidationError creates a ValidationError for a single field.
func NewValidationError(field, rule string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: rule}}
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, field := range slices.Sorted(maps.Keys(e.Fields)) {
		parts = append(parts, fmt.Sprintf("%s: %s", field, e.Fields[field]))
	}
	return fmt.Sprintf("%s: %s", ErrInvalidInput, strings.Join(parts, ", "))
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}
