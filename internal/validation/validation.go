// Package validation wraps go-playground/validator and reports failures as *errors.ValidationError.
package validation

import (
	"errors"
	"reflect"
	"strings"

	apperrors "github.com/abgdnv/stockroom/internal/errors"
	"github.com/go-playground/validator/v10"
)

// New returns a validator that names fields after their json tag, falling back to the form tag.
func New() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		for _, tag := range []string{"json", "form"} {
			name, _, _ := strings.Cut(f.Tag.Get(tag), ",")
			if name == "-" {
				return ""
			}
			if name != "" {
				return name
			}
		}
		return f.Name
	})
	return v
}

// Struct validates s. Rule violations come back as *errors.ValidationError keyed by field name.
func Struct(v *validator.Validate, s any) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err
	}
	ve := &apperrors.ValidationError{Fields: make(map[string]string, len(validationErrors))}
	for _, fieldErr := range validationErrors {
		ve.Fields[fieldErr.Field()] = fieldErr.Tag()
	}
	return ve
}
