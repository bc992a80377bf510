package validation

import (
	"errors"
	"testing"

	apperrors "github.com/abgdnv/stockroom/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name     string `json:"name" validate:"required,max=5"`
	Quantity int    `form:"quantity" validate:"gt=0"`
	Note     string `validate:"max=2"`
}

func TestStruct(t *testing.T) {
	v := New()

	tests := []struct {
		name       string
		input      sample
		wantFields map[string]string
	}{
		{name: "valid", input: sample{Name: "ok", Quantity: 1}},
		{name: "missing name", input: sample{Quantity: 1}, wantFields: map[string]string{"name": "required"}},
		{
			name:       "every field invalid",
			input:      sample{Name: "too long", Quantity: 0, Note: "abc"},
			wantFields: map[string]string{"name": "max", "quantity": "gt", "Note": "max"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// when
			err := Struct(v, tt.input)

			// then
			if tt.wantFields == nil {
				assert.NoError(t, err)
				return
			}
			var ve *apperrors.ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, tt.wantFields, ve.Fields)
			assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
		})
	}
}
