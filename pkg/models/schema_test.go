package models

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func basicSchema(t *testing.T) Schema {
	t.Helper()
	s, err := NewSchema(
		map[string]FieldType{"text": FieldText, "length": FieldInteger},
		[]string{"text"},
		map[string]FieldValidator{
			"length": func(v any) bool {
				switch n := v.(type) {
				case int:
					return n > 0
				case float64:
					return n > 0
				}
				return false
			},
		},
	)
	require.NoError(t, err)
	return s
}

func TestSchemaValidate(t *testing.T) {
	schema := basicSchema(t)

	t.Run("valid data", func(t *testing.T) {
		err := schema.Validate(map[string]any{"text": "hello", "length": 5})
		assert.NoError(t, err)
	})

	t.Run("missing required field", func(t *testing.T) {
		err := schema.Validate(map[string]any{"length": 5})
		var missing *MissingFieldError
		require.ErrorAs(t, err, &missing)
		assert.Equal(t, "text", missing.Field)
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("missing field reported before type check", func(t *testing.T) {
		// length is present with a bad type, but the required check on
		// text must win.
		err := schema.Validate(map[string]any{"length": "5"})
		var missing *MissingFieldError
		assert.ErrorAs(t, err, &missing)
	})

	t.Run("unknown field", func(t *testing.T) {
		err := schema.Validate(map[string]any{"text": "hello", "bogus": 1})
		var unknown *UnknownFieldError
		require.ErrorAs(t, err, &unknown)
		assert.Equal(t, "bogus", unknown.Field)
	})

	t.Run("type mismatch", func(t *testing.T) {
		err := schema.Validate(map[string]any{"text": "hello", "length": "5"})
		var mismatch *TypeMismatchError
		require.ErrorAs(t, err, &mismatch)
		assert.Equal(t, "length", mismatch.Field)
		assert.Equal(t, FieldInteger, mismatch.Want)
	})

	t.Run("custom validator failure", func(t *testing.T) {
		err := schema.Validate(map[string]any{"text": "hello", "length": -1})
		var custom *CustomValidationError
		require.ErrorAs(t, err, &custom)
		assert.Equal(t, "length", custom.Field)
	})

	t.Run("optional field may be absent", func(t *testing.T) {
		err := schema.Validate(map[string]any{"text": "hello"})
		assert.NoError(t, err)
	})
}

func TestNewSchemaRejectsMalformedContracts(t *testing.T) {
	t.Run("required name not in fields", func(t *testing.T) {
		_, err := NewSchema(map[string]FieldType{"a": FieldText}, []string{"b"}, nil)
		assert.Error(t, err)
	})

	t.Run("validator key not in fields", func(t *testing.T) {
		_, err := NewSchema(map[string]FieldType{"a": FieldText}, nil,
			map[string]FieldValidator{"b": func(any) bool { return true }})
		assert.Error(t, err)
	})

	t.Run("unknown type tag", func(t *testing.T) {
		_, err := NewSchema(map[string]FieldType{"a": FieldType("Whatever")}, nil, nil)
		assert.Error(t, err)
	})
}

func TestFieldTypeMatches(t *testing.T) {
	cases := []struct {
		name  string
		tag   FieldType
		value any
		want  bool
	}{
		{"text accepts string", FieldText, "x", true},
		{"text rejects int", FieldText, 1, false},
		{"integer accepts int", FieldInteger, 42, true},
		{"integer accepts int64", FieldInteger, int64(42), true},
		{"integer accepts integral float64 from JSON", FieldInteger, float64(7), true},
		{"integer rejects fractional float64", FieldInteger, 7.5, false},
		{"integer rejects string", FieldInteger, "7", false},
		{"float accepts float64", FieldFloat, 1.5, true},
		{"float rejects int", FieldFloat, 1, false},
		{"boolean accepts bool", FieldBoolean, true, true},
		{"boolean rejects string", FieldBoolean, "true", false},
		{"sequence accepts slice", FieldSequence, []any{1, 2}, true},
		{"sequence accepts typed slice", FieldSequence, []string{"a"}, true},
		{"sequence rejects map", FieldSequence, map[string]any{}, false},
		{"mapping accepts map", FieldMapping, map[string]any{"k": 1}, true},
		{"mapping rejects slice", FieldMapping, []any{}, false},
		{"mapping rejects nil", FieldMapping, nil, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.tag.Matches(tc.value))
		})
	}
}

func TestValidationErrorsCarryKind(t *testing.T) {
	for _, err := range []error{
		&MissingFieldError{Field: "f"},
		&UnknownFieldError{Field: "f"},
		&TypeMismatchError{Field: "f", Want: FieldText, Got: "int"},
		&CustomValidationError{Field: "f"},
		&OutputValidationError{JobID: "j", Err: &MissingFieldError{Field: "f"}},
	} {
		assert.True(t, errors.Is(err, ErrValidation), "%T should be a validation error", err)
	}
}
