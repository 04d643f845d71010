// Package models defines the domain models for the torno enrichment
// registry: schemas, enrichment definitions and versions, jobs and feature
// sets.
package models

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
)

// FieldType is a closed set of type tags a schema field can declare.
// Tags resolve through a fixed enumeration, never through dynamic
// evaluation of arbitrary strings.
type FieldType string

const (
	FieldText     FieldType = "Text"
	FieldInteger  FieldType = "Integer"
	FieldFloat    FieldType = "Float"
	FieldBoolean  FieldType = "Boolean"
	FieldSequence FieldType = "Sequence"
	FieldMapping  FieldType = "Mapping"
)

// Valid reports whether t is one of the declared type tags.
func (t FieldType) Valid() bool {
	switch t {
	case FieldText, FieldInteger, FieldFloat, FieldBoolean, FieldSequence, FieldMapping:
		return true
	}
	return false
}

// Matches reports whether value conforms to the type tag. Integer accepts
// any Go integer kind plus float64 values with no fractional part, because
// encoding/json decodes all JSON numbers to float64.
func (t FieldType) Matches(value any) bool {
	switch t {
	case FieldText:
		_, ok := value.(string)
		return ok
	case FieldBoolean:
		_, ok := value.(bool)
		return ok
	case FieldInteger:
		switch v := value.(type) {
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
			return true
		case float64:
			return v == math.Trunc(v)
		case json.Number:
			_, err := v.Int64()
			return err == nil
		}
		return false
	case FieldFloat:
		switch v := value.(type) {
		case float32, float64:
			return true
		case json.Number:
			_, err := v.Float64()
			return err == nil
		}
		return false
	case FieldSequence:
		if value == nil {
			return false
		}
		k := reflect.TypeOf(value).Kind()
		return k == reflect.Slice || k == reflect.Array
	case FieldMapping:
		if value == nil {
			return false
		}
		return reflect.TypeOf(value).Kind() == reflect.Map
	}
	return false
}

// FieldValidator is a side-effect-free predicate applied to a single field
// value. It receives no broader context than the value itself.
type FieldValidator func(value any) bool

// Schema declares the contract for data entering or leaving an enrichment.
// Fields maps field names to type tags, Required lists names that must be
// present, and Validators attaches optional per-field predicates.
//
// Validators are process-local functions and are excluded from JSON; the
// declarative parts (fields, required) round-trip cleanly.
type Schema struct {
	Fields     map[string]FieldType      `json:"fields"`
	Required   []string                  `json:"required,omitempty"`
	Validators map[string]FieldValidator `json:"-"`
}

// NewSchema builds a Schema and rejects contracts that would silently
// no-op: every required name and every validator key must be declared in
// fields, and every type tag must be one of the closed set.
func NewSchema(fields map[string]FieldType, required []string, validators map[string]FieldValidator) (Schema, error) {
	for name, tag := range fields {
		if !tag.Valid() {
			return Schema{}, fmt.Errorf("schema field %s: unknown type tag %q", name, tag)
		}
	}
	for _, name := range required {
		if _, ok := fields[name]; !ok {
			return Schema{}, fmt.Errorf("schema: required field %s not declared in fields", name)
		}
	}
	for name := range validators {
		if _, ok := fields[name]; !ok {
			return Schema{}, fmt.Errorf("schema: validator for %s has no matching field", name)
		}
	}
	return Schema{Fields: fields, Required: required, Validators: validators}, nil
}

// MustSchema is NewSchema for statically known contracts; it panics on a
// malformed definition.
func MustSchema(fields map[string]FieldType, required []string, validators map[string]FieldValidator) Schema {
	s, err := NewSchema(fields, required, validators)
	if err != nil {
		panic(err)
	}
	return s
}

// Validate checks data against the schema and returns the first violation.
// Order: required fields first, then per-field unknown-key, type and custom
// checks. There is no accumulated error reporting; the first failure
// short-circuits.
func (s Schema) Validate(data map[string]any) error {
	for _, name := range s.Required {
		if _, ok := data[name]; !ok {
			return &MissingFieldError{Field: name}
		}
	}

	for name, value := range data {
		tag, ok := s.Fields[name]
		if !ok {
			return &UnknownFieldError{Field: name}
		}
		if !tag.Matches(value) {
			return &TypeMismatchError{Field: name, Want: tag, Got: typeName(value)}
		}
		if validator, ok := s.Validators[name]; ok && !validator(value) {
			return &CustomValidationError{Field: name}
		}
	}

	return nil
}

func typeName(value any) string {
	if value == nil {
		return "nil"
	}
	return reflect.TypeOf(value).String()
}
