package schemas

import (
	"encoding/json"
	"fmt"

	"hermes/pkg/errors"
)

// ValidationError reports model output that does not conform to the requested
// structural contract. It carries the raw reply for audit and the specific
// field that failed, and unwraps to errors.ErrSchemaValidation.
type ValidationError struct {
	Schema string // target schema type name
	Field  string // offending field, empty for whole-payload failures
	Reason string
	Raw    string // raw model output, set by Parse
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("schema %s: field %q: %s", e.Schema, e.Field, e.Reason)
	}
	return fmt.Sprintf("schema %s: %s", e.Schema, e.Reason)
}

// Unwrap returns the schema validation sentinel
func (e *ValidationError) Unwrap() error {
	return errors.ErrSchemaValidation
}

// Parse maps raw model output onto the schema type T, enforcing presence of
// all required fields and type conformance. There is no partial recovery or
// default filling: any mismatch fails the whole parse.
func Parse[T Decision](raw string) (T, error) {
	var decision T

	if err := json.Unmarshal([]byte(raw), &decision); err != nil {
		return decision, withRaw(asValidationError(typeName(decision), err), raw)
	}

	if err := decision.Validate(); err != nil {
		return decision, withRaw(asValidationError(typeName(decision), err), raw)
	}

	return decision, nil
}

// requireFields fails if any of the named keys is absent from the JSON object.
func requireFields(data []byte, schema string, fields ...string) error {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return &ValidationError{Schema: schema, Reason: "not a JSON object: " + err.Error()}
	}

	for _, field := range fields {
		if _, ok := obj[field]; !ok {
			return &ValidationError{Schema: schema, Field: field, Reason: "required field missing"}
		}
	}
	return nil
}

// typeMismatch converts an encoding/json error into a ValidationError,
// preserving the offending field name when the decoder reports one.
func typeMismatch(schema string, data []byte, err error) error {
	var ute *json.UnmarshalTypeError
	if errors.As(err, &ute) {
		return &ValidationError{
			Schema: schema,
			Field:  ute.Field,
			Reason: fmt.Sprintf("expected %s, got %s", ute.Type, ute.Value),
		}
	}
	return &ValidationError{Schema: schema, Reason: err.Error()}
}

func asValidationError(schema string, err error) *ValidationError {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve
	}
	converted := typeMismatch(schema, nil, err)
	ve, _ = converted.(*ValidationError)
	return ve
}

func withRaw(ve *ValidationError, raw string) *ValidationError {
	if ve.Raw == "" {
		ve.Raw = raw
	}
	return ve
}

func typeName(v any) string {
	return fmt.Sprintf("%T", v)
}
