package schema

import (
	"errors"
	"fmt"
	"strings"
)

// Validation errors for the schema package.
//
// Every validation failure is returned as a *FieldError wrapping one of
// these sentinels, so both forms of inspection work:
//
//	if errors.Is(err, schema.ErrMissingField) { ... }
//
//	var fe *schema.FieldError
//	if errors.As(err, &fe) {
//	    log.Printf("field %s on %s", fe.Key(), fe.Platform)
//	}
var (
	// ErrUnknownPlatform is returned when the platform tag names no
	// registered schema.
	ErrUnknownPlatform = errors.New("schema: unknown platform")

	// ErrMissingField is returned when a required field is absent.
	ErrMissingField = errors.New("schema: missing required field")

	// ErrTypeCoercion is returned when a field holds a value of the wrong kind.
	ErrTypeCoercion = errors.New("schema: wrong value type")

	// ErrInvalidValue is returned when a value has the right kind but is
	// outside the allowed set or range.
	ErrInvalidValue = errors.New("schema: invalid value")

	// ErrExtraField is returned when a closed schema receives a field it
	// does not declare.
	ErrExtraField = errors.New("schema: extra field not allowed")

	// ErrFieldConflict is returned when composing schemas would silently
	// redefine a field.
	ErrFieldConflict = errors.New("schema: field conflict")
)

// FieldError describes a validation failure on a single field.
type FieldError struct {
	// Platform is the resolved platform, empty when resolution failed.
	Platform Platform

	// Path is the enclosing mapping, e.g. "data". Empty for top-level fields.
	Path string

	// Field is the field name.
	Field string

	// Expected is the expected kind for ErrTypeCoercion.
	Expected string

	// Value is the offending value, nil for missing fields.
	Value any

	// Allowed lists accepted values for ErrInvalidValue on enumerations.
	Allowed []string

	// Reason adds detail to ErrInvalidValue, such as a range.
	Reason string

	// Err is one of the package sentinel errors.
	Err error
}

// Key returns the dotted field location, e.g. "data.switch_address".
func (e *FieldError) Key() string {
	if e.Path == "" {
		return e.Field
	}
	return e.Path + "." + e.Field
}

func (e *FieldError) Error() string {
	var b strings.Builder
	b.WriteString(e.Err.Error())

	switch {
	case errors.Is(e.Err, ErrUnknownPlatform):
		fmt.Fprintf(&b, ": %v", e.Value)
	case errors.Is(e.Err, ErrTypeCoercion):
		fmt.Fprintf(&b, ": %s: expected %s, got %T", e.Key(), e.Expected, e.Value)
	case errors.Is(e.Err, ErrInvalidValue):
		fmt.Fprintf(&b, ": %s: %v", e.Key(), e.Value)
		if e.Reason != "" {
			fmt.Fprintf(&b, " (%s)", e.Reason)
		}
		if len(e.Allowed) > 0 {
			fmt.Fprintf(&b, " (allowed: %s)", strings.Join(e.Allowed, ", "))
		}
	default:
		fmt.Fprintf(&b, ": %s", e.Key())
	}

	if e.Platform != "" {
		fmt.Fprintf(&b, " [platform %s]", e.Platform)
	}
	return b.String()
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

// Rules report failures without a location; Validate fills in the field.
func coercionFailure(expected string, value any) *FieldError {
	return &FieldError{Err: ErrTypeCoercion, Expected: expected, Value: value}
}

func invalidValue(value any, allowed []string, reason string) *FieldError {
	return &FieldError{Err: ErrInvalidValue, Value: value, Allowed: allowed, Reason: reason}
}
