package schema

import (
	"fmt"
	"sort"
)

// Field declares one named field of a schema.
//
// A required field has no default. An optional field always has one,
// which may be nil.
type Field struct {
	name      string
	required  bool
	def       any
	rule      Rule
	overrides bool
}

// Required declares a field that must be present.
func Required(name string, rule Rule) Field {
	return Field{name: name, required: true, rule: rule}
}

// Optional declares a field that is filled with def when absent.
func Optional(name string, def any, rule Rule) Field {
	return Field{name: name, def: def, rule: rule}
}

// Overrides marks the field as an intentional replacement of an existing
// field with the same name when extending a schema.
func (f Field) Overrides() Field {
	f.overrides = true
	return f
}

// Name returns the field name.
func (f Field) Name() string { return f.name }

// IsRequired reports whether the field must be present.
func (f Field) IsRequired() bool { return f.required }

// Default returns the value used when an optional field is absent.
func (f Field) Default() any { return cloneValue(f.def) }

// Rule returns the field's validation rule.
func (f Field) Rule() Rule { return f.rule }

// Schema is an immutable, ordered set of fields.
//
// Schemas are built once, usually at package init, and shared freely.
// Extend and AllowExtra return new schemas and never modify the receiver.
type Schema struct {
	fields     []Field
	index      map[string]int
	allowExtra bool
}

// New builds a schema from fields. Duplicate names are an error.
func New(fields ...Field) (Schema, error) {
	return Schema{}.Extend(fields...)
}

// MustNew is like New but panics on error. For package-level schemas.
func MustNew(fields ...Field) Schema {
	s, err := New(fields...)
	if err != nil {
		panic(err)
	}
	return s
}

// Extend returns a new schema holding the receiver's fields followed by
// fields. A field whose name already exists replaces the existing one in
// place, but only when marked with Overrides; otherwise ErrFieldConflict
// is returned. Marking a field that matches nothing is also a conflict.
func (s Schema) Extend(fields ...Field) (Schema, error) {
	out := Schema{
		fields:     make([]Field, len(s.fields), len(s.fields)+len(fields)),
		index:      make(map[string]int, len(s.fields)+len(fields)),
		allowExtra: s.allowExtra,
	}
	copy(out.fields, s.fields)
	for name, i := range s.index {
		out.index[name] = i
	}

	for _, f := range fields {
		if f.name == "" {
			return Schema{}, fmt.Errorf("%w: field with empty name", ErrFieldConflict)
		}
		if f.required && f.def != nil {
			return Schema{}, fmt.Errorf("%w: required field %q declares a default", ErrFieldConflict, f.name)
		}

		i, exists := out.index[f.name]
		switch {
		case exists && f.overrides:
			out.fields[i] = f
		case exists:
			return Schema{}, fmt.Errorf("%w: field %q already defined", ErrFieldConflict, f.name)
		case f.overrides:
			return Schema{}, fmt.Errorf("%w: field %q overrides nothing", ErrFieldConflict, f.name)
		default:
			out.index[f.name] = len(out.fields)
			out.fields = append(out.fields, f)
		}
	}
	return out, nil
}

// MustExtend is like Extend but panics on error.
func (s Schema) MustExtend(fields ...Field) Schema {
	out, err := s.Extend(fields...)
	if err != nil {
		panic(err)
	}
	return out
}

// AllowExtra returns a copy of the schema that passes undeclared fields
// through unchanged instead of rejecting them.
func (s Schema) AllowExtra() Schema {
	out, _ := s.Extend()
	out.allowExtra = true
	return out
}

// AllowsExtra reports whether undeclared fields are passed through.
func (s Schema) AllowsExtra() bool { return s.allowExtra }

// Fields returns the fields in declaration order.
func (s Schema) Fields() []Field {
	out := make([]Field, len(s.fields))
	copy(out, s.fields)
	return out
}

// Field looks up a field by name.
func (s Schema) Field(name string) (Field, bool) {
	i, ok := s.index[name]
	if !ok {
		return Field{}, false
	}
	return s.fields[i], true
}

// Len returns the number of declared fields.
func (s Schema) Len() int { return len(s.fields) }

// Validate checks raw against s and returns a new normalised mapping.
//
// Fields are checked in declaration order and the first failure is
// returned as a *FieldError. Undeclared fields are then rejected with
// ErrExtraField (in key order) unless the schema allows extras, in which
// case they are copied through. raw is never modified.
func Validate(s Schema, raw map[string]any) (map[string]any, error) {
	return validateAt(s, raw, "", "")
}

func validateAt(s Schema, raw map[string]any, path string, platform Platform) (map[string]any, error) {
	out := make(map[string]any, len(raw)+len(s.fields))

	for _, f := range s.fields {
		v, present := raw[f.name]
		if !present {
			if f.required {
				return nil, &FieldError{Platform: platform, Path: path, Field: f.name, Err: ErrMissingField}
			}
			out[f.name] = cloneValue(f.def)
			continue
		}

		nv, err := f.rule.Apply(v)
		if err != nil {
			return nil, locate(err, platform, path, f.name)
		}
		out[f.name] = nv
	}

	extra := make([]string, 0)
	for k := range raw {
		if _, declared := s.index[k]; !declared {
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)

	for _, k := range extra {
		if !s.allowExtra {
			return nil, &FieldError{Platform: platform, Path: path, Field: k, Value: raw[k], Err: ErrExtraField}
		}
		out[k] = cloneValue(raw[k])
	}

	return out, nil
}

func locate(err error, platform Platform, path, field string) error {
	fe, ok := err.(*FieldError)
	if !ok {
		return &FieldError{Platform: platform, Path: path, Field: field, Reason: err.Error(), Err: ErrInvalidValue}
	}
	located := *fe
	located.Platform = platform
	located.Path = path
	located.Field = field
	return &located
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = cloneValue(item)
		}
		return out
	case []string:
		out := make([]string, len(t))
		copy(out, t)
		return out
	default:
		return v
	}
}
