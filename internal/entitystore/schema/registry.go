package schema

import (
	"fmt"
	"sort"
)

// Platform is the discriminator tag selecting a record's extension schema.
type Platform string

// Envelope keys of a configuration record.
const (
	KeyPlatform = "platform"
	KeyData     = "data"
)

// Config is the typed payload of a validated record. Each platform
// provides its own implementation.
type Config interface {
	Platform() Platform
}

// Extension registers one platform: its fields on top of the base schema
// and a decoder from normalised data to the platform's Config type.
type Extension struct {
	Platform Platform
	Fields   []Field
	Decode   func(data map[string]any) Config
}

// Registry maps platforms to their composed schemas.
//
// A Registry is built once and is read-only afterwards, so it is safe for
// concurrent use without locking.
type Registry struct {
	base      Schema
	ext       map[Platform]Schema
	composed  map[Platform]Schema
	decoders  map[Platform]func(map[string]any) Config
	platforms []Platform
}

// NewRegistry composes base with every extension.
//
// Returns ErrFieldConflict if an extension redefines a base field without
// marking it as an override, or if a platform is registered twice.
func NewRegistry(base Schema, exts ...Extension) (*Registry, error) {
	r := &Registry{
		base:     base,
		ext:      make(map[Platform]Schema, len(exts)),
		composed: make(map[Platform]Schema, len(exts)),
		decoders: make(map[Platform]func(map[string]any) Config, len(exts)),
	}

	for _, e := range exts {
		if _, dup := r.ext[e.Platform]; dup {
			return nil, fmt.Errorf("%w: platform %q registered twice", ErrFieldConflict, e.Platform)
		}

		own, err := New(standalone(e.Fields)...)
		if err != nil {
			return nil, fmt.Errorf("platform %s: %w", e.Platform, err)
		}
		composed, err := base.Extend(e.Fields...)
		if err != nil {
			return nil, fmt.Errorf("platform %s: %w", e.Platform, err)
		}

		r.ext[e.Platform] = own
		r.composed[e.Platform] = composed
		r.decoders[e.Platform] = e.Decode
		r.platforms = append(r.platforms, e.Platform)
	}

	sort.Slice(r.platforms, func(i, j int) bool { return r.platforms[i] < r.platforms[j] })
	return r, nil
}

// standalone returns copies of fields with the override mark cleared, so
// an extension's own fields form a schema without the base.
func standalone(fields []Field) []Field {
	out := make([]Field, len(fields))
	for i, f := range fields {
		f.overrides = false
		out[i] = f
	}
	return out
}

// MustNewRegistry is like NewRegistry but panics on error.
func MustNewRegistry(base Schema, exts ...Extension) *Registry {
	r, err := NewRegistry(base, exts...)
	if err != nil {
		panic(err)
	}
	return r
}

// Base returns the fields shared by every platform.
func (r *Registry) Base() Schema { return r.base }

// Extension returns the platform's own fields, without the base fields.
func (r *Registry) Extension(p Platform) (Schema, error) {
	s, ok := r.ext[p]
	if !ok {
		return Schema{}, &FieldError{Field: KeyPlatform, Value: string(p), Err: ErrUnknownPlatform}
	}
	return s, nil
}

// Schema returns the composed base and extension schema for a platform.
func (r *Registry) Schema(p Platform) (Schema, error) {
	s, ok := r.composed[p]
	if !ok {
		return Schema{}, &FieldError{Field: KeyPlatform, Value: string(p), Err: ErrUnknownPlatform}
	}
	return s, nil
}

// Platforms returns the registered platforms in sorted order.
func (r *Registry) Platforms() []Platform {
	out := make([]Platform, len(r.platforms))
	copy(out, r.platforms)
	return out
}

// Resolve reads the platform tag of a raw record and returns the composed
// schema that applies to it. There is no fallback: an unregistered tag is
// always ErrUnknownPlatform.
func (r *Registry) Resolve(raw map[string]any) (Platform, Schema, error) {
	v, ok := raw[KeyPlatform]
	if !ok {
		return "", Schema{}, &FieldError{Field: KeyPlatform, Err: ErrMissingField}
	}
	tag, ok := v.(string)
	if !ok {
		return "", Schema{}, &FieldError{Field: KeyPlatform, Expected: KindString, Value: v, Err: ErrTypeCoercion}
	}

	p := Platform(tag)
	s, err := r.Schema(p)
	if err != nil {
		return "", Schema{}, err
	}
	return p, s, nil
}

// ValidateData validates a record's data mapping for a known platform.
func (r *Registry) ValidateData(p Platform, data map[string]any) (map[string]any, error) {
	s, err := r.Schema(p)
	if err != nil {
		return nil, err
	}
	return validateAt(s, data, KeyData, p)
}

// ValidateRecord validates a full record {platform, data, ...}.
//
// Top-level keys other than platform and data are passed through in
// Record.Extra. Validating Record.Map() again yields an equal Record.
func (r *Registry) ValidateRecord(raw map[string]any) (Record, error) {
	p, s, err := r.Resolve(raw)
	if err != nil {
		return Record{}, err
	}

	v, ok := raw[KeyData]
	if !ok {
		return Record{}, &FieldError{Platform: p, Field: KeyData, Err: ErrMissingField}
	}
	data, ok := asMapping(v)
	if !ok {
		return Record{}, &FieldError{Platform: p, Field: KeyData, Expected: KindMapping, Value: v, Err: ErrTypeCoercion}
	}

	normalised, err := validateAt(s, data, KeyData, p)
	if err != nil {
		return Record{}, err
	}

	var extra map[string]any
	for k, v := range raw {
		if k == KeyPlatform || k == KeyData {
			continue
		}
		if extra == nil {
			extra = make(map[string]any)
		}
		extra[k] = cloneValue(v)
	}

	rec := Record{Platform: p, Data: normalised, Extra: extra}
	if decode := r.decoders[p]; decode != nil {
		rec.Config = decode(normalised)
	}
	return rec, nil
}

// Record is a validated configuration record.
type Record struct {
	Platform Platform
	Data     map[string]any
	Extra    map[string]any

	// Config is the typed view of Data, nil if the platform has no decoder.
	Config Config
}

// Map returns the record as a fresh raw mapping.
func (r Record) Map() map[string]any {
	out := make(map[string]any, len(r.Extra)+2)
	for k, v := range r.Extra {
		out[k] = cloneValue(v)
	}
	out[KeyPlatform] = string(r.Platform)
	out[KeyData] = cloneMap(r.Data)
	return out
}

// FieldInfo describes a field for clients that render configuration forms.
type FieldInfo struct {
	Name       string   `json:"name"`
	Required   bool     `json:"required"`
	Default    any      `json:"default"`
	Kind       string   `json:"kind"`
	Allowed    []string `json:"allowed,omitempty"`
	Nullable   bool     `json:"nullable"`
	Permissive bool     `json:"permissive,omitempty"`
}

// PlatformInfo describes the composed schema of one platform.
type PlatformInfo struct {
	Platform Platform    `json:"platform"`
	Fields   []FieldInfo `json:"fields"`
}

// Describe returns field descriptors for every registered platform.
func (r *Registry) Describe() []PlatformInfo {
	out := make([]PlatformInfo, 0, len(r.platforms))
	for _, p := range r.platforms {
		out = append(out, PlatformInfo{Platform: p, Fields: DescribeSchema(r.composed[p])})
	}
	return out
}

// DescribeSchema returns field descriptors in declaration order.
func DescribeSchema(s Schema) []FieldInfo {
	out := make([]FieldInfo, 0, len(s.fields))
	for _, f := range s.fields {
		out = append(out, FieldInfo{
			Name:       f.name,
			Required:   f.required,
			Default:    cloneValue(f.def),
			Kind:       f.rule.kind,
			Allowed:    f.rule.Allowed(),
			Nullable:   f.rule.nullable,
			Permissive: f.rule.permissive,
		})
	}
	return out
}
