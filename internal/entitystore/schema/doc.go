// Package schema validates KNX entity store configuration records.
//
// A record names a platform and carries the entity's field values:
//
//	{"platform": "switch", "data": {"switch_address": ["1/1/1"]}}
//
// The Registry holds a base schema shared by every platform and one
// extension schema per platform. Resolve reads the platform tag and
// returns the composed schema; Validate applies it, filling defaults and
// normalising values. Every failure is a *FieldError that wraps one of the
// package sentinel errors and names the platform and field involved.
//
// Schemas are immutable values built with New and Extend. Adding a
// platform means adding an Extension to the default registry in
// platforms.go; neither the resolver nor the validator changes.
//
// Validation is pure: inputs are never modified and the same input always
// yields the same result. A validated record is a fixed point, so
// re-validating Record.Map() returns an equal record.
package schema
