package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/nerrad567/gray-logic-entities/internal/knx"
)

// Value kinds reported in TypeCoercion errors and field descriptors.
const (
	KindString           = "string"
	KindBoolean          = "boolean"
	KindNumber           = "number"
	KindMapping          = "mapping"
	KindGroupAddressList = "group_address_list"
	KindSyncState        = "sync_state"
)

// Sync state limits, in minutes.
const (
	minSyncStateMinutes = 2
	maxSyncStateMinutes = 1440
)

var syncStatePattern = regexp.MustCompile(`^(init|expire|every)( \d*)?$`)

// Rule checks a single present field value and returns its normalised form.
//
// Rules are immutable values; wrapping helpers such as Maybe and Permissive
// return new rules.
type Rule struct {
	kind       string
	allowed    []string
	nullable   bool
	permissive bool
	apply      func(v any) (any, error)
}

// Kind returns the value kind the rule expects.
func (r Rule) Kind() string { return r.kind }

// Allowed returns the accepted values of an enumeration rule.
func (r Rule) Allowed() []string {
	if r.allowed == nil {
		return nil
	}
	out := make([]string, len(r.allowed))
	copy(out, r.allowed)
	return out
}

// Nullable reports whether null is an accepted value.
func (r Rule) Nullable() bool { return r.nullable }

// IsPermissive reports whether invalid values are reset to null instead of
// rejected.
func (r Rule) IsPermissive() bool { return r.permissive }

// Apply runs the rule against a present value.
func (r Rule) Apply(v any) (any, error) {
	out, err := r.apply(v)
	if err != nil {
		if r.permissive {
			return nil, nil
		}
		return nil, err
	}
	return out, nil
}

// String accepts string values only.
func String() Rule {
	return Rule{kind: KindString, apply: func(v any) (any, error) {
		s, ok := v.(string)
		if !ok {
			return nil, coercionFailure(KindString, v)
		}
		return s, nil
	}}
}

// Bool accepts boolean values only. Strings such as "true" are rejected.
func Bool() Rule {
	return Rule{kind: KindBoolean, apply: func(v any) (any, error) {
		b, ok := v.(bool)
		if !ok {
			return nil, coercionFailure(KindBoolean, v)
		}
		return b, nil
	}}
}

// Mapping accepts a string-keyed mapping and returns a deep copy of it.
func Mapping() Rule {
	return Rule{kind: KindMapping, apply: func(v any) (any, error) {
		m, ok := asMapping(v)
		if !ok {
			return nil, coercionFailure(KindMapping, v)
		}
		return cloneMap(m), nil
	}}
}

// OneOf accepts one of the given strings.
func OneOf(values ...string) Rule {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	allowed := make([]string, len(values))
	copy(allowed, values)

	return Rule{kind: KindString, allowed: allowed, apply: func(v any) (any, error) {
		s, ok := v.(string)
		if !ok {
			return nil, coercionFailure(KindString, v)
		}
		if _, ok := set[s]; !ok {
			return nil, invalidValue(s, allowed, "")
		}
		return s, nil
	}}
}

// Float accepts a number, or a numeric string, within [min, max].
// Use math.Inf(1) for an open upper bound.
func Float(lo, hi float64) Rule {
	return Rule{kind: KindNumber, apply: func(v any) (any, error) {
		f, ok := asFloat(v)
		if !ok {
			return nil, coercionFailure(KindNumber, v)
		}
		if math.IsNaN(f) || f < lo || f > hi {
			return nil, invalidValue(v, nil, rangeReason(lo, hi))
		}
		return f, nil
	}}
}

// Maybe accepts null in addition to whatever r accepts.
func Maybe(r Rule) Rule {
	inner := r.apply
	r.nullable = true
	r.apply = func(v any) (any, error) {
		if v == nil {
			return nil, nil
		}
		return inner(v)
	}
	return r
}

// Permissive makes r reset invalid values to null instead of failing.
func Permissive(r Rule) Rule {
	r.nullable = true
	r.permissive = true
	return r
}

// GroupAddressList accepts a group address or a non-empty list of them.
// Every address is normalised to its string form.
func GroupAddressList() Rule {
	return Rule{kind: KindGroupAddressList, apply: func(v any) (any, error) {
		list, err := groupAddresses(v)
		if err != nil {
			return nil, err
		}
		if len(list) == 0 {
			return nil, invalidValue(v, nil, "at least one group address is required")
		}
		return list, nil
	}}
}

// OptionalGroupAddressList is GroupAddressList that also accepts null.
// An empty list normalises to null.
func OptionalGroupAddressList() Rule {
	return Rule{kind: KindGroupAddressList, nullable: true, apply: func(v any) (any, error) {
		if v == nil {
			return nil, nil
		}
		list, err := groupAddresses(v)
		if err != nil {
			return nil, err
		}
		if len(list) == 0 {
			return nil, nil
		}
		return list, nil
	}}
}

// SyncState accepts the KNX state synchronisation setting:
//   - a boolean (or boolean-like string such as "on")
//   - an integer between 2 and 1440, the expiry in minutes
//   - an expression "init", "expire" or "every", optionally followed by
//     a space and a number of minutes
func SyncState() Rule {
	return Rule{kind: KindSyncState, apply: func(v any) (any, error) {
		switch t := v.(type) {
		case bool:
			return t, nil
		case string:
			return syncStateString(t)
		}

		n, integral, ok := asNumber(v)
		if !ok {
			return nil, coercionFailure(KindSyncState, v)
		}
		if !integral {
			return nil, invalidValue(v, nil, "minutes must be a whole number")
		}
		return syncStateMinutes(n, v)
	}}
}

func syncStateString(s string) (any, error) {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return syncStateMinutes(n, s)
	}
	if b, ok := parseBoolString(s); ok {
		return b, nil
	}
	if syncStatePattern.MatchString(s) {
		return s, nil
	}
	return nil, invalidValue(s, nil, `expected boolean, minutes or "init|expire|every [minutes]"`)
}

func syncStateMinutes(n int64, original any) (any, error) {
	switch {
	case n >= minSyncStateMinutes && n <= maxSyncStateMinutes:
		return int(n), nil
	case n == 0:
		return false, nil
	case n == 1:
		return true, nil
	default:
		return nil, invalidValue(original, nil, fmt.Sprintf("minutes must be %d-%d", minSyncStateMinutes, maxSyncStateMinutes))
	}
}

func parseBoolString(s string) (bool, bool) {
	switch strings.ToLower(s) {
	case "1", "true", "yes", "on", "enable":
		return true, true
	case "0", "false", "no", "off", "disable":
		return false, true
	}
	return false, false
}

func groupAddresses(v any) ([]string, error) {
	var items []any
	switch t := v.(type) {
	case nil:
		return nil, nil
	case []any:
		items = t
	case []string:
		items = make([]any, len(t))
		for i, s := range t {
			items[i] = s
		}
	default:
		items = []any{t}
	}

	out := make([]string, 0, len(items))
	for _, item := range items {
		addr, err := knx.ParseAddress(item)
		if err != nil {
			switch item.(type) {
			case string, int, int64, float64, json.Number:
				return nil, invalidValue(item, nil, err.Error())
			default:
				return nil, coercionFailure(KindGroupAddressList, v)
			}
		}
		out = append(out, addr.String())
	}
	return out, nil
}

func asMapping(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}

// asNumber reports the integer value of v and whether v was integral.
func asNumber(v any) (int64, bool, bool) {
	switch t := v.(type) {
	case int:
		return int64(t), true, true
	case int64:
		return t, true, true
	case int32:
		return int64(t), true, true
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return 0, false, true
		}
		return int64(t), t == math.Trunc(t), true
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return n, true, true
		}
		if f, err := t.Float64(); err == nil {
			return int64(f), false, true
		}
	}
	return 0, false, false
}

func asFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	}
	return 0, false
}

func rangeReason(lo, hi float64) string {
	if math.IsInf(hi, 1) {
		return fmt.Sprintf("must be at least %g", lo)
	}
	return fmt.Sprintf("must be between %g and %g", lo, hi)
}
