package entitystore

import (
	"encoding/json"
	"time"

	"github.com/nerrad567/gray-logic-entities/internal/entitystore/schema"
)

// UniqueIDPrefix starts every generated unique ID.
const UniqueIDPrefix = "knx_es_"

// Entry is a stored entity configuration.
type Entry struct {
	UniqueID  string          `json:"unique_id"`
	Platform  schema.Platform `json:"platform"`
	Data      map[string]any  `json:"data"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Record returns the entry as a raw configuration record.
func (e *Entry) Record() map[string]any {
	return map[string]any{
		schema.KeyPlatform: string(e.Platform),
		schema.KeyData:     deepCopyMap(e.Data),
	}
}

// DeepCopy returns a copy sharing no mutable state with e.
func (e *Entry) DeepCopy() *Entry {
	if e == nil {
		return nil
	}
	cp := *e
	cp.Data = deepCopyMap(e.Data)
	return &cp
}

// ChangeKind describes what happened to an entry.
type ChangeKind string

// Change kinds reported to the OnChange callback.
const (
	ChangeCreated ChangeKind = "created"
	ChangeUpdated ChangeKind = "updated"
	ChangeDeleted ChangeKind = "deleted"
)

// Change is delivered to the Store's change callback.
type Change struct {
	Kind  ChangeKind `json:"kind"`
	Entry Entry      `json:"entry"`
}

func deepCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return deepCopyMap(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = deepCopyValue(item)
		}
		return out
	case []string:
		out := make([]string, len(t))
		copy(out, t)
		return out
	case json.RawMessage:
		out := make(json.RawMessage, len(t))
		copy(out, t)
		return out
	default:
		return v
	}
}
