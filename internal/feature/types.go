package feature

import (
	"context"
	"encoding/json"
	"time"
)

// Type is the kind of a device feature.
type Type string

// Feature types reported by devices.
const (
	TypeNumber  Type = "number"
	TypeSwitch  Type = "switch"
	TypeSensor  Type = "sensor"
	TypeAction  Type = "action"
	TypeChoice  Type = "choice"
	TypeUnknown Type = "unknown"
)

// Snapshot is the state of one feature at the time of a poll.
type Snapshot struct {
	Key     string  `json:"key"`
	Name    string  `json:"name,omitempty"`
	Type    Type    `json:"type"`
	Value   any     `json:"value"`
	Minimum float64 `json:"minimum_value"`
	Maximum float64 `json:"maximum_value"`
	Mutable bool    `json:"mutable"`
	Unit    string  `json:"unit,omitempty"`
}

// Number returns the feature value as a float64.
func (s Snapshot) Number() (float64, bool) {
	switch v := s.Value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	}
	return 0, false
}

// DeviceSnapshot is the polled state of a device and its children, such as
// the individual sockets of a power strip.
type DeviceSnapshot struct {
	ID        string              `json:"device_id"`
	Alias     string              `json:"alias,omitempty"`
	Model     string              `json:"model,omitempty"`
	Features  map[string]Snapshot `json:"features"`
	Children  []DeviceSnapshot    `json:"children,omitempty"`
	FetchedAt time.Time           `json:"fetched_at"`
}

// Find returns the device with the given ID, searching d and its children.
func (d DeviceSnapshot) Find(deviceID string) (DeviceSnapshot, bool) {
	if d.ID == deviceID {
		return d, true
	}
	for _, child := range d.Children {
		if found, ok := child.Find(deviceID); ok {
			return found, true
		}
	}
	return DeviceSnapshot{}, false
}

// Feature returns the feature with the given key on device deviceID.
func (d DeviceSnapshot) Feature(deviceID, key string) (Snapshot, bool) {
	dev, ok := d.Find(deviceID)
	if !ok {
		return Snapshot{}, false
	}
	f, ok := dev.Features[key]
	return f, ok
}

// Walk calls fn for d and then every descendant, depth first.
func (d DeviceSnapshot) Walk(fn func(DeviceSnapshot)) {
	fn(d)
	for _, child := range d.Children {
		child.Walk(fn)
	}
}

// SetValueRequest asks a device to change one feature.
type SetValueRequest struct {
	// DeviceID is the polled (parent) device.
	DeviceID string `json:"device_id"`

	// ChildID targets a child device, empty for the parent itself.
	ChildID string `json:"child_id,omitempty"`

	Key   string `json:"key"`
	Value int    `json:"value"`
}

// DeviceClient talks to devices. Timeouts are the client's concern; the
// context only carries cancellation from the caller.
type DeviceClient interface {
	// Fetch polls a device and returns its feature tree.
	Fetch(ctx context.Context, deviceID string) (DeviceSnapshot, error)

	// SetValue writes a feature value.
	SetValue(ctx context.Context, req SetValueRequest) error
}

// Update is delivered to coordinator listeners after every poll.
type Update struct {
	Snapshot DeviceSnapshot

	// Err is set when the poll failed; Snapshot is then the last good one.
	Err error

	At time.Time
}

// Logger defines the logging interface used by this package.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Clone returns a copy of d with its own feature maps and child slices.
func (d DeviceSnapshot) Clone() DeviceSnapshot {
	out := d
	if d.Features != nil {
		out.Features = make(map[string]Snapshot, len(d.Features))
		for k, f := range d.Features {
			out.Features[k] = f
		}
	}
	if d.Children != nil {
		out.Children = make([]DeviceSnapshot, len(d.Children))
		for i, child := range d.Children {
			out.Children[i] = child.Clone()
		}
	}
	return out
}
