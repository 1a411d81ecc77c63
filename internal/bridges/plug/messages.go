package plug

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-entities/internal/feature"
)

// Protocol is the bridge protocol identifier used in topics.
const Protocol = "plug"

// Request actions.
const (
	ActionReadAll = "read_all"
)

// Command names.
const (
	CommandSetValue = "set_value"
)

// RequestMessage is sent from Core to the bridge.
// Topic: graylogic/request/plug/{request_id}
type RequestMessage struct {
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
	Action    string    `json:"action"`
	DeviceID  string    `json:"device_id,omitempty"`
}

// ResponseMessage is sent from the bridge in reply to a request.
// Topic: graylogic/response/plug/{request_id}
type ResponseMessage struct {
	RequestID string          `json:"request_id"`
	Timestamp time.Time       `json:"timestamp"`
	Success   bool            `json:"success"`
	Data      json.RawMessage `json:"data,omitempty"`
	Error     *ResponseError  `json:"error,omitempty"`
}

// ResponseError contains error details for failed requests.
type ResponseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// CommandMessage is sent from Core to the bridge to change a feature.
// Topic: graylogic/command/plug/{device_id}
type CommandMessage struct {
	// ID correlates the command with its acknowledgement.
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	DeviceID  string    `json:"device_id"`
	Command   string    `json:"command"`

	// Parameters for set_value: {"child_id": "...", "key": "...", "value": 5}
	Parameters map[string]any `json:"parameters,omitempty"`

	Source string `json:"source"`
}

// MarshalJSON writes the timestamp in RFC3339.
func (m *CommandMessage) MarshalJSON() ([]byte, error) {
	type Alias CommandMessage
	return json.Marshal(&struct {
		*Alias
		Timestamp string `json:"timestamp"`
	}{
		Alias:     (*Alias)(m),
		Timestamp: m.Timestamp.UTC().Format(time.RFC3339),
	})
}

// AckStatus represents the acknowledgement status of a command.
type AckStatus string

const (
	AckAccepted AckStatus = "accepted"
	AckQueued   AckStatus = "queued"
	AckFailed   AckStatus = "failed"
	AckTimeout  AckStatus = "timeout"
)

// AckMessage is sent from the bridge to acknowledge a command.
// Topic: graylogic/ack/plug/{device_id}
type AckMessage struct {
	CommandID string    `json:"command_id"`
	Timestamp time.Time `json:"timestamp"`
	DeviceID  string    `json:"device_id"`
	Status    AckStatus `json:"status"`
	Error     *AckError `json:"error,omitempty"`
}

// AckError contains error details for failed commands.
type AckError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes reported by the bridge.
const (
	ErrCodeDeviceUnreachable = "DEVICE_UNREACHABLE"
	ErrCodeInvalidParameters = "INVALID_PARAMETERS"
	ErrCodeTimeout           = "TIMEOUT"
	ErrCodeNotConfigured     = "NOT_CONFIGURED"
)

// DevicePayload is the read_all response body.
type DevicePayload struct {
	ID       string           `json:"id"`
	Alias    string           `json:"alias,omitempty"`
	Model    string           `json:"model,omitempty"`
	Features []FeaturePayload `json:"features"`
	Children []DevicePayload  `json:"children,omitempty"`
}

// FeaturePayload describes one device feature.
type FeaturePayload struct {
	Key     string  `json:"key"`
	Name    string  `json:"name,omitempty"`
	Type    string  `json:"type"`
	Value   any     `json:"value"`
	Minimum float64 `json:"minimum_value"`
	Maximum float64 `json:"maximum_value"`
	Mutable bool    `json:"mutable"`
	Unit    string  `json:"unit,omitempty"`
}

// Snapshot converts the payload to a feature.DeviceSnapshot.
func (p DevicePayload) Snapshot(fetchedAt time.Time) feature.DeviceSnapshot {
	snap := feature.DeviceSnapshot{
		ID:        p.ID,
		Alias:     p.Alias,
		Model:     p.Model,
		Features:  make(map[string]feature.Snapshot, len(p.Features)),
		FetchedAt: fetchedAt,
	}
	for _, f := range p.Features {
		snap.Features[f.Key] = feature.Snapshot{
			Key:     f.Key,
			Name:    f.Name,
			Type:    featureType(f.Type),
			Value:   f.Value,
			Minimum: f.Minimum,
			Maximum: f.Maximum,
			Mutable: f.Mutable,
			Unit:    f.Unit,
		}
	}
	for _, child := range p.Children {
		snap.Children = append(snap.Children, child.Snapshot(fetchedAt))
	}
	return snap
}

func featureType(s string) feature.Type {
	switch t := feature.Type(s); t {
	case feature.TypeNumber, feature.TypeSwitch, feature.TypeSensor, feature.TypeAction, feature.TypeChoice:
		return t
	default:
		return feature.TypeUnknown
	}
}

func decodeDevice(raw json.RawMessage) (DevicePayload, error) {
	var p DevicePayload
	if len(raw) == 0 {
		return p, fmt.Errorf("%w: empty data", ErrInvalidResponse)
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return p, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if p.ID == "" {
		return p, fmt.Errorf("%w: device id missing", ErrInvalidResponse)
	}
	return p, nil
}
