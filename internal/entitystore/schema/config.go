package schema

import (
	"strconv"
	"strings"
)

// Sync strategies decoded from the sync_state field.
const (
	SyncDefault = "default"
	SyncInit    = "init"
	SyncExpire  = "expire"
	SyncEvery   = "every"
)

// SyncStateSetting is the decoded sync_state field.
//
// Minutes is zero when the strategy uses its own default interval.
type SyncStateSetting struct {
	Enabled  bool
	Strategy string
	Minutes  int
}

// Common holds the decoded base fields.
type Common struct {
	Name           *string
	DeviceInfo     *string
	EntityCategory *string
	SyncState      SyncStateSetting
}

// SwitchConfig is the typed payload of a switch record.
type SwitchConfig struct {
	Common
	DeviceClass        *string
	Invert             bool
	SwitchAddress      []string
	SwitchStateAddress []string
	RespondToRead      bool
}

// Platform implements Config.
func (SwitchConfig) Platform() Platform { return PlatformSwitch }

// BinarySensorConfig is the typed payload of a binary_sensor record.
type BinarySensorConfig struct {
	Common
	DeviceClass         *string
	Invert              bool
	SensorAddress       []string
	IgnoreInternalState bool
	ContextTimeout      *float64
	ResetAfter          *float64
}

// Platform implements Config.
func (BinarySensorConfig) Platform() Platform { return PlatformBinarySensor }

func decodeSwitch(data map[string]any) Config {
	return SwitchConfig{
		Common:             decodeCommon(data),
		DeviceClass:        stringPtr(data[FieldDeviceClass]),
		Invert:             boolValue(data[FieldInvert]),
		SwitchAddress:      stringList(data[FieldSwitchAddress]),
		SwitchStateAddress: stringList(data[FieldSwitchStateAddress]),
		RespondToRead:      boolValue(data[FieldRespondToRead]),
	}
}

func decodeBinarySensor(data map[string]any) Config {
	return BinarySensorConfig{
		Common:              decodeCommon(data),
		DeviceClass:         stringPtr(data[FieldDeviceClass]),
		Invert:              boolValue(data[FieldInvert]),
		SensorAddress:       stringList(data[FieldSensorAddress]),
		IgnoreInternalState: boolValue(data[FieldIgnoreInternalState]),
		ContextTimeout:      floatPtr(data[FieldContextTimeout]),
		ResetAfter:          floatPtr(data[FieldResetAfter]),
	}
}

func decodeCommon(data map[string]any) Common {
	return Common{
		Name:           stringPtr(data[FieldName]),
		DeviceInfo:     stringPtr(data[FieldDeviceInfo]),
		EntityCategory: stringPtr(data[FieldEntityCategory]),
		SyncState:      decodeSyncState(data[FieldSyncState]),
	}
}

// decodeSyncState expects a value already normalised by the SyncState rule.
func decodeSyncState(v any) SyncStateSetting {
	switch t := v.(type) {
	case bool:
		return SyncStateSetting{Enabled: t, Strategy: SyncDefault}
	case int:
		return SyncStateSetting{Enabled: true, Strategy: SyncExpire, Minutes: t}
	case string:
		strategy, minutes, _ := strings.Cut(t, " ")
		n, _ := strconv.Atoi(minutes)
		return SyncStateSetting{Enabled: true, Strategy: strategy, Minutes: n}
	default:
		return SyncStateSetting{Enabled: true, Strategy: SyncDefault}
	}
}

func stringPtr(v any) *string {
	s, ok := v.(string)
	if !ok {
		return nil
	}
	return &s
}

func floatPtr(v any) *float64 {
	f, ok := v.(float64)
	if !ok {
		return nil
	}
	return &f
}

func boolValue(v any) bool {
	b, _ := v.(bool)
	return b
}

func stringList(v any) []string {
	list, ok := v.([]string)
	if !ok {
		return nil
	}
	out := make([]string, len(list))
	copy(out, list)
	return out
}
