package schema

import "math"

// Registered platforms.
const (
	PlatformSwitch       Platform = "switch"
	PlatformBinarySensor Platform = "binary_sensor"
)

// Entity categories accepted by the entity_category field.
const (
	EntityCategoryConfig     = "config"
	EntityCategoryDiagnostic = "diagnostic"
)

// Field names shared by all platforms.
const (
	FieldName           = "name"
	FieldDeviceInfo     = "device_info"
	FieldEntityCategory = "entity_category"
	FieldSyncState      = "sync_state"
)

// Platform field names.
const (
	FieldDeviceClass         = "device_class"
	FieldInvert              = "invert"
	FieldSwitchAddress       = "switch_address"
	FieldSwitchStateAddress  = "switch_state_address"
	FieldRespondToRead       = "respond_to_read"
	FieldSensorAddress       = "ga_sensor"
	FieldIgnoreInternalState = "ignore_internal_state"
	FieldContextTimeout      = "context_timeout"
	FieldResetAfter          = "reset_after"
)

const maxContextTimeoutSeconds = 10

// SwitchDeviceClasses are the accepted switch device classes.
var SwitchDeviceClasses = []string{"outlet", "switch"}

// BinarySensorDeviceClasses are the accepted binary sensor device classes.
var BinarySensorDeviceClasses = []string{
	"battery", "battery_charging", "carbon_monoxide", "cold", "connectivity",
	"door", "garage_door", "gas", "heat", "light", "lock", "moisture",
	"motion", "moving", "occupancy", "opening", "plug", "power", "presence",
	"problem", "running", "safety", "smoke", "sound", "tamper", "update",
	"vibration", "window",
}

// BaseSchema holds the fields every platform shares.
//
// entity_category is the only permissive field: an unrecognised category
// is stored as null rather than rejected.
var BaseSchema = MustNew(
	Optional(FieldName, nil, Maybe(String())),
	Optional(FieldDeviceInfo, nil, Maybe(String())),
	Optional(FieldEntityCategory, nil, Permissive(Maybe(OneOf(EntityCategoryConfig, EntityCategoryDiagnostic)))),
	Optional(FieldSyncState, true, SyncState()),
)

var switchExtension = Extension{
	Platform: PlatformSwitch,
	Fields: []Field{
		Optional(FieldDeviceClass, nil, Maybe(OneOf(SwitchDeviceClasses...))),
		Optional(FieldInvert, false, Bool()),
		Required(FieldSwitchAddress, GroupAddressList()),
		Optional(FieldSwitchStateAddress, nil, OptionalGroupAddressList()),
		Optional(FieldRespondToRead, false, Bool()),
	},
	Decode: decodeSwitch,
}

var binarySensorExtension = Extension{
	Platform: PlatformBinarySensor,
	Fields: []Field{
		Optional(FieldDeviceClass, nil, Maybe(OneOf(BinarySensorDeviceClasses...))),
		Optional(FieldInvert, false, Bool()),
		Required(FieldSensorAddress, GroupAddressList()),
		Optional(FieldIgnoreInternalState, false, Bool()),
		Optional(FieldContextTimeout, nil, Maybe(Float(0, maxContextTimeoutSeconds))),
		Optional(FieldResetAfter, nil, Maybe(Float(0, math.Inf(1)))),
	},
	Decode: decodeBinarySensor,
}

var defaultRegistry = MustNewRegistry(BaseSchema, switchExtension, binarySensorExtension)

// Default returns the process-wide registry of built-in platforms.
func Default() *Registry {
	return defaultRegistry
}
