package feature

import (
	"errors"
	"fmt"
)

// Domain errors for the feature package.
var (
	// ErrFeatureUnavailable is returned when the current snapshot does not
	// contain the feature, or no snapshot has been fetched yet.
	ErrFeatureUnavailable = errors.New("feature: unavailable")

	// ErrNotMutable is returned when writing a read-only feature.
	ErrNotMutable = errors.New("feature: not mutable")

	// ErrOutOfRange is returned when a value lies outside the live bounds
	// and the bounds policy is BoundsReject.
	ErrOutOfRange = errors.New("feature: value out of range")

	// ErrInvalidNumber is returned for NaN and infinite values.
	ErrInvalidNumber = errors.New("feature: invalid number")

	// ErrDevice is returned, wrapped in a *DeviceError, when the device
	// rejects or fails a write.
	ErrDevice = errors.New("feature: device error")

	// ErrNumberNotFound is returned when a unique ID names no registered number.
	ErrNumberNotFound = errors.New("feature: number not found")

	// ErrAlreadyStarted is returned when starting a running coordinator.
	ErrAlreadyStarted = errors.New("feature: coordinator already started")

	// ErrInvalidBoundsPolicy is returned when parsing an unknown policy name.
	ErrInvalidBoundsPolicy = errors.New("feature: invalid bounds policy")
)

// DeviceError reports a failed device write.
//
// It matches both ErrDevice and the underlying transport error with
// errors.Is.
type DeviceError struct {
	DeviceID string
	Key      string
	Value    int
	Err      error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("%v: setting %s/%s to %d: %v", ErrDevice, e.DeviceID, e.Key, e.Value, e.Err)
}

func (e *DeviceError) Unwrap() []error {
	return []error{ErrDevice, e.Err}
}
