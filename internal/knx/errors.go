package knx

import "errors"

// Domain errors for the knx package.
var (
	// ErrInvalidGroupAddress is returned when a group address string
	// cannot be parsed.
	ErrInvalidGroupAddress = errors.New("knx: invalid group address")

	// ErrUnsupportedAddressType is returned when a value of an unexpected
	// Go type is offered as a group address.
	ErrUnsupportedAddressType = errors.New("knx: unsupported group address type")
)
