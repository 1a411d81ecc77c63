package knx

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// GroupAddress represents a KNX group address in 3-level format.
//
// Format: Main/Middle/Sub
//   - Main:   0-31 (5 bits)
//   - Middle: 0-7  (3 bits)
//   - Sub:    0-255 (8 bits)
//
// Total: 16 bits (0x0000 - 0xFFFF)
type GroupAddress struct {
	Main   uint8
	Middle uint8
	Sub    uint8
}

// Group address limits per KNX specification.
const (
	maxMain        = 31
	maxMiddle      = 7
	maxSub         = 255
	maxSubTwoLevel = 2047
	maxFree        = 65535

	// gaLevelCount is the number of levels in a 3-level group address.
	gaLevelCount = 3

	// Bit masks for extracting group address parts from uint16.
	gaMainMask   = 0x1F // 5 bits
	gaMiddleMask = 0x07 // 3 bits
	gaSubMask    = 0xFF // 8 bits
)

// ParseGroupAddress parses a 3-level group address string.
//
// Accepts formats:
//   - "1/2/3" — Standard 3-level format
//
// Parameters:
//   - s: Group address string
//
// Returns:
//   - GroupAddress: Parsed address
//   - error: ErrInvalidGroupAddress if parsing fails
func ParseGroupAddress(s string) (GroupAddress, error) {
	parts := strings.Split(s, "/")
	if len(parts) != gaLevelCount {
		return GroupAddress{}, fmt.Errorf("%w: expected 3-level format (main/middle/sub), got %q", ErrInvalidGroupAddress, s)
	}

	main, err := strconv.ParseUint(parts[0], 10, 8)
	if err != nil || main > maxMain {
		return GroupAddress{}, fmt.Errorf("%w: main group must be 0-%d, got %q", ErrInvalidGroupAddress, maxMain, parts[0])
	}

	middle, err := strconv.ParseUint(parts[1], 10, 8)
	if err != nil || middle > maxMiddle {
		return GroupAddress{}, fmt.Errorf("%w: middle group must be 0-%d, got %q", ErrInvalidGroupAddress, maxMiddle, parts[1])
	}

	sub, err := strconv.ParseUint(parts[2], 10, 8)
	if err != nil || sub > maxSub {
		return GroupAddress{}, fmt.Errorf("%w: sub group must be 0-%d, got %q", ErrInvalidGroupAddress, maxSub, parts[2])
	}

	return GroupAddress{
		Main:   uint8(main),
		Middle: uint8(middle),
		Sub:    uint8(sub),
	}, nil
}

// String returns the group address in 3-level format.
//
// Example: "1/2/3"
func (ga GroupAddress) String() string {
	return fmt.Sprintf("%d/%d/%d", ga.Main, ga.Middle, ga.Sub)
}

// ToUint16 converts the group address to a 16-bit integer.
//
// Layout: MMMM MSSS SSSS SSSS
//   - M = Main (5 bits)
//   - S = Middle (3 bits) + Sub (8 bits)
func (ga GroupAddress) ToUint16() uint16 {
	return uint16(ga.Main)<<11 | uint16(ga.Middle)<<8 | uint16(ga.Sub)
}

// GroupAddressFromUint16 creates a GroupAddress from a 16-bit integer.
func GroupAddressFromUint16(value uint16) GroupAddress {
	return GroupAddress{
		Main:   uint8((value >> 11) & gaMainMask),  //nolint:gosec // masked to 5 bits (0-31)
		Middle: uint8((value >> 8) & gaMiddleMask), //nolint:gosec // masked to 3 bits (0-7)
		Sub:    uint8(value & gaSubMask),           //nolint:gosec // masked to 8 bits (0-255)
	}
}

// IsValid returns true if the group address values are within valid ranges.
func (ga GroupAddress) IsValid() bool {
	return ga.Main <= maxMain && ga.Middle <= maxMiddle && ga.Sub <= maxSub
}

// Notation identifies how an address was written in configuration.
type Notation string

// Supported address notations.
const (
	NotationThreeLevel Notation = "3level"
	NotationTwoLevel   Notation = "2level"
	NotationFree       Notation = "free"
	NotationInternal   Notation = "internal"
)

// Address is a group address in any accepted notation.
//
// Bus addresses carry their 16-bit value; internal addresses carry only
// their name.
type Address struct {
	notation Notation
	raw      uint16
	name     string
	text     string
}

// Notation reports the notation the address was parsed from.
func (a Address) Notation() Notation { return a.notation }

// Raw returns the 16-bit bus value. Internal addresses return 0.
func (a Address) Raw() uint16 { return a.raw }

// IsInternal reports whether the address is an internal group address.
func (a Address) IsInternal() bool { return a.notation == NotationInternal }

// Name returns the name of an internal group address.
func (a Address) Name() string { return a.name }

// String returns the address in the notation it was written in.
func (a Address) String() string { return a.text }

// ParseAddress parses a group address given as a string or an integer.
//
// Integers (including integral float64 values produced by JSON decoding)
// are treated as free-format addresses.
func ParseAddress(v any) (Address, error) {
	switch t := v.(type) {
	case string:
		return parseAddressString(t)
	case int:
		return freeAddress(int64(t))
	case int64:
		return freeAddress(t)
	case uint16:
		return freeAddress(int64(t))
	case float64:
		if t != math.Trunc(t) || math.IsInf(t, 0) {
			return Address{}, fmt.Errorf("%w: %v is not an integer", ErrInvalidGroupAddress, t)
		}
		return freeAddress(int64(t))
	case json.Number:
		n, err := t.Int64()
		if err != nil {
			return Address{}, fmt.Errorf("%w: %q is not an integer", ErrInvalidGroupAddress, t.String())
		}
		return freeAddress(n)
	default:
		return Address{}, fmt.Errorf("%w: %T", ErrUnsupportedAddressType, v)
	}
}

func parseAddressString(s string) (Address, error) {
	if s == "" {
		return Address{}, fmt.Errorf("%w: empty string", ErrInvalidGroupAddress)
	}

	if s[0] == 'i' || s[0] == 'I' {
		return parseInternal(s)
	}

	switch strings.Count(s, "/") {
	case 0:
		n, err := strconv.ParseUint(s, 10, 16)
		if err != nil {
			return Address{}, fmt.Errorf("%w: free format must be 0-%d, got %q", ErrInvalidGroupAddress, maxFree, s)
		}
		return Address{notation: NotationFree, raw: uint16(n), text: s}, nil
	case 1:
		return parseTwoLevel(s)
	case 2:
		ga, err := ParseGroupAddress(s)
		if err != nil {
			return Address{}, err
		}
		return Address{notation: NotationThreeLevel, raw: ga.ToUint16(), text: s}, nil
	default:
		return Address{}, fmt.Errorf("%w: too many levels in %q", ErrInvalidGroupAddress, s)
	}
}

func parseTwoLevel(s string) (Address, error) {
	mainStr, subStr, _ := strings.Cut(s, "/")

	main, err := strconv.ParseUint(mainStr, 10, 8)
	if err != nil || main > maxMain {
		return Address{}, fmt.Errorf("%w: main group must be 0-%d, got %q", ErrInvalidGroupAddress, maxMain, mainStr)
	}

	sub, err := strconv.ParseUint(subStr, 10, 16)
	if err != nil || sub > maxSubTwoLevel {
		return Address{}, fmt.Errorf("%w: sub group must be 0-%d, got %q", ErrInvalidGroupAddress, maxSubTwoLevel, subStr)
	}

	return Address{
		notation: NotationTwoLevel,
		raw:      uint16(main)<<11 | uint16(sub),
		text:     s,
	}, nil
}

func parseInternal(s string) (Address, error) {
	name := s[1:]
	if name != "" && strings.ContainsRune("-_ ", rune(name[0])) {
		name = name[1:]
	}
	if strings.TrimSpace(name) == "" {
		return Address{}, fmt.Errorf("%w: internal group address %q has no name", ErrInvalidGroupAddress, s)
	}
	return Address{notation: NotationInternal, name: name, text: s}, nil
}

func freeAddress(n int64) (Address, error) {
	if n < 0 || n > maxFree {
		return Address{}, fmt.Errorf("%w: free format must be 0-%d, got %d", ErrInvalidGroupAddress, maxFree, n)
	}
	return Address{
		notation: NotationFree,
		raw:      uint16(n),
		text:     strconv.FormatInt(n, 10),
	}, nil
}
