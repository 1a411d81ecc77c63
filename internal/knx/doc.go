// Package knx holds the KNX addressing primitives used when validating
// entity store configuration.
//
// KNX devices talk through group addresses. Installations use one of
// several notations for the same 16-bit value, and configuration may also
// reference internal group addresses that never reach the bus:
//
//	"1/2/3"     3-level   main 0-31, middle 0-7, sub 0-255
//	"1/234"     2-level   main 0-31, sub 0-2047
//	"2563"      free      0-65535 (string or integer)
//	"i-scene"   internal  "i", optional "-", "_" or " ", then a name
//
// Example:
//
//	addr, err := knx.ParseAddress("1/2/3")
//	if err != nil {
//	    return err
//	}
//	fmt.Println(addr.Raw()) // 2563
package knx
