package plug

import "errors"

// Domain errors for the plug bridge client.
var (
	// ErrTimeout is returned when the bridge does not reply in time.
	ErrTimeout = errors.New("plug: bridge did not reply in time")

	// ErrRequestFailed is returned when the bridge answers a request with
	// success=false.
	ErrRequestFailed = errors.New("plug: request failed")

	// ErrCommandFailed is returned for failed or timeout acknowledgements.
	ErrCommandFailed = errors.New("plug: command failed")

	// ErrInvalidResponse is returned when a reply cannot be decoded.
	ErrInvalidResponse = errors.New("plug: invalid response")

	// ErrNotStarted is returned when the client is used before Start.
	ErrNotStarted = errors.New("plug: client not started")
)
