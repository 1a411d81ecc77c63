package entitystore

import "errors"

// Domain errors for the entitystore package.
//
// Validation failures are returned unchanged from package schema and can
// be matched against its sentinel errors.
var (
	// ErrEntityNotFound is returned when a unique ID does not exist, or
	// exists for a different platform.
	ErrEntityNotFound = errors.New("entitystore: entity not found")

	// ErrEntityExists is returned when creating an entry whose unique ID is
	// already stored.
	ErrEntityExists = errors.New("entitystore: entity already exists")

	// ErrCorruptEntry is returned when a stored entry cannot be decoded.
	ErrCorruptEntry = errors.New("entitystore: corrupt stored entry")

	// ErrInvalidDocument is returned when a records document is neither a
	// mapping nor a list of mappings.
	ErrInvalidDocument = errors.New("entitystore: invalid records document")
)
