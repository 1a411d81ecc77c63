// Package entitystore persists KNX entities configured through the API.
//
// Each entry is a validated configuration record (see package schema)
// stored under a generated unique ID of the form "knx_es_<uuid>". The
// Store wraps a Repository with an in-memory cache and validates every
// create and update request before it reaches the database.
//
// Create and update requests use the same envelope as stored records,
// with update additionally naming the entry to replace:
//
//	{"platform": "switch", "data": {...}}
//	{"platform": "switch", "data": {...}, "unique_id": "knx_es_..."}
//
// An update must keep the entry's platform; changing platform means
// deleting and re-creating the entity.
//
// # Thread Safety
//
// All Store methods are safe for concurrent use. Change callbacks run
// after the cache lock is released, on the caller's goroutine.
package entitystore
