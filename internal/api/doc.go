// Package api implements the HTTP REST API and WebSocket server for Gray Logic Entities.
//
// This package provides:
//   - REST endpoints for entity store CRUD, validation and schema description
//   - REST endpoints for reading and writing plug number controls
//   - WebSocket hub broadcasting entity store and number state changes
//   - JWT authentication with ticket-based WebSocket auth
//   - chi middleware for request IDs, request logging, panic recovery, CORS and body limits
//   - TLS support for production deployments
//
// # Routes
//
//	GET    /api/v1/health
//	POST   /api/v1/auth/login
//	GET    /api/v1/metrics
//	GET    /api/v1/ws?ticket=...
//	POST   /api/v1/auth/ws-ticket                    (bearer)
//	GET    /api/v1/entity-store?platform=switch      (bearer)
//	POST   /api/v1/entity-store                      (bearer)
//	POST   /api/v1/entity-store/validate             (bearer)
//	GET    /api/v1/entity-store/schema[/{platform}]  (bearer)
//	GET    /api/v1/entity-store/{unique_id}          (bearer)
//	PUT    /api/v1/entity-store/{unique_id}          (bearer)
//	DELETE /api/v1/entity-store/{unique_id}          (bearer)
//	GET    /api/v1/numbers                           (bearer)
//	GET    /api/v1/numbers/{unique_id}               (bearer)
//	PUT    /api/v1/numbers/{unique_id}/value         (bearer)
//
// # Errors
//
// Validation failures are 400 responses with code "validation_error" and
// the failing field. Number writes map out-of-range values to 400,
// read-only features to 409, missing features to 503 and device failures
// to 502.
//
// # Security
//
// Login checks the single configured admin credential in constant time.
// WebSocket connections use single-use tickets to prevent token leakage in URLs.
package api
