// Package auth provides authentication for the Gray Logic Entities API.
//
// There is a single administrative login configured in config.yaml. Its
// password may be given in plain text for development or as an Argon2id
// PHC hash (see HashPassword). Successful logins receive a short-lived
// HS256 JWT access token; there are no refresh tokens or user accounts.
package auth
