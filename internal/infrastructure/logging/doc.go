// Package logging builds the slog logger shared by every component.
//
// Output is JSON by default and logfmt-style text when
// logging.format is "text". Every entry carries service and version, and
// Component adds a component attribute:
//
//	log := logging.New(cfg.Logging, version)
//	log.Component("mqtt").Info("connected", "broker", url)
//
// Attributes whose key names a credential (password, secret, token) are
// written as "[REDACTED]".
package logging
