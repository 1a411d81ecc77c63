// Package config loads config.yaml.
//
// Values are layered: built-in defaults, then the YAML file, then
// GRAYLOGIC_* environment variables (GRAYLOGIC_JWT_SECRET,
// GRAYLOGIC_ADMIN_PASSWORD, GRAYLOGIC_API_PORT, ...). Secrets belong in
// the environment; keep the file mode 0600 if it holds any.
//
//	cfg, err := config.Load("configs/config.yaml")
//
// Load rejects unknown keys and reports every validation problem at once.
package config
