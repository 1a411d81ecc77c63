package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// envPrefix starts every environment override.
const envPrefix = "GRAYLOGIC_"

// Load builds a Config from defaults, then the YAML file at path, then
// GRAYLOGIC_* environment variables, and validates the result. Unknown
// YAML keys are rejected.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := defaultConfig()
	if err := decodeYAML(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	if err := applyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

func decodeYAML(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func defaultConfig() *Config {
	return &Config{
		Site: SiteConfig{ID: "site-001", Name: "Gray Logic", Timezone: "UTC"},
		Database: DatabaseConfig{
			Path:        "./data/graylogic.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker:    MQTTBrokerConfig{Host: "localhost", Port: 1883, ClientID: "graylogic-entities"},
			QoS:       1,
			Reconnect: MQTTReconnectConfig{InitialDelay: 1, MaxDelay: 60},
		},
		API: APIConfig{
			Host:     "0.0.0.0",
			Port:     8080,
			Timeouts: APITimeoutConfig{Read: 30, Write: 30, Idle: 60},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		InfluxDB: InfluxDBConfig{BatchSize: 100, FlushInterval: 10},
		Logging:  LoggingConfig{Level: "info", Format: "json", Output: "stdout"},
		Plugs:    PlugsConfig{PollInterval: 30, RequestTimeout: 5, BoundsPolicy: "reject"},
		Security: SecurityConfig{
			JWT:   JWTConfig{AccessTokenTTL: 15},
			Admin: AdminConfig{Username: "admin"},
		},
	}
}

// envOverride maps GRAYLOGIC_<Name> onto a config field.
type envOverride struct {
	name string
	str  func(*Config) *string
	num  func(*Config) *int
}

var envOverrides = []envOverride{
	{name: "DATABASE_PATH", str: func(c *Config) *string { return &c.Database.Path }},
	{name: "MQTT_HOST", str: func(c *Config) *string { return &c.MQTT.Broker.Host }},
	{name: "MQTT_PORT", num: func(c *Config) *int { return &c.MQTT.Broker.Port }},
	{name: "MQTT_USERNAME", str: func(c *Config) *string { return &c.MQTT.Auth.Username }},
	{name: "MQTT_PASSWORD", str: func(c *Config) *string { return &c.MQTT.Auth.Password }},
	{name: "API_HOST", str: func(c *Config) *string { return &c.API.Host }},
	{name: "API_PORT", num: func(c *Config) *int { return &c.API.Port }},
	{name: "INFLUXDB_URL", str: func(c *Config) *string { return &c.InfluxDB.URL }},
	{name: "INFLUXDB_TOKEN", str: func(c *Config) *string { return &c.InfluxDB.Token }},
	{name: "LOG_LEVEL", str: func(c *Config) *string { return &c.Logging.Level }},
	{name: "ENTITY_STORE_SEED_FILE", str: func(c *Config) *string { return &c.EntityStore.SeedFile }},
	{name: "PLUGS_BOUNDS_POLICY", str: func(c *Config) *string { return &c.Plugs.BoundsPolicy }},
	{name: "JWT_SECRET", str: func(c *Config) *string { return &c.Security.JWT.Secret }},
	{name: "ADMIN_PASSWORD", str: func(c *Config) *string { return &c.Security.Admin.Password }},
}

// applyEnv applies every set, non-empty override. lookup is os.LookupEnv
// outside tests.
func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	var errs []error
	for _, o := range envOverrides {
		key := envPrefix + o.name
		v, ok := lookup(key)
		if !ok || v == "" {
			continue
		}
		if o.str != nil {
			*o.str(cfg) = v
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %q is not an integer", key, v))
			continue
		}
		*o.num(cfg) = n
	}
	return errors.Join(errs...)
}
