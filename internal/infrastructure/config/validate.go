package config

import (
	"fmt"
	"strings"
)

const (
	minJWTSecretLength     = 32
	minAdminPasswordLength = 8
)

// Validate reports every problem in one error.
func (c *Config) Validate() error {
	var v problems

	v.require(c.Site.ID != "", "site.id is required")
	v.require(c.Database.Path != "", "database.path is required")
	v.require(c.MQTT.QoS >= 0 && c.MQTT.QoS <= 2, "mqtt.qos must be 0, 1, or 2")
	v.require(c.API.Port >= 1 && c.API.Port <= 65535, "api.port must be between 1 and 65535")
	if c.API.TLS.Enabled {
		v.require(c.API.TLS.CertFile != "" && c.API.TLS.KeyFile != "", "api.tls needs cert_file and key_file when enabled")
	}
	if c.InfluxDB.Enabled {
		v.require(c.InfluxDB.URL != "", "influxdb.url is required when influxdb is enabled")
		v.require(c.InfluxDB.Bucket != "", "influxdb.bucket is required when influxdb is enabled")
	}

	// A weak secret lets anyone forge API tokens.
	switch secret := c.Security.JWT.Secret; {
	case secret == "":
		v.add("security.jwt.secret is required (set GRAYLOGIC_JWT_SECRET)")
	case len(secret) < minJWTSecretLength:
		v.add(fmt.Sprintf("security.jwt.secret must be at least %d characters", minJWTSecretLength))
	}
	if p := c.Security.Admin.Password; p != "" {
		v.require(len(p) >= minAdminPasswordLength,
			fmt.Sprintf("security.admin.password must be at least %d characters", minAdminPasswordLength))
	}

	c.Plugs.validate(&v)
	return v.err()
}

func (c PlugsConfig) validate(v *problems) {
	switch strings.ToLower(strings.TrimSpace(c.BoundsPolicy)) {
	case "", "reject", "clamp":
	default:
		v.add(fmt.Sprintf("plugs.bounds_policy %q must be reject or clamp", c.BoundsPolicy))
	}
	if !c.Enabled {
		return
	}

	v.require(c.PollInterval >= 1, "plugs.poll_interval must be at least 1 second")
	v.require(c.RequestTimeout >= 1, "plugs.request_timeout must be at least 1 second")
	v.require(len(c.Devices) > 0, "plugs.devices must list at least one device when plugs are enabled")

	seen := make(map[string]bool, len(c.Devices))
	for i, d := range c.Devices {
		switch {
		case d.ID == "":
			v.add(fmt.Sprintf("plugs.devices[%d].id is required", i))
		case seen[d.ID]:
			v.add(fmt.Sprintf("plugs.devices[%d].id %q is duplicated", i, d.ID))
		}
		seen[d.ID] = true
	}
}

// problems collects validation messages.
type problems []string

func (p *problems) add(msg string) { *p = append(*p, msg) }

func (p *problems) require(ok bool, msg string) {
	if !ok {
		p.add(msg)
	}
}

func (p problems) err() error {
	if len(p) == 0 {
		return nil
	}
	return fmt.Errorf("configuration errors: %s", strings.Join(p, "; "))
}
