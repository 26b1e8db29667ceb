package platform

import (
	"fmt"
	"time"
)

// Config defines the HTTP behaviour of the platform client.
type Config struct {
	// TimeoutSeconds bounds every platform call, login included.
	TimeoutSeconds int `json:"timeout_seconds"`
	// TokenBufferSeconds is the margin kept before a token expiry.
	TokenBufferSeconds int `json:"token_buffer_seconds"`
	// SessionLifetimeSeconds caps the lifetime of a session token when the
	// token does not declare a shorter expiry.
	SessionLifetimeSeconds int `json:"session_lifetime_seconds"`
	// StatusAttribute is the server attribute reporting device reachability.
	StatusAttribute string `json:"status_attribute"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 10
	}
	if c.TokenBufferSeconds <= 0 {
		c.TokenBufferSeconds = 60
	}
	if c.SessionLifetimeSeconds <= 0 {
		c.SessionLifetimeSeconds = 9000
	}
	if c.StatusAttribute == "" {
		c.StatusAttribute = "active"
	}
}

// Validate checks the configured durations.
func (c Config) Validate() error {
	if c.TokenBufferSeconds >= c.SessionLifetimeSeconds {
		return fmt.Errorf("token_buffer_seconds must be lower than session_lifetime_seconds")
	}
	return nil
}

func (c Config) timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

func (c Config) buffer() time.Duration {
	return time.Duration(c.TokenBufferSeconds) * time.Second
}

func (c Config) lifetime() time.Duration {
	return time.Duration(c.SessionLifetimeSeconds) * time.Second
}
