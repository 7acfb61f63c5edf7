package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultServerHost       = "0.0.0.0"
	DefaultServerPort       = 8080
	DefaultDBPort           = 5432
	DefaultDBSSLMode        = "prefer"
	DefaultMaxConns         = 10
	DefaultMinConns         = 2
	DefaultWriteTimeout     = 5 * time.Second
	DefaultHandshakeTimeout = 10 * time.Second
	DefaultMaxMessageBytes  = 64 * 1024
)

func (c *RelayConfig) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = DefaultServerHost
	}
	if c.Server.Port == 0 {
		c.Server.Port = DefaultServerPort
	}

	if c.Database.Port == 0 {
		c.Database.Port = DefaultDBPort
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = DefaultDBSSLMode
	}
	if c.Database.MaxConns == 0 {
		c.Database.MaxConns = DefaultMaxConns
	}
	if c.Database.MinConns == 0 {
		c.Database.MinConns = DefaultMinConns
	}

	if c.Relay.WriteTimeout == 0 {
		c.Relay.WriteTimeout = DefaultWriteTimeout
	}
	if c.Relay.HandshakeTimeout == 0 {
		c.Relay.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.Relay.MaxMessageBytes == 0 {
		c.Relay.MaxMessageBytes = DefaultMaxMessageBytes
	}
}
