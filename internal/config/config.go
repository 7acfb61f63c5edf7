package config

import "time"

// RelayConfig is the root configuration for a relay instance.
type RelayConfig struct {
	Server   ServerConfig  `yaml:"server"`
	Database DBConfig      `yaml:"database"`
	Relay    RelaySettings `yaml:"relay"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	// AllowedOrigins restricts WebSocket upgrades by Origin header.
	// Empty means any origin is accepted.
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// DBConfig holds the Postgres connection used for token and ownership lookups.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// RelaySettings holds tuning for the duplex sessions themselves.
type RelaySettings struct {
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
	MaxMessageBytes  int64         `yaml:"max_message_bytes"`
}
