package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	yaml := `
server:
  host: 127.0.0.1
  port: 9000
database:
  host: localhost
  port: 5432
  name: dashboard
  user: relay
  password: testpass
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("Server.Host = %q, want %q", cfg.Server.Host, "127.0.0.1")
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 9000)
	}
	if cfg.Database.Name != "dashboard" {
		t.Errorf("Database.Name = %q, want %q", cfg.Database.Name, "dashboard")
	}
}

func TestLoadWithEnvSubstitution(t *testing.T) {
	t.Setenv("TEST_DB_PASSWORD", "secret123")

	yaml := `
database:
  host: localhost
  name: dashboard
  user: relay
  password: ${TEST_DB_PASSWORD}
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Database.Password != "secret123" {
		t.Errorf("Database.Password = %q, want %q", cfg.Database.Password, "secret123")
	}
}

func TestLoadWithDefaults(t *testing.T) {
	yaml := `
database:
  host: localhost
  name: dashboard
  user: relay
  password: testpass
`
	path := writeTempFile(t, yaml)

	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}

	if cfg.Server.Port != DefaultServerPort {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, DefaultServerPort)
	}
	if cfg.Database.Port != DefaultDBPort {
		t.Errorf("Database.Port = %d, want %d", cfg.Database.Port, DefaultDBPort)
	}
	if cfg.Database.SSLMode != DefaultDBSSLMode {
		t.Errorf("Database.SSLMode = %q, want %q", cfg.Database.SSLMode, DefaultDBSSLMode)
	}
	if cfg.Relay.WriteTimeout != DefaultWriteTimeout {
		t.Errorf("Relay.WriteTimeout = %v, want %v", cfg.Relay.WriteTimeout, DefaultWriteTimeout)
	}
	if cfg.Relay.MaxMessageBytes != DefaultMaxMessageBytes {
		t.Errorf("Relay.MaxMessageBytes = %d, want %d", cfg.Relay.MaxMessageBytes, DefaultMaxMessageBytes)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *RelayConfig {
		return &RelayConfig{
			Server: ServerConfig{Host: "0.0.0.0", Port: 8080},
			Database: DBConfig{
				Host:     "localhost",
				Port:     5432,
				Name:     "dashboard",
				User:     "relay",
				Password: "testpass",
				MaxConns: 10,
				MinConns: 2,
			},
			Relay: RelaySettings{
				WriteTimeout:     5 * time.Second,
				HandshakeTimeout: 10 * time.Second,
				MaxMessageBytes:  64 * 1024,
			},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*RelayConfig)
		wantErr bool
	}{
		{
			name:   "valid config",
			mutate: func(c *RelayConfig) {},
		},
		{
			name:    "invalid port",
			mutate:  func(c *RelayConfig) { c.Server.Port = 70000 },
			wantErr: true,
		},
		{
			name:    "missing db host",
			mutate:  func(c *RelayConfig) { c.Database.Host = "" },
			wantErr: true,
		},
		{
			name:    "missing db password",
			mutate:  func(c *RelayConfig) { c.Database.Password = "" },
			wantErr: true,
		},
		{
			name:    "min conns exceeds max",
			mutate:  func(c *RelayConfig) { c.Database.MinConns = 20 },
			wantErr: true,
		},
		{
			name:    "zero write timeout",
			mutate:  func(c *RelayConfig) { c.Relay.WriteTimeout = 0 },
			wantErr: true,
		},
		{
			name:    "zero max message bytes",
			mutate:  func(c *RelayConfig) { c.Relay.MaxMessageBytes = 0 },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadAndValidate_MissingFile(t *testing.T) {
	_, err := LoadAndValidate("/nonexistent/relay.yaml")
	if err == nil {
		t.Error("expected error for missing file")
	}
}

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "relay.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}
