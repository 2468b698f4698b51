package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Stream   StreamConfig   `yaml:"stream"`
	Database DatabaseConfig `yaml:"database"`
}

type ServerConfig struct {
	Port           int      `yaml:"port"`
	Host           string   `yaml:"host"`
	AuthToken      string   `yaml:"auth_token"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type StreamConfig struct {
	// PollInterval is the shared change-poll period. One timer serves
	// every connected client.
	PollInterval time.Duration `yaml:"poll_interval"`

	// HeartbeatInterval is the per-connection keep-alive period. Kept
	// deliberately longer than PollInterval; heartbeats are transport
	// keep-alive, not application data.
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`

	// ResultLimit caps each source's per-tick result count.
	ResultLimit int `yaml:"result_limit"`

	// SendBuffer is the per-subscriber outbound buffer size. A client
	// that falls this far behind is treated as broken and dropped.
	SendBuffer int `yaml:"send_buffer"`
}

type DatabaseConfig struct {
	// DSN is the Postgres connection string for the CRM database.
	DSN string `yaml:"dsn"`
}

// Default returns the built-in configuration used when no config file is
// present (e.g. mock mode).
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: 8080,
			Host: "0.0.0.0",
		},
		Stream: StreamConfig{
			PollInterval:      10 * time.Second,
			HeartbeatInterval: 30 * time.Second,
			ResultLimit:       10,
			SendBuffer:        64,
		},
	}
}

// Load reads a YAML config file, applying defaults for any omitted field.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}
