// Package config assembles the server configuration from defaults, an
// optional YAML file and PP_* environment variables, in that order of
// precedence (environment wins).
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	// Addr is the listen address, host:port.
	Addr string `yaml:"addr"`

	// HeartbeatTimeout disconnects a long-poll client that stopped pinging.
	HeartbeatTimeout time.Duration `yaml:"heartbeat_timeout"`
	// SessionTTL keeps an empty session recoverable after the last client
	// disconnects. FinishedSessionTTL applies instead once the session is
	// finished and must be the shorter of the two.
	SessionTTL         time.Duration `yaml:"session_ttl"`
	FinishedSessionTTL time.Duration `yaml:"finished_session_ttl"`

	// PollTimeout is how long a long-poll request may be held open before
	// it is answered empty; IdleTimeout reaps channels nobody polls.
	PollTimeout time.Duration `yaml:"poll_timeout"`
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// MaxPayloadBytes caps a single inbound message on either transport.
	MaxPayloadBytes int64 `yaml:"max_payload_bytes"`

	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

func Default() Config {
	return Config{
		Addr:               ":8080",
		HeartbeatTimeout:   10 * time.Second,
		SessionTTL:         30 * time.Second,
		FinishedSessionTTL: 10 * time.Second,
		PollTimeout:        30 * time.Second,
		IdleTimeout:        60 * time.Second,
		MaxPayloadBytes:    1 << 20,
		ShutdownTimeout:    5 * time.Second,
	}
}

// Load builds the configuration. If path is non-empty the YAML file at
// that location is merged over the defaults before the environment is
// applied.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.Addr = getEnv("PP_ADDR", cfg.Addr)
	var err error
	if cfg.HeartbeatTimeout, err = getEnvAsDuration("PP_HEARTBEAT_TIMEOUT", cfg.HeartbeatTimeout); err != nil {
		return cfg, err
	}
	if cfg.SessionTTL, err = getEnvAsDuration("PP_SESSION_TTL", cfg.SessionTTL); err != nil {
		return cfg, err
	}
	if cfg.FinishedSessionTTL, err = getEnvAsDuration("PP_FINISHED_SESSION_TTL", cfg.FinishedSessionTTL); err != nil {
		return cfg, err
	}
	if cfg.PollTimeout, err = getEnvAsDuration("PP_POLL_TIMEOUT", cfg.PollTimeout); err != nil {
		return cfg, err
	}
	if cfg.IdleTimeout, err = getEnvAsDuration("PP_IDLE_TIMEOUT", cfg.IdleTimeout); err != nil {
		return cfg, err
	}
	if cfg.ShutdownTimeout, err = getEnvAsDuration("PP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout); err != nil {
		return cfg, err
	}
	if cfg.MaxPayloadBytes, err = getEnvAsInt64("PP_MAX_PAYLOAD_BYTES", cfg.MaxPayloadBytes); err != nil {
		return cfg, err
	}

	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.FinishedSessionTTL > c.SessionTTL {
		return fmt.Errorf("finished_session_ttl (%s) must not exceed session_ttl (%s)", c.FinishedSessionTTL, c.SessionTTL)
	}
	if c.MaxPayloadBytes <= 0 {
		return fmt.Errorf("max_payload_bytes must be positive, got %d", c.MaxPayloadBytes)
	}
	for name, d := range map[string]time.Duration{
		"heartbeat_timeout": c.HeartbeatTimeout,
		"session_ttl":       c.SessionTTL,
		"poll_timeout":      c.PollTimeout,
		"idle_timeout":      c.IdleTimeout,
		"shutdown_timeout":  c.ShutdownTimeout,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, d)
		}
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getEnvAsInt64(key string, defaultValue int64) (int64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}
