package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config represents the global ~/.pulse/config.toml. Every field can be
// overridden from the environment.
type Config struct {
	DefaultProfile string `toml:"default_profile" env:"PULSE_PROFILE"`
	ServerURL      string `toml:"server_url"      env:"PULSE_SERVER_URL"`
	Token          string `toml:"token,omitempty" env:"PULSE_TOKEN"`

	Identity  Identity  `toml:"identity"`
	History   History   `toml:"history"`
	Reconnect Reconnect `toml:"reconnect"`
	Typing    Typing    `toml:"typing"`
	Notify    Notify    `toml:"notify"`

	MetricsAddr string `toml:"metrics_addr,omitempty" env:"PULSE_METRICS_ADDR"`
}

// Identity overrides the user derived from the token.
type Identity struct {
	UserID   string `toml:"user_id,omitempty"  env:"PULSE_USER_ID"`
	Username string `toml:"username,omitempty" env:"PULSE_USERNAME"`
	Email    string `toml:"email,omitempty"    env:"PULSE_EMAIL"`
}

type History struct {
	Limit   int           `toml:"limit"   env:"PULSE_HISTORY_LIMIT"`
	Timeout time.Duration `toml:"timeout" env:"PULSE_HISTORY_TIMEOUT"`
}

type Reconnect struct {
	Initial time.Duration `toml:"initial" env:"PULSE_RECONNECT_INITIAL"`
	Max     time.Duration `toml:"max"     env:"PULSE_RECONNECT_MAX"`
}

type Typing struct {
	Idle time.Duration `toml:"idle" env:"PULSE_TYPING_IDLE"`
	TTL  time.Duration `toml:"ttl"  env:"PULSE_TYPING_TTL"`
}

type Notify struct {
	Enabled bool          `toml:"enabled" env:"PULSE_NOTIFY"`
	Dismiss time.Duration `toml:"dismiss" env:"PULSE_NOTIFY_DISMISS"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		History:   History{Limit: 50, Timeout: 15 * time.Second},
		Reconnect: Reconnect{Initial: time.Second, Max: 30 * time.Second},
		Typing:    Typing{Idle: 3 * time.Second, TTL: 6 * time.Second},
		Notify:    Notify{Enabled: true, Dismiss: 6 * time.Second},
	}
}

// Load reads config from the given path on top of the defaults. Returns nil
// and an error if the file is missing.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Resolve builds the effective config: defaults, then the file at path (if
// present), then the given .env files, then the process environment.
func Resolve(path string, dotenv ...string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
		cfg = Default()
	}
	for _, f := range dotenv {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// Validate checks the settings needed to reach the server.
func (c *Config) Validate() error {
	if c.ServerURL == "" {
		return errors.New("server_url is not set (config.toml or PULSE_SERVER_URL)")
	}
	if c.Token == "" {
		return errors.New("token is not set (config.toml or PULSE_TOKEN)")
	}
	if c.History.Limit < 1 || c.History.Limit > 100 {
		return fmt.Errorf("history.limit %d out of range 1..100", c.History.Limit)
	}
	if c.Reconnect.Initial <= 0 || c.Reconnect.Max < c.Reconnect.Initial {
		return fmt.Errorf("reconnect delays %s..%s are invalid", c.Reconnect.Initial, c.Reconnect.Max)
	}
	return nil
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
