package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestSaveAndLoad(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.toml")

	cfg := Default()
	cfg.DefaultProfile = "work"
	cfg.ServerURL = "https://chat.example.com"
	cfg.Reconnect.Max = 10 * time.Second
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.DefaultProfile != "work" {
		t.Errorf("DefaultProfile = %q, want %q", loaded.DefaultProfile, "work")
	}
	if loaded.ServerURL != "https://chat.example.com" {
		t.Errorf("ServerURL = %q", loaded.ServerURL)
	}
	if loaded.Reconnect.Max != 10*time.Second {
		t.Errorf("Reconnect.Max = %s, want 10s", loaded.Reconnect.Max)
	}
}

func TestLoadDurationStrings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	data := "server_url = \"http://localhost:8000\"\n\n[typing]\nidle = \"2s\"\n"
	if err := os.WriteFile(path, []byte(data), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Typing.Idle != 2*time.Second {
		t.Errorf("Typing.Idle = %s, want 2s", cfg.Typing.Idle)
	}
	// Unset keys keep their defaults.
	if cfg.Typing.TTL != 6*time.Second {
		t.Errorf("Typing.TTL = %s, want 6s", cfg.Typing.TTL)
	}
	if cfg.History.Limit != 50 {
		t.Errorf("History.Limit = %d, want 50", cfg.History.Limit)
	}
}

func TestLoadMissing(t *testing.T) {
	_, err := Load("/nonexistent/config.toml")
	if err == nil {
		t.Error("Load() expected error for missing file")
	}
}

func TestResolveMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Resolve(filepath.Join(t.TempDir(), "none.toml"), filepath.Join(t.TempDir(), ".env"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Reconnect.Initial != time.Second {
		t.Errorf("Reconnect.Initial = %s, want 1s", cfg.Reconnect.Initial)
	}
}

func TestResolveEnvOverridesFile(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.toml")
	cfg := Default()
	cfg.ServerURL = "http://file"
	cfg.Token = "file-token"
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}

	t.Setenv("PULSE_SERVER_URL", "http://env")
	t.Setenv("PULSE_TYPING_IDLE", "500ms")

	got, err := Resolve(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.ServerURL != "http://env" {
		t.Errorf("ServerURL = %q, want env override", got.ServerURL)
	}
	if got.Token != "file-token" {
		t.Errorf("Token = %q, want file value", got.Token)
	}
	if got.Typing.Idle != 500*time.Millisecond {
		t.Errorf("Typing.Idle = %s, want 500ms", got.Typing.Idle)
	}
}

func TestResolveDotenv(t *testing.T) {
	tmpDir := t.TempDir()
	dotenv := filepath.Join(tmpDir, ".env")
	if err := os.WriteFile(dotenv, []byte("PULSE_USERNAME=dotenv-user\n"), 0600); err != nil {
		t.Fatal(err)
	}
	// godotenv sets the variable for the process; register cleanup via Setenv.
	t.Setenv("PULSE_USERNAME", "")
	if err := os.Unsetenv("PULSE_USERNAME"); err != nil {
		t.Fatal(err)
	}

	cfg, err := Resolve(filepath.Join(tmpDir, "none.toml"), dotenv)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Identity.Username != "dotenv-user" {
		t.Errorf("Identity.Username = %q, want dotenv-user", cfg.Identity.Username)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"complete", func(c *Config) {}, false},
		{"no server", func(c *Config) { c.ServerURL = "" }, true},
		{"no token", func(c *Config) { c.Token = "" }, true},
		{"limit too large", func(c *Config) { c.History.Limit = 101 }, true},
		{"max below initial", func(c *Config) { c.Reconnect.Max = time.Millisecond }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.ServerURL = "http://localhost:8000"
			cfg.Token = "t"
			tt.mutate(cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSavePermissions(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.toml")

	if err := Save(path, &Config{DefaultProfile: "main"}); err != nil {
		t.Fatal(err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	perm := info.Mode().Perm()
	if perm != 0600 {
		t.Errorf("file permission = %o, want 0600", perm)
	}
}
