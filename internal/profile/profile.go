// Package profile lays out the per-profile state directory under ~/.pulse.
// A profile pairs a server account with its own archive and logs.
package profile

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/matheus3301/pulse/internal/config"
)

// Default is the profile used when nothing selects another.
const Default = "main"

var nameRegexp = regexp.MustCompile(`^[a-z0-9_-]{1,64}$`)

// BaseDir returns $PULSE_HOME, or ~/.pulse.
func BaseDir() string {
	if dir := os.Getenv("PULSE_HOME"); dir != "" {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".pulse")
}

// ConfigPath returns the global config file path.
func ConfigPath() string {
	return filepath.Join(BaseDir(), "config.toml")
}

// EnvPath returns the global .env file path.
func EnvPath() string {
	return filepath.Join(BaseDir(), ".env")
}

// Dir returns the profile-specific directory.
func Dir(name string) string {
	return filepath.Join(BaseDir(), "profiles", name)
}

// DBPath returns the transcript archive path.
func DBPath(name string) string {
	return filepath.Join(Dir(name), "pulse.db")
}

// LogPath returns the log file path.
func LogPath(name string) string {
	return filepath.Join(Dir(name), "logs", "pulse.log")
}

// EnsureDir creates the profile directory tree with owner-only permissions.
func EnsureDir(name string) error {
	return os.MkdirAll(filepath.Dir(LogPath(name)), 0700)
}

// Resolve picks the active profile: the flag, then the config's
// default_profile (which PULSE_PROFILE overrides), then Default.
func Resolve(flagOverride string, cfg *config.Config) string {
	if flagOverride != "" {
		return flagOverride
	}
	if cfg != nil && cfg.DefaultProfile != "" {
		return cfg.DefaultProfile
	}
	return Default
}

// ValidateName checks that name is usable as a profile directory.
func ValidateName(name string) error {
	if !nameRegexp.MatchString(name) {
		return fmt.Errorf("invalid profile name %q: must match ^[a-z0-9_-]{1,64}$", name)
	}
	return nil
}
