package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Library describes the media directories the engine manages.
type Library struct {
	Roots []string `toml:"roots"`
}

// Database locates the catalog database file.
type Database struct {
	Path string `toml:"path"`
}

// Lifecycle contains quorum-deletion timing knobs.
type Lifecycle struct {
	GracePeriodDays        int  `toml:"grace_period_days"`
	ReconcileIntervalHours int  `toml:"reconcile_interval_hours"`
	DryRun                 bool `toml:"dry_run"`
}

// Watcher contains filesystem event subscription settings.
type Watcher struct {
	Enabled   bool `toml:"enabled"`
	QueueSize int  `toml:"queue_size"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	Dir           string `toml:"dir"`
	RetentionDays int    `toml:"retention_days"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	NtfyServer     string `toml:"ntfy_server"`
	RequestTimeout int    `toml:"request_timeout"`
	Trashed        bool   `toml:"trashed"`
	Purged         bool   `toml:"purged"`
	Rescued        bool   `toml:"rescued"`
	Errors         bool   `toml:"errors"`
}

// Users contains user bootstrap settings.
type Users struct {
	InitialAdmin string `toml:"initial_admin"`
}

// Config encapsulates all configuration values for Winnow.
//
// Configuration sections by subsystem:
//   - Library: managed media root directories
//   - Database: catalog database file location
//   - Lifecycle: grace period, reconcile interval, dry-run switch
//   - Watcher: filesystem event subscription and queue sizing
//   - Logging: log format, level, directory, and retention
//   - Notifications: ntfy push notification settings
//   - Users: initial admin bootstrap
type Config struct {
	Library       Library       `toml:"library"`
	Database      Database      `toml:"database"`
	Lifecycle     Lifecycle     `toml:"lifecycle"`
	Watcher       Watcher       `toml:"watcher"`
	Logging       Logging       `toml:"logging"`
	Notifications Notifications `toml:"notifications"`
	Users         Users         `toml:"users"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/winnow/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

// Inspect parses and normalizes a configuration file without validating
// it, so callers can render an incomplete config (no library roots yet)
// instead of erroring out.
func Inspect(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath("~/.config/winnow/config.toml")
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("winnow.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories the daemon writes to. Library
// roots are deliberately not created here; a missing root usually means an
// absent mount and is surfaced by preflight instead of being papered over.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Logging.Dir, filepath.Dir(c.Database.Path)}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// GracePeriod returns the trash grace period as a duration.
func (c *Config) GracePeriod() time.Duration {
	return time.Duration(c.Lifecycle.GracePeriodDays) * 24 * time.Hour
}

// ReconcileInterval returns the reconcile cadence. Zero disables the
// periodic loop.
func (c *Config) ReconcileInterval() time.Duration {
	return time.Duration(c.Lifecycle.ReconcileIntervalHours) * time.Hour
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
