package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizeLibrary(); err != nil {
		return err
	}
	if err := c.normalizeDatabase(); err != nil {
		return err
	}
	c.normalizeLifecycle()
	c.normalizeWatcher()
	if err := c.normalizeLogging(); err != nil {
		return err
	}
	c.normalizeNotifications()
	c.Users.InitialAdmin = strings.TrimSpace(c.Users.InitialAdmin)
	return nil
}

func (c *Config) normalizeLibrary() error {
	roots := make([]string, 0, len(c.Library.Roots))
	seen := make(map[string]struct{}, len(c.Library.Roots))
	for _, root := range c.Library.Roots {
		trimmed := strings.TrimSpace(root)
		if trimmed == "" {
			continue
		}
		expanded, err := expandPath(trimmed)
		if err != nil {
			return fmt.Errorf("library.roots: %w", err)
		}
		if _, dup := seen[expanded]; dup {
			continue
		}
		seen[expanded] = struct{}{}
		roots = append(roots, expanded)
	}
	c.Library.Roots = roots
	return nil
}

func (c *Config) normalizeDatabase() error {
	if strings.TrimSpace(c.Database.Path) == "" {
		c.Database.Path = defaultDatabasePath
	}
	var err error
	if c.Database.Path, err = expandPath(c.Database.Path); err != nil {
		return fmt.Errorf("database.path: %w", err)
	}
	return nil
}

func (c *Config) normalizeLifecycle() {
	if c.Lifecycle.GracePeriodDays < 0 {
		c.Lifecycle.GracePeriodDays = 0
	}
	if c.Lifecycle.ReconcileIntervalHours < 0 {
		c.Lifecycle.ReconcileIntervalHours = 0
	}
}

func (c *Config) normalizeWatcher() {
	if c.Watcher.QueueSize <= 0 {
		c.Watcher.QueueSize = defaultWatcherQueueSize
	}
}

func (c *Config) normalizeLogging() error {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
	if strings.TrimSpace(c.Logging.Dir) == "" {
		c.Logging.Dir = defaultLogDir
	}
	var err error
	if c.Logging.Dir, err = expandPath(c.Logging.Dir); err != nil {
		return fmt.Errorf("logging.dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.NtfyTopic == "" {
		if value, ok := os.LookupEnv("WINNOW_NTFY_TOPIC"); ok {
			c.Notifications.NtfyTopic = strings.TrimSpace(value)
		}
	}
	c.Notifications.NtfyServer = strings.TrimSpace(strings.TrimRight(c.Notifications.NtfyServer, "/"))
	if c.Notifications.NtfyServer == "" {
		c.Notifications.NtfyServer = defaultNtfyServer
	}
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyRequestTimeout
	}
}
