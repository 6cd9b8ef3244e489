package config

import (
	"errors"
	"fmt"
	"strings"

	"winnow/internal/library"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateLibrary(); err != nil {
		return err
	}
	if err := c.validateDatabase(); err != nil {
		return err
	}
	if err := c.validateWatcher(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateLibrary() error {
	if len(c.Library.Roots) == 0 {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/winnow/config.toml"
		}
		return fmt.Errorf("library.roots must list at least one directory. Edit %s (create with 'winnow config init')", defaultPath)
	}
	for _, root := range c.Library.Roots {
		if _, _, err := library.DeriveSiblings(root); err != nil {
			return fmt.Errorf("library.roots: %w", err)
		}
	}
	return nil
}

func (c *Config) validateDatabase() error {
	if strings.TrimSpace(c.Database.Path) == "" {
		return errors.New("database.path must be set")
	}
	return nil
}

func (c *Config) validateWatcher() error {
	if c.Watcher.QueueSize < 1 {
		return errors.New("watcher.queue_size must be positive")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.NtfyTopic == "" {
		return nil
	}
	if strings.TrimSpace(c.Notifications.NtfyServer) == "" {
		return errors.New("notifications.ntfy_server must be set when notifications.ntfy_topic is set")
	}
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive")
	}
	return nil
}
