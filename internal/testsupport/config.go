// Package testsupport provides shared fixtures for package tests:
// temp-dir backed configs, opened catalog stores, and file helpers.
package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"winnow/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per
// test. The default library root exists on disk; siblings do not.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	root := filepath.Join(base, "library")
	if err := os.MkdirAll(root, 0o755); err != nil {
		t.Fatalf("mkdir library root: %v", err)
	}

	cfgVal := config.Default()
	cfgVal.Library.Roots = []string{root}
	cfgVal.Database.Path = filepath.Join(base, "winnow.db")
	cfgVal.Logging.Dir = filepath.Join(base, "logs")
	cfgVal.Lifecycle.ReconcileIntervalHours = 0
	cfgVal.Watcher.Enabled = false
	cfgVal.Notifications.NtfyTopic = ""

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithRoots replaces the library roots, creating each directory.
func WithRoots(roots ...string) ConfigOption {
	return func(b *configBuilder) {
		for _, root := range roots {
			if err := os.MkdirAll(root, 0o755); err != nil {
				b.t.Fatalf("mkdir root %s: %v", root, err)
			}
		}
		b.cfg.Library.Roots = roots
	}
}

// WithDryRun turns on dry-run mode for the test config.
func WithDryRun() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Lifecycle.DryRun = true
	}
}

// WithGraceDays overrides the trash grace period.
func WithGraceDays(days int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Lifecycle.GracePeriodDays = days
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Database.Path)
}
