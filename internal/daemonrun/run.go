package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"winnow/internal/catalog"
	"winnow/internal/config"
	"winnow/internal/daemon"
	"winnow/internal/ipc"
	"winnow/internal/library"
	"winnow/internal/logging"
	"winnow/internal/notifications"
	"winnow/internal/preflight"
	"winnow/internal/reconciler"
	"winnow/internal/scanner"
	"winnow/internal/trash"
	"winnow/internal/watcher"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
	SocketPath  string
	DryRun      bool
}

// Run starts the winnow daemon runtime loop.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if opts.DryRun {
		cfg.Lifecycle.DryRun = true
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Logging.Dir, fmt.Sprintf("winnow-%s.log", runID))

	level := strings.TrimSpace(opts.LogLevel)
	if level == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:            level,
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{"stdout", logPath},
		ErrorOutputPaths: []string{"stderr", logPath},
		Development:      opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	if err := ensureCurrentLogPointer(cfg.Logging.Dir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update winnow.log link: %v\n", err)
	}
	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays,
		logging.RetentionTarget{Dir: cfg.Logging.Dir, Pattern: "winnow-*.log", Exclude: []string{logPath}},
	)

	logStorageSnapshot(logger, cfg)
	if cfg.Lifecycle.DryRun {
		logging.WarnWithContext(logger, "dry-run mode active", "dry_run_mode",
			logging.Bool(logging.FieldDryRun, true),
			logging.String(logging.FieldImpact, "no files will be moved or deleted"),
		)
		logger.Warn("catalog will diverge from disk while dry-run is active",
			logging.String(logging.FieldEventType, "dry_run_divergence"),
			logging.String(logging.FieldErrorHint, "back up the database before disabling dry-run"),
		)
	}

	if err := preflight.ValidateStorage(cfg); err != nil {
		logger.Error("storage preflight failed", logging.Error(err))
		return err
	}

	pidPath := filepath.Join(filepath.Dir(cfg.Database.Path), "winnow.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	store, err := catalog.Open(cfg)
	if err != nil {
		logger.Error("open catalog store", logging.Error(err))
		return err
	}
	defer store.Close()

	resolver, err := library.NewResolver(cfg.Library.Roots)
	if err != nil {
		return fmt.Errorf("resolve library roots: %w", err)
	}
	sc := scanner.New(store, resolver, logger)
	notifier := notifications.NewService(cfg)
	engine := trash.NewEngine(store, resolver, notifier, logger, cfg.Lifecycle.DryRun)
	rec := reconciler.NewManager(cfg, store, sc, engine, nil, notifier, logger)

	var w *watcher.Watcher
	if cfg.Watcher.Enabled {
		w = watcher.New(cfg, store, resolver, sc, logger)
	}

	d, err := daemon.New(cfg, store, logger, sc, rec, w)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	socketPath := strings.TrimSpace(opts.SocketPath)
	if socketPath == "" {
		socketPath = buildSocketPath(cfg)
	}
	ipcServer, err := ipc.NewServer(signalCtx, socketPath, d, logger)
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	if err := d.Start(signalCtx); err != nil {
		logger.Warn("daemon start failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "daemon_start_failed"),
			logging.String(logging.FieldErrorHint, "check configuration and catalog database access"),
			logging.String(logging.FieldImpact, "library lifecycle maintenance is not running"),
		)
	}

	<-signalCtx.Done()
	logger.Info("winnow daemon shutting down")
	return nil
}

func buildSocketPath(cfg *config.Config) string {
	if cfg == nil {
		return filepath.Join("", "winnow.sock")
	}
	return filepath.Join(filepath.Dir(cfg.Database.Path), "winnow.sock")
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, "winnow.log")
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logStorageSnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	logger.Info("storage snapshot",
		logging.String(logging.FieldEventType, "storage_snapshot"),
		logging.Int("library_roots", len(cfg.Library.Roots)),
		logging.String("database_path", cfg.Database.Path),
		logging.Bool("watcher_enabled", cfg.Watcher.Enabled),
		logging.Int("grace_period_days", cfg.Lifecycle.GracePeriodDays),
		logging.Int("reconcile_interval_hours", cfg.Lifecycle.ReconcileIntervalHours),
		logging.Bool("ntfy_configured", strings.TrimSpace(cfg.Notifications.NtfyTopic) != ""),
		logging.Bool(logging.FieldDryRun, cfg.Lifecycle.DryRun),
	)
}
