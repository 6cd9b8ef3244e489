package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/gofrs/flock"

	"winnow/internal/api"
	"winnow/internal/catalog"
	"winnow/internal/config"
	"winnow/internal/logging"
	"winnow/internal/notifications"
	"winnow/internal/reconciler"
	"winnow/internal/scanner"
	"winnow/internal/watcher"
)

// Daemon coordinates the background lifecycle services and enforces
// single-instance execution.
type Daemon struct {
	cfg        *config.Config
	logger     *slog.Logger
	store      *catalog.Store
	scanner    *scanner.Scanner
	reconciler *reconciler.Manager
	watcher    *watcher.Watcher
	logPath    string

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	DatabasePath string
	LockFilePath string
	Stats        catalog.LibraryStats
	StepHealth   []reconciler.Health
	LastCycle    *reconciler.CycleSummary
	WatchedRoots []string
}

// New constructs a daemon with initialized dependencies. The watcher may
// be nil when filesystem watching is disabled.
func New(cfg *config.Config, store *catalog.Store, logger *slog.Logger, sc *scanner.Scanner, rec *reconciler.Manager, w *watcher.Watcher) (*Daemon, error) {
	if cfg == nil || store == nil || logger == nil || sc == nil || rec == nil {
		return nil, errors.New("daemon requires config, store, logger, scanner, and reconciler")
	}

	lockPath := filepath.Join(filepath.Dir(cfg.Database.Path), "winnow.lock")
	return &Daemon{
		cfg:        cfg,
		logger:     logging.NewComponentLogger(logger, "daemon"),
		store:      store,
		scanner:    sc,
		reconciler: rec,
		watcher:    w,
		logPath:    filepath.Join(cfg.Logging.Dir, "winnow.log"),
		lockPath:   lockPath,
		lock:       flock.New(lockPath),
	}, nil
}

// Start acquires the daemon lock, seeds the initial admin account, runs
// the startup scan, and launches the watcher and reconcile loop.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another winnow daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)

	if err := d.seedAdmin(d.ctx); err != nil {
		d.rollbackStart()
		return err
	}

	// The startup scan runs before the watcher so the catalog reflects
	// everything already on disk; anything moved in during the gap is
	// caught by the next reconcile cycle.
	if report, err := d.scanner.FullScan(d.ctx); err != nil {
		if d.ctx.Err() != nil {
			d.rollbackStart()
			return err
		}
		logging.WarnWithContext(d.logger, "startup scan failed", "startup_scan_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check that the library roots are mounted"),
			logging.String(logging.FieldImpact, "the catalog lags the filesystem until the next reconcile cycle"))
	} else {
		d.logger.Info("startup scan complete",
			logging.Int("roots_scanned", report.RootsScanned),
			logging.Int("items_seen", report.ItemsSeen),
			logging.Int("new_items", report.NewItems),
			logging.Int64("swept_gone", report.SweptGone))
	}

	if d.watcher != nil {
		if err := d.watcher.Start(d.ctx); err != nil {
			d.rollbackStart()
			return fmt.Errorf("start watcher: %w", err)
		}
	}
	if err := d.reconciler.Start(d.ctx); err != nil {
		if d.watcher != nil {
			d.watcher.Stop()
		}
		d.rollbackStart()
		return fmt.Errorf("start reconciler: %w", err)
	}

	d.running.Store(true)
	d.logger.Info("winnow daemon started", logging.String("lock", d.lockPath))
	return nil
}

func (d *Daemon) rollbackStart() {
	_ = d.lock.Unlock()
	if d.cancel != nil {
		d.cancel()
	}
	d.ctx = nil
	d.cancel = nil
}

func (d *Daemon) seedAdmin(ctx context.Context) error {
	name := strings.TrimSpace(d.cfg.Users.InitialAdmin)
	if name == "" {
		return nil
	}
	admin, created, err := d.store.EnsureAdmin(ctx, name)
	if err != nil {
		return fmt.Errorf("seed admin account: %w", err)
	}
	if created {
		d.logger.Info("admin account created",
			logging.Int64(logging.FieldUserID, admin.ID),
			logging.String("username", admin.Username))
	}
	return nil
}

// Stop stops background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if d.watcher != nil {
		d.watcher.Stop()
	}
	d.reconciler.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("winnow daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Scan runs one full library scan immediately.
func (d *Daemon) Scan(ctx context.Context) (*scanner.Report, error) {
	if d.scanner == nil {
		return nil, errors.New("scanner unavailable")
	}
	return d.scanner.FullScan(ctx)
}

// Reconcile runs one maintenance cycle immediately.
func (d *Daemon) Reconcile(ctx context.Context) (*reconciler.CycleSummary, error) {
	if d.reconciler == nil {
		return nil, errors.New("reconciler unavailable")
	}
	return d.reconciler.RunCycle(ctx)
}

// List returns catalog items for the given scope, optionally narrowed
// to one user's view of the library.
func (d *Daemon) List(ctx context.Context, scope api.ListScope, forUser string) ([]api.Item, error) {
	result, err := api.List(ctx, api.ListRequest{Store: d.store, Scope: scope, ForUser: forUser})
	if err != nil {
		return nil, err
	}
	return result.Items, nil
}

// Describe returns one item with its vote and ownership detail.
func (d *Daemon) Describe(ctx context.Context, id int64) (api.ItemDetail, error) {
	result, err := api.Describe(ctx, api.DescribeRequest{Store: d.store, ItemID: id})
	if err != nil {
		return api.ItemDetail{}, err
	}
	return result.Detail, nil
}

// Stats returns aggregate catalog statistics.
func (d *Daemon) Stats(ctx context.Context) (catalog.LibraryStats, error) {
	if d.store == nil {
		return catalog.LibraryStats{}, errors.New("catalog store unavailable")
	}
	return d.store.Stats(ctx)
}

// DatabaseHealth returns detailed database diagnostics.
func (d *Daemon) DatabaseHealth(ctx context.Context) (catalog.DatabaseHealth, error) {
	if d.store == nil {
		return catalog.DatabaseHealth{}, errors.New("catalog store unavailable")
	}
	return d.store.CheckHealth(ctx)
}

// TestNotification triggers a test notification using the current configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if d.cfg == nil {
		return false, "configuration unavailable", errors.New("configuration unavailable")
	}
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	notifier := notifications.NewService(d.cfg)
	if err := notifier.TestNotification(ctx); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

// LogPath returns the path to the daemon log file.
func (d *Daemon) LogPath() string {
	return d.logPath
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) (Status, error) {
	stats, err := d.store.Stats(ctx)
	if err != nil {
		return Status{}, err
	}
	status := Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		DatabasePath: d.cfg.Database.Path,
		LockFilePath: d.lockPath,
		Stats:        stats,
		StepHealth:   d.reconciler.StepHealth(),
		LastCycle:    d.reconciler.LastCycle(),
	}
	if d.watcher != nil {
		status.WatchedRoots = d.watcher.WatchedRoots()
	}
	return status, nil
}
