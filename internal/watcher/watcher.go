// Package watcher reacts to filesystem changes under the library roots
// as they happen, between full scans. Watches are non-recursive: only
// the immediate children of each root produce events. A new directory
// triggers an incremental scan of its root; a removed path retires the
// exact matching item. Season-level changes inside show directories are
// left to the periodic rescan.
package watcher

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"winnow/internal/catalog"
	"winnow/internal/config"
	"winnow/internal/library"
	"winnow/internal/logging"
	"winnow/internal/scanner"
)

// Watcher owns the fsnotify subscriptions for the library roots and
// the goroutines that translate events into catalog updates.
type Watcher struct {
	store     *catalog.Store
	resolver  *library.Resolver
	scanner   *scanner.Scanner
	logger    *slog.Logger
	queueSize int

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	fsw     *fsnotify.Watcher
	watched []string
}

// New builds a watcher over the configured roots. The queue size bounds
// the event channel between the OS reader and the processor; a full
// queue blocks the reader rather than dropping events.
func New(cfg *config.Config, store *catalog.Store, resolver *library.Resolver, sc *scanner.Scanner, logger *slog.Logger) *Watcher {
	queueSize := cfg.Watcher.QueueSize
	if queueSize <= 0 {
		queueSize = 100
	}
	return &Watcher{
		store:     store,
		resolver:  resolver,
		scanner:   sc,
		logger:    logging.NewComponentLogger(logger, "watcher"),
		queueSize: queueSize,
	}
}

// Start subscribes to every root that exists on disk and launches the
// event pipeline. Missing roots are logged and skipped.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return errors.New("watcher already running")
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	var watched []string
	for _, root := range w.resolver.Roots() {
		if _, err := os.Stat(root); err != nil {
			logging.WarnWithContext(w.logger, "library root unavailable; not watching it", "watch_root_missing",
				logging.String(logging.FieldRoot, root),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check that the root is mounted"),
				logging.String(logging.FieldImpact, "changes under this root are only seen by the periodic rescan"))
			continue
		}
		if err := fsw.Add(root); err != nil {
			logging.WarnWithContext(w.logger, "could not subscribe to library root", "watch_add_failed",
				logging.String(logging.FieldRoot, root),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check inotify limits and directory permissions"),
				logging.String(logging.FieldImpact, "changes under this root are only seen by the periodic rescan"))
			continue
		}
		watched = append(watched, root)
		w.logger.Info("watching library root", logging.String(logging.FieldRoot, root))
	}
	if len(watched) == 0 {
		logging.WarnWithContext(w.logger, "no library roots available to watch", "watch_nothing",
			logging.String(logging.FieldImpact, "only the periodic rescan keeps the catalog current"))
	}

	runCtx, cancel := context.WithCancel(ctx)
	queue := make(chan fsnotify.Event, w.queueSize)

	w.fsw = fsw
	w.watched = watched
	w.cancel = cancel
	w.running = true
	w.wg.Add(2)
	go w.forward(runCtx, fsw, queue)
	go w.process(runCtx, queue)
	return nil
}

// Stop tears down the subscriptions and waits for both pipeline
// goroutines to drain.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	cancel := w.cancel
	fsw := w.fsw
	w.running = false
	w.cancel = nil
	w.fsw = nil
	w.mu.Unlock()

	cancel()
	if fsw != nil {
		_ = fsw.Close()
	}
	w.wg.Wait()
}

// Running reports whether the event pipeline is active.
func (w *Watcher) Running() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// WatchedRoots returns the roots that were successfully subscribed.
func (w *Watcher) WatchedRoots() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, len(w.watched))
	copy(out, w.watched)
	return out
}

// forward moves OS events into the bounded queue. The send blocks when
// the queue is full so bursts back-pressure into the kernel buffer
// instead of being dropped here.
func (w *Watcher) forward(ctx context.Context, fsw *fsnotify.Watcher, queue chan<- fsnotify.Event) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			select {
			case queue <- event:
			case <-ctx.Done():
				return
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("filesystem watcher error", logging.Error(err))
		}
	}
}

func (w *Watcher) process(ctx context.Context, queue <-chan fsnotify.Event) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-queue:
			w.handleEvent(ctx, event)
		}
	}
}

func (w *Watcher) handleEvent(ctx context.Context, event fsnotify.Event) {
	switch {
	case event.Has(fsnotify.Create):
		w.handleCreate(ctx, event.Name)
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		w.handleRemove(ctx, event.Name)
	}
}

// handleCreate rescans the owning root when a directory appears
// directly under it. Scanning the whole root rather than the one path
// keeps TV show directories correct: their items are the season
// subdirectories, not the directory the event named.
func (w *Watcher) handleCreate(ctx context.Context, path string) {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return
	}
	parent := filepath.Dir(path)
	if !w.resolver.IsRoot(parent) {
		return
	}

	w.logger.Info("new directory detected",
		logging.String(logging.FieldPath, path),
		logging.String(logging.FieldRoot, parent))
	if _, created, err := w.scanner.ScanRoot(ctx, parent); err != nil {
		logging.ErrorWithContext(w.logger, "incremental scan failed", "watch_scan_failed",
			logging.String(logging.FieldRoot, parent),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check that the root is readable"),
			logging.String(logging.FieldImpact, "the new directory is picked up by the next full scan"))
	} else if created > 0 {
		w.logger.Info("incremental scan registered new items",
			logging.String(logging.FieldRoot, parent),
			logging.Int("new_items", created))
	}
}

// handleRemove retires the active item registered at the exact removed
// path. Anything else that disappears is not ours to track here.
func (w *Watcher) handleRemove(ctx context.Context, path string) {
	gone, err := w.store.MarkGoneByPath(ctx, path)
	if err != nil {
		logging.ErrorWithContext(w.logger, "could not retire removed path", "watch_retire_failed",
			logging.String(logging.FieldPath, path),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "inspect the catalog database"),
			logging.String(logging.FieldImpact, "the next full scan retires it instead"))
		return
	}
	if gone {
		w.logger.Info("watched path removed; item retired",
			logging.String(logging.FieldPath, path))
	}
}
