// Package reconciler runs the periodic maintenance cycle that squares
// the catalog with the filesystem: rescan the roots, drop marks left by
// gone items, retire trashed items whose copies vanished, purge trash
// past its grace period, and expire stale sessions. Every step is
// independent; a failing step is logged and the rest of the cycle still
// runs.
package reconciler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"winnow/internal/catalog"
	"winnow/internal/config"
	"winnow/internal/logging"
	"winnow/internal/notifications"
	"winnow/internal/scanner"
	"winnow/internal/services"
	"winnow/internal/sessions"
	"winnow/internal/trash"
)

// Health summarizes the readiness of one reconcile step.
type Health struct {
	Name   string
	Ready  bool
	Detail string
}

// Healthy constructs a ready Health record.
func Healthy(name string) Health {
	return Health{Name: name, Ready: true}
}

// Unhealthy constructs an unhealthy Health record with context detail.
func Unhealthy(name, detail string) Health {
	return Health{Name: name, Ready: false, Detail: detail}
}

// CycleSummary captures what one reconcile cycle did.
type CycleSummary struct {
	CycleID         string
	StartedAt       time.Time
	Duration        time.Duration
	RootsScanned    int
	RootsFailed     int
	ItemsSeen       int
	NewItems        int
	SweptGone       int64
	MarksDeleted    int64
	TrashSwept      int64
	PurgeExamined   int
	Purged          int
	PurgeFailed     int
	SessionsExpired int64
	Errors          int
}

// Manager owns the reconcile loop and the health of its steps.
type Manager struct {
	store    *catalog.Store
	scanner  *scanner.Scanner
	trash    *trash.Engine
	sessions sessions.Store
	notifier notifications.Service
	logger   *slog.Logger
	interval time.Duration
	grace    time.Duration

	mu        sync.RWMutex
	running   bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	lastCycle *CycleSummary
	health    []Health
}

// NewManager constructs a reconcile manager. A nil session store gets
// the no-op implementation.
func NewManager(cfg *config.Config, store *catalog.Store, sc *scanner.Scanner, engine *trash.Engine, sessionStore sessions.Store, notifier notifications.Service, logger *slog.Logger) *Manager {
	if sessionStore == nil {
		sessionStore = sessions.Noop{}
	}
	return &Manager{
		store:    store,
		scanner:  sc,
		trash:    engine,
		sessions: sessionStore,
		notifier: notifier,
		logger:   logging.NewComponentLogger(logger, "reconciler"),
		interval: cfg.ReconcileInterval(),
		grace:    cfg.GracePeriod(),
	}
}

// Start launches the reconcile loop. An interval of zero disables the
// loop entirely; manual cycles are still available through RunCycle.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("reconciler already running")
	}
	if m.interval <= 0 {
		m.mu.Unlock()
		m.logger.Info("automatic reconcile disabled",
			logging.String("reason", "reconcile interval is zero"))
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.wg.Add(1)
	m.mu.Unlock()

	go m.run(runCtx)
	return nil
}

// Stop terminates the reconcile loop and waits for it to drain.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
}

// Running reports whether the periodic loop is active.
func (m *Manager) Running() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}

// Interval returns the configured cycle interval.
func (m *Manager) Interval() time.Duration {
	return m.interval
}

// LastCycle returns a copy of the most recent cycle summary, or nil
// when no cycle has run yet.
func (m *Manager) LastCycle() *CycleSummary {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.lastCycle == nil {
		return nil
	}
	summary := *m.lastCycle
	return &summary
}

// StepHealth returns the per-step health of the most recent cycle.
func (m *Manager) StepHealth() []Health {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Health, len(m.health))
	copy(out, m.health)
	return out
}

func (m *Manager) run(ctx context.Context) {
	defer m.wg.Done()
	m.logger.Info("reconcile loop started", logging.Duration("interval", m.interval))

	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(m.interval):
		}

		if _, err := m.RunCycle(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			m.logger.Warn("reconcile cycle aborted", logging.Error(err))
		}
	}
}

// RunCycle executes one maintenance cycle. The returned error is only
// non-nil when the context is cancelled; step failures are recorded in
// the summary and step health instead.
func (m *Manager) RunCycle(ctx context.Context) (*CycleSummary, error) {
	cycleID := uuid.NewString()
	ctx = services.WithRequestID(ctx, cycleID)
	logger := logging.WithContext(ctx, m.logger)

	summary := &CycleSummary{CycleID: cycleID, StartedAt: time.Now()}
	health := make([]Health, 0, 5)
	logger.Info("reconcile cycle started")

	if err := ctx.Err(); err != nil {
		return summary, err
	}
	if report, err := m.scanner.FullScan(ctx); err != nil {
		health = append(health, Unhealthy("scan", err.Error()))
		m.reportStepError(ctx, logger, summary, "scan", err)
	} else {
		summary.RootsScanned = report.RootsScanned
		summary.RootsFailed = report.RootsFailed
		summary.ItemsSeen = report.ItemsSeen
		summary.NewItems = report.NewItems
		summary.SweptGone = report.SweptGone
		health = append(health, Healthy("scan"))
	}

	if err := ctx.Err(); err != nil {
		return m.finishCycle(summary, health), err
	}
	if deleted, err := m.store.DeleteGoneMarks(ctx); err != nil {
		health = append(health, Unhealthy("gone-marks", err.Error()))
		m.reportStepError(ctx, logger, summary, "gone-marks", err)
	} else {
		summary.MarksDeleted = deleted
		health = append(health, Healthy("gone-marks"))
	}

	if err := ctx.Err(); err != nil {
		return m.finishCycle(summary, health), err
	}
	if swept, err := m.trash.SweepMissingTrash(ctx); err != nil {
		health = append(health, Unhealthy("trash-sweep", err.Error()))
		m.reportStepError(ctx, logger, summary, "trash-sweep", err)
	} else {
		summary.TrashSwept = swept
		health = append(health, Healthy("trash-sweep"))
	}

	if err := ctx.Err(); err != nil {
		return m.finishCycle(summary, health), err
	}
	cutoff := time.Now().Add(-m.grace)
	if report, err := m.trash.PurgeExpired(ctx, cutoff); err != nil {
		health = append(health, Unhealthy("purge", err.Error()))
		m.reportStepError(ctx, logger, summary, "purge", err)
	} else {
		summary.PurgeExamined = report.Examined
		summary.Purged = report.Purged
		summary.PurgeFailed = report.Failed
		health = append(health, Healthy("purge"))
	}

	if err := ctx.Err(); err != nil {
		return m.finishCycle(summary, health), err
	}
	if expired, err := m.sessions.ExpireStale(ctx); err != nil {
		health = append(health, Unhealthy("sessions", err.Error()))
		m.reportStepError(ctx, logger, summary, "sessions", err)
	} else {
		summary.SessionsExpired = expired
		health = append(health, Healthy("sessions"))
	}

	summary = m.finishCycle(summary, health)
	logger.Info("reconcile cycle complete",
		logging.Duration(logging.FieldDuration, summary.Duration),
		logging.Int("items_seen", summary.ItemsSeen),
		logging.Int64("swept_gone", summary.SweptGone),
		logging.Int64("marks_deleted", summary.MarksDeleted),
		logging.Int64("trash_swept", summary.TrashSwept),
		logging.Int("purged", summary.Purged),
		logging.Int("purge_failed", summary.PurgeFailed),
		logging.Int64("sessions_expired", summary.SessionsExpired),
		logging.Int("errors", summary.Errors))
	return summary, nil
}

func (m *Manager) finishCycle(summary *CycleSummary, health []Health) *CycleSummary {
	summary.Duration = time.Since(summary.StartedAt)
	m.mu.Lock()
	snapshot := *summary
	m.lastCycle = &snapshot
	m.health = health
	m.mu.Unlock()
	return summary
}

func (m *Manager) reportStepError(ctx context.Context, logger *slog.Logger, summary *CycleSummary, step string, err error) {
	summary.Errors++
	logging.ErrorWithContext(logger, "reconcile step failed", "reconcile_step_failed",
		logging.String(logging.FieldStep, step),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check the step detail; remaining steps still ran"),
		logging.String(logging.FieldImpact, "this maintenance step is skipped until the next cycle"))
	if m.notifier != nil {
		if notifyErr := m.notifier.NotifyError(ctx, err, "reconcile "+step); notifyErr != nil {
			logger.Warn("error notification failed", logging.Error(notifyErr))
		}
	}
}
