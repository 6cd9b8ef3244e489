package reconciler_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"winnow/internal/catalog"
	"winnow/internal/config"
	"winnow/internal/library"
	"winnow/internal/logging"
	"winnow/internal/notifications"
	"winnow/internal/reconciler"
	"winnow/internal/scanner"
	"winnow/internal/sessions"
	"winnow/internal/testsupport"
	"winnow/internal/trash"
)

type stubSessions struct {
	expired int64
	err     error
}

func (s stubSessions) ExpireStale(context.Context) (int64, error) { return s.expired, s.err }

func newManager(t *testing.T, cfg *config.Config, store *catalog.Store, sessionStore sessions.Store) *reconciler.Manager {
	t.Helper()
	resolver, err := library.NewResolver(cfg.Library.Roots)
	if err != nil {
		t.Fatalf("NewResolver failed: %v", err)
	}
	notifier := notifications.NewService(cfg)
	sc := scanner.New(store, resolver, logging.NewNop())
	engine := trash.NewEngine(store, resolver, notifier, logging.NewNop(), cfg.Lifecycle.DryRun)
	return reconciler.NewManager(cfg, store, sc, engine, sessionStore, notifier, logging.NewNop())
}

func trashByQuorum(t *testing.T, cfg *config.Config, store *catalog.Store, item *catalog.MediaItem, users ...*catalog.User) {
	t.Helper()
	resolver, err := library.NewResolver(cfg.Library.Roots)
	if err != nil {
		t.Fatalf("NewResolver failed: %v", err)
	}
	engine := trash.NewEngine(store, resolver, notifications.NewService(cfg), logging.NewNop(), cfg.Lifecycle.DryRun)
	ctx := context.Background()
	for i, user := range users {
		trashed, err := engine.Mark(ctx, user.ID, item.ID)
		if err != nil {
			t.Fatalf("mark %d failed: %v", i, err)
		}
		if want := i == len(users)-1; trashed != want {
			t.Fatalf("mark %d trashed=%v, want %v", i, trashed, want)
		}
	}
}

func TestRunCyclePurgesExpiredTrash(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithGraceDays(0))
	store := testsupport.MustOpenStore(t, cfg)
	root := cfg.Library.Roots[0]

	users := []*catalog.User{
		testsupport.SeedUser(t, store, "alice"),
		testsupport.SeedUser(t, store, "bob"),
		testsupport.SeedUser(t, store, "carol"),
	}

	moviePath := filepath.Join(root, "Expired (1997)")
	testsupport.WriteFile(t, filepath.Join(moviePath, "movie.mkv"), 8)
	item := testsupport.SeedMovie(t, store, moviePath, "Expired", 1997)
	trashByQuorum(t, cfg, store, item, users...)

	manager := newManager(t, cfg, store, nil)
	summary, err := manager.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle failed: %v", err)
	}
	if summary.Purged != 1 || summary.PurgeFailed != 0 {
		t.Fatalf("expected one purge, got %#v", summary)
	}

	got, err := store.GetByID(context.Background(), item.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Status != catalog.StatusGone {
		t.Fatalf("expired item must be gone, got %s", got.Status)
	}
	trashCopy := filepath.Join(root+library.TrashSuffix, "Expired (1997)")
	if _, err := os.Stat(trashCopy); !os.IsNotExist(err) {
		t.Fatalf("trash copy must be deleted, stat err = %v", err)
	}
}

func TestRunCycleSparesTrashInsideGracePeriod(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithGraceDays(7))
	store := testsupport.MustOpenStore(t, cfg)
	root := cfg.Library.Roots[0]

	solo := testsupport.SeedUser(t, store, "solo")
	moviePath := filepath.Join(root, "Fresh (2022)")
	testsupport.WriteFile(t, filepath.Join(moviePath, "movie.mkv"), 8)
	item := testsupport.SeedMovie(t, store, moviePath, "Fresh", 2022)
	trashByQuorum(t, cfg, store, item, solo)

	manager := newManager(t, cfg, store, nil)
	summary, err := manager.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle failed: %v", err)
	}
	if summary.Purged != 0 {
		t.Fatalf("nothing should be purged inside the grace period: %#v", summary)
	}

	got, err := store.GetByID(context.Background(), item.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Status != catalog.StatusTrashed {
		t.Fatalf("item inside grace period must stay trashed, got %s", got.Status)
	}
}

func TestRunCycleSweepsVanishedTrashAndGoneMarks(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	root := cfg.Library.Roots[0]

	solo := testsupport.SeedUser(t, store, "solo")
	ctx := context.Background()

	// Trashed in the record with no copy on disk.
	vanished := testsupport.SeedMovie(t, store, filepath.Join(root, "Vanished (2008)"), "Vanished", 2008)
	if ok, err := store.SetTrashed(ctx, vanished.ID); err != nil || !ok {
		t.Fatalf("SetTrashed failed: ok=%v err=%v", ok, err)
	}
	if err := store.AddMark(ctx, solo.ID, vanished.ID); err != nil {
		t.Fatalf("AddMark failed: %v", err)
	}

	// Already gone but with a leftover mark.
	stale := testsupport.SeedMovie(t, store, filepath.Join(root, "Stale (2009)"), "Stale", 2009)
	if err := store.AddMark(ctx, solo.ID, stale.ID); err != nil {
		t.Fatalf("AddMark failed: %v", err)
	}
	if ok, err := store.SetGone(ctx, stale.ID, catalog.StatusActive); err != nil || !ok {
		t.Fatalf("SetGone failed: ok=%v err=%v", ok, err)
	}

	manager := newManager(t, cfg, store, nil)
	summary, err := manager.RunCycle(ctx)
	if err != nil {
		t.Fatalf("RunCycle failed: %v", err)
	}
	if summary.TrashSwept != 1 {
		t.Fatalf("expected one vanished item swept, got %#v", summary)
	}
	if summary.MarksDeleted != 1 {
		t.Fatalf("expected one gone mark deleted, got %#v", summary)
	}

	got, err := store.GetByID(ctx, vanished.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Status != catalog.StatusGone {
		t.Fatalf("vanished item must be retired, got %s", got.Status)
	}
}

func TestRunCycleScanRetiresMissingItems(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	root := cfg.Library.Roots[0]

	ghost := testsupport.SeedMovie(t, store, filepath.Join(root, "Ghost (1990)"), "Ghost", 1990)

	manager := newManager(t, cfg, store, nil)
	summary, err := manager.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle failed: %v", err)
	}
	if summary.SweptGone != 1 {
		t.Fatalf("expected the ghost item swept, got %#v", summary)
	}

	got, err := store.GetByID(context.Background(), ghost.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Status != catalog.StatusGone {
		t.Fatalf("missing item must be gone after scan, got %s", got.Status)
	}
}

func TestRunCycleRecordsHealthAndSessions(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	manager := newManager(t, cfg, store, stubSessions{expired: 3})
	summary, err := manager.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle failed: %v", err)
	}
	if summary.SessionsExpired != 3 {
		t.Fatalf("expected 3 sessions expired, got %#v", summary)
	}
	if summary.Errors != 0 {
		t.Fatalf("clean cycle must report zero errors: %#v", summary)
	}

	health := manager.StepHealth()
	if len(health) != 5 {
		t.Fatalf("expected 5 step health records, got %d", len(health))
	}
	for _, h := range health {
		if !h.Ready {
			t.Fatalf("step %s unexpectedly unhealthy: %s", h.Name, h.Detail)
		}
	}

	last := manager.LastCycle()
	if last == nil || last.CycleID != summary.CycleID {
		t.Fatalf("LastCycle must return the finished summary, got %#v", last)
	}
}

func TestRunCycleContinuesPastFailingStep(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	manager := newManager(t, cfg, store, stubSessions{err: errors.New("session store offline")})
	summary, err := manager.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle failed: %v", err)
	}
	if summary.Errors != 1 {
		t.Fatalf("expected one step error, got %#v", summary)
	}

	var sessionHealth *reconciler.Health
	for _, h := range manager.StepHealth() {
		if h.Name == "sessions" {
			copied := h
			sessionHealth = &copied
			break
		}
	}
	if sessionHealth == nil || sessionHealth.Ready {
		t.Fatalf("sessions step must be unhealthy, got %#v", sessionHealth)
	}
}

func TestStartDisabledWithZeroInterval(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	manager := newManager(t, cfg, store, nil)
	if err := manager.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if manager.Running() {
		t.Fatal("a zero interval must not start the loop")
	}
	manager.Stop()
}

func TestStartStopLifecycle(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Lifecycle.ReconcileIntervalHours = 1
	store := testsupport.MustOpenStore(t, cfg)

	manager := newManager(t, cfg, store, nil)
	if err := manager.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if !manager.Running() {
		t.Fatal("loop must be running after Start")
	}
	if err := manager.Start(context.Background()); err == nil {
		t.Fatal("second Start must fail while running")
	}

	manager.Stop()
	if manager.Running() {
		t.Fatal("loop must stop after Stop")
	}
	manager.Stop()
}
