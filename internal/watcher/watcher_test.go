package watcher_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"winnow/internal/catalog"
	"winnow/internal/config"
	"winnow/internal/library"
	"winnow/internal/logging"
	"winnow/internal/scanner"
	"winnow/internal/testsupport"
	"winnow/internal/watcher"
)

func newWatcher(t *testing.T, cfg *config.Config, store *catalog.Store) *watcher.Watcher {
	t.Helper()
	resolver, err := library.NewResolver(cfg.Library.Roots)
	if err != nil {
		t.Fatalf("NewResolver failed: %v", err)
	}
	sc := scanner.New(store, resolver, logging.NewNop())
	return watcher.New(cfg, store, resolver, sc, logging.NewNop())
}

func startWatcher(t *testing.T, w *watcher.Watcher) {
	t.Helper()
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(w.Stop)
}

// waitFor polls until cond holds or the deadline passes. Event delivery
// through inotify is fast but asynchronous, so assertions on watcher
// side effects have to poll.
func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestWatcherRegistersMovedInMovie(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	root := cfg.Library.Roots[0]
	ctx := context.Background()

	w := newWatcher(t, cfg, store)
	startWatcher(t, w)

	// Stray files directly under a root are not items and must not be
	// registered when the scan runs.
	testsupport.WriteFile(t, filepath.Join(root, "notes.txt"), 4)

	staging := filepath.Join(testsupport.BaseDir(cfg), "staging", "Fresh (2024)")
	testsupport.WriteFile(t, filepath.Join(staging, "fresh.mkv"), 128)
	moviePath := filepath.Join(root, "Fresh (2024)")
	if err := os.Rename(staging, moviePath); err != nil {
		t.Fatalf("move into library failed: %v", err)
	}

	waitFor(t, func() bool {
		item, err := store.GetByPath(ctx, moviePath)
		return err == nil && item != nil
	}, "moved-in movie never appeared in the catalog")

	item, err := store.GetByPath(ctx, moviePath)
	if err != nil || item == nil {
		t.Fatalf("GetByPath after wait: item=%v err=%v", item, err)
	}
	if item.MediaType != catalog.TypeMovie || item.Title != "Fresh" {
		t.Fatalf("unexpected item %+v", item)
	}
	if item.Year == nil || *item.Year != 2024 {
		t.Fatalf("year not parsed from directory name: %+v", item.Year)
	}

	if stray, err := store.GetByPath(ctx, filepath.Join(root, "notes.txt")); err != nil || stray != nil {
		t.Fatalf("stray file must not become an item: item=%v err=%v", stray, err)
	}
}

func TestWatcherRegistersMovedInShowSeasons(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	root := cfg.Library.Roots[0]
	ctx := context.Background()

	w := newWatcher(t, cfg, store)
	startWatcher(t, w)

	staging := filepath.Join(testsupport.BaseDir(cfg), "staging", "The Shield")
	testsupport.WriteFile(t, filepath.Join(staging, "Season 1", "e01.mkv"), 64)
	testsupport.WriteFile(t, filepath.Join(staging, "Season 2", "e01.mkv"), 64)
	showPath := filepath.Join(root, "The Shield")
	if err := os.Rename(staging, showPath); err != nil {
		t.Fatalf("move into library failed: %v", err)
	}

	seasonOne := filepath.Join(showPath, "Season 1")
	seasonTwo := filepath.Join(showPath, "Season 2")
	waitFor(t, func() bool {
		one, err := store.GetByPath(ctx, seasonOne)
		if err != nil || one == nil {
			return false
		}
		two, err := store.GetByPath(ctx, seasonTwo)
		return err == nil && two != nil
	}, "moved-in show seasons never appeared in the catalog")

	one, err := store.GetByPath(ctx, seasonOne)
	if err != nil || one == nil {
		t.Fatalf("GetByPath season 1: item=%v err=%v", one, err)
	}
	if one.MediaType != catalog.TypeTVSeason || one.Title != "The Shield" {
		t.Fatalf("unexpected season item %+v", one)
	}
	if one.Season == nil || *one.Season != 1 {
		t.Fatalf("season number not parsed: %+v", one.Season)
	}
	if show, err := store.GetByPath(ctx, showPath); err != nil || show != nil {
		t.Fatalf("show directory itself must not be an item: item=%v err=%v", show, err)
	}
}

func TestWatcherRetiresRemovedItem(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	root := cfg.Library.Roots[0]
	ctx := context.Background()

	deletedPath := filepath.Join(root, "Deleted (2001)")
	testsupport.WriteFile(t, filepath.Join(deletedPath, "movie.mkv"), 32)
	deleted := testsupport.SeedMovie(t, store, deletedPath, "Deleted", 2001)

	evictedPath := filepath.Join(root, "Evicted (2002)")
	testsupport.WriteFile(t, filepath.Join(evictedPath, "movie.mkv"), 32)
	evicted := testsupport.SeedMovie(t, store, evictedPath, "Evicted", 2002)

	w := newWatcher(t, cfg, store)
	startWatcher(t, w)

	if err := os.RemoveAll(deletedPath); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	waitFor(t, func() bool {
		item, err := store.GetByID(ctx, deleted.ID)
		return err == nil && item != nil && item.Status == catalog.StatusGone
	}, "deleted item never marked gone")

	if err := os.Rename(evictedPath, filepath.Join(testsupport.BaseDir(cfg), "evicted")); err != nil {
		t.Fatalf("rename out of library failed: %v", err)
	}
	waitFor(t, func() bool {
		item, err := store.GetByID(ctx, evicted.ID)
		return err == nil && item != nil && item.Status == catalog.StatusGone
	}, "renamed-away item never marked gone")
}

func TestWatcherSkipsMissingRoot(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	good := cfg.Library.Roots[0]
	missing := filepath.Join(testsupport.BaseDir(cfg), "never-created")
	cfg.Library.Roots = []string{good, missing}

	w := newWatcher(t, cfg, store)
	startWatcher(t, w)

	watched := w.WatchedRoots()
	if len(watched) != 1 || watched[0] != good {
		t.Fatalf("expected only the existing root to be watched, got %v", watched)
	}
}

func TestWatcherLifecycle(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	w := newWatcher(t, cfg, store)
	if w.Running() {
		t.Fatal("watcher must not report running before Start")
	}
	w.Stop()

	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if !w.Running() {
		t.Fatal("watcher must report running after Start")
	}
	if err := w.Start(context.Background()); err == nil {
		t.Fatal("second Start must fail while running")
	}

	w.Stop()
	if w.Running() {
		t.Fatal("watcher must not report running after Stop")
	}
	w.Stop()
}
