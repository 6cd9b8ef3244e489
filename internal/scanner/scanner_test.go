package scanner_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"winnow/internal/catalog"
	"winnow/internal/library"
	"winnow/internal/logging"
	"winnow/internal/scanner"
	"winnow/internal/testsupport"
)

func newScanner(t *testing.T, store *catalog.Store, roots ...string) *scanner.Scanner {
	t.Helper()
	resolver, err := library.NewResolver(roots)
	if err != nil {
		t.Fatalf("NewResolver failed: %v", err)
	}
	return scanner.New(store, resolver, logging.NewNop())
}

func TestScanRootDiscoversMoviesAndSeasons(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	root := cfg.Library.Roots[0]

	testsupport.WriteFile(t, filepath.Join(root, "Inception (2010)", "movie.mkv"), 100)
	testsupport.WriteFile(t, filepath.Join(root, "Plain Movie", "film.mkv"), 10)
	testsupport.WriteFile(t, filepath.Join(root, "The Wire", "Season 1", "e01.mkv"), 50)
	testsupport.WriteFile(t, filepath.Join(root, "The Wire", "Season 1", "e02.mkv"), 25)
	testsupport.WriteFile(t, filepath.Join(root, "The Wire", "Season 2", "e01.mkv"), 60)
	testsupport.WriteFile(t, filepath.Join(root, "The Wire", "extras", "bonus.mkv"), 5)
	testsupport.WriteFile(t, filepath.Join(root, "loose-notes.txt"), 1)

	sc := newScanner(t, store, root)
	ctx := context.Background()

	seen, created, err := sc.ScanRoot(ctx, root)
	if err != nil {
		t.Fatalf("ScanRoot failed: %v", err)
	}
	if len(seen) != 4 {
		t.Fatalf("expected 4 item paths, got %d: %v", len(seen), seen)
	}
	if created != 4 {
		t.Fatalf("expected 4 new items, got %d", created)
	}

	if _, again, err := sc.ScanRoot(ctx, root); err != nil {
		t.Fatalf("ScanRoot rescan failed: %v", err)
	} else if again != 0 {
		t.Fatalf("rescan must not report existing items as new, got %d", again)
	}

	movie, err := store.GetByPath(ctx, filepath.Join(root, "Inception (2010)"))
	if err != nil {
		t.Fatalf("GetByPath failed: %v", err)
	}
	if movie == nil || movie.Title != "Inception" || movie.Year == nil || *movie.Year != 2010 {
		t.Fatalf("unexpected movie row: %#v", movie)
	}
	if movie.MediaType != catalog.TypeMovie || movie.SizeBytes != 100 {
		t.Fatalf("unexpected movie attributes: %#v", movie)
	}

	plain, err := store.GetByPath(ctx, filepath.Join(root, "Plain Movie"))
	if err != nil {
		t.Fatalf("GetByPath failed: %v", err)
	}
	if plain == nil || plain.Title != "Plain Movie" || plain.Year != nil {
		t.Fatalf("unexpected yearless movie: %#v", plain)
	}

	seasonOne, err := store.GetByPath(ctx, filepath.Join(root, "The Wire", "Season 1"))
	if err != nil {
		t.Fatalf("GetByPath failed: %v", err)
	}
	if seasonOne == nil || seasonOne.MediaType != catalog.TypeTVSeason {
		t.Fatalf("unexpected season row: %#v", seasonOne)
	}
	if seasonOne.Title != "The Wire" || seasonOne.Season == nil || *seasonOne.Season != 1 {
		t.Fatalf("season must carry the show title and number: %#v", seasonOne)
	}
	if seasonOne.SizeBytes != 75 {
		t.Fatalf("expected season size 75, got %d", seasonOne.SizeBytes)
	}

	// The show directory itself is not an item, nor are its extras.
	if item, _ := store.GetByPath(ctx, filepath.Join(root, "The Wire")); item != nil {
		t.Fatalf("show directory must not be registered: %#v", item)
	}
	if item, _ := store.GetByPath(ctx, filepath.Join(root, "The Wire", "extras")); item != nil {
		t.Fatalf("non-season subdirectory must not be registered: %#v", item)
	}
}

func TestScanRootMissingRootFails(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	root := cfg.Library.Roots[0]

	sc := newScanner(t, store, root)
	if _, _, err := sc.ScanRoot(context.Background(), filepath.Join(root, "absent")); err == nil {
		t.Fatal("expected error scanning a missing directory")
	}
}

func TestFullScanSweepsMissingItems(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	root := cfg.Library.Roots[0]

	testsupport.WriteFile(t, filepath.Join(root, "Kept (2001)", "movie.mkv"), 10)
	ghost := testsupport.SeedMovie(t, store, filepath.Join(root, "Ghost (1990)"), "Ghost", 1990)

	sc := newScanner(t, store, root)
	report, err := sc.FullScan(context.Background())
	if err != nil {
		t.Fatalf("FullScan failed: %v", err)
	}
	if report.RootsScanned != 1 || report.RootsFailed != 0 {
		t.Fatalf("unexpected report: %#v", report)
	}
	if report.ItemsSeen != 1 || report.NewItems != 1 || report.SweptGone != 1 {
		t.Fatalf("expected one seen, one new, one swept, got %#v", report)
	}

	got, err := store.GetByID(context.Background(), ghost.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Status != catalog.StatusGone {
		t.Fatalf("missing item must be swept gone, got %s", got.Status)
	}
}

func TestFullScanDoesNotSweepTrashedItems(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	root := cfg.Library.Roots[0]

	ctx := context.Background()
	binned := testsupport.SeedMovie(t, store, filepath.Join(root, "Binned (2002)"), "Binned", 2002)
	if ok, err := store.SetTrashed(ctx, binned.ID); err != nil || !ok {
		t.Fatalf("SetTrashed failed: ok=%v err=%v", ok, err)
	}

	sc := newScanner(t, store, root)
	if _, err := sc.FullScan(ctx); err != nil {
		t.Fatalf("FullScan failed: %v", err)
	}

	got, err := store.GetByID(ctx, binned.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Status != catalog.StatusTrashed {
		t.Fatalf("trashed item must survive the sweep, got %s", got.Status)
	}
}

func TestFullScanSkipsItemsUnderFailedRoot(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	base := t.TempDir()
	good := filepath.Join(base, "good")
	bad := filepath.Join(base, "bad")
	testsupport.MkdirAll(t, good)

	// bad never exists on disk, so its scan fails.
	survivor := testsupport.SeedMovie(t, store, filepath.Join(bad, "Survivor (2003)"), "Survivor", 2003)
	casualty := testsupport.SeedMovie(t, store, filepath.Join(good, "Casualty (2004)"), "Casualty", 2004)

	sc := newScanner(t, store, good, bad)
	report, err := sc.FullScan(context.Background())
	if err != nil {
		t.Fatalf("FullScan failed: %v", err)
	}
	if report.RootsScanned != 1 || report.RootsFailed != 1 {
		t.Fatalf("unexpected report: %#v", report)
	}

	ctx := context.Background()
	got, err := store.GetByID(ctx, survivor.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Status != catalog.StatusActive {
		t.Fatalf("item under failed root must be spared, got %s", got.Status)
	}

	got, err = store.GetByID(ctx, casualty.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Status != catalog.StatusGone {
		t.Fatalf("missing item under scanned root must be swept, got %s", got.Status)
	}
}

func TestFullScanAllRootsFailedSkipsSweep(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	missing := filepath.Join(t.TempDir(), "never-mounted")

	item := testsupport.SeedMovie(t, store, filepath.Join(missing, "Untouched (2005)"), "Untouched", 2005)

	sc := newScanner(t, store, missing)
	report, err := sc.FullScan(context.Background())
	if err != nil {
		t.Fatalf("FullScan failed: %v", err)
	}
	if report.RootsScanned != 0 || report.RootsFailed != 1 || report.SweptGone != 0 {
		t.Fatalf("unexpected report: %#v", report)
	}

	got, err := store.GetByID(context.Background(), item.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Status != catalog.StatusActive {
		t.Fatalf("no sweep may run when every root fails, got %s", got.Status)
	}
}

func TestFullScanSweepsOrphansOutsideAnyRoot(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	root := cfg.Library.Roots[0]

	orphan := testsupport.SeedMovie(t, store, filepath.Join(os.TempDir(), "winnow-orphan", "Lost (2006)"), "Lost", 2006)

	sc := newScanner(t, store, root)
	report, err := sc.FullScan(context.Background())
	if err != nil {
		t.Fatalf("FullScan failed: %v", err)
	}
	if report.SweptGone != 1 {
		t.Fatalf("expected the orphan to be swept, got %#v", report)
	}

	got, err := store.GetByID(context.Background(), orphan.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Status != catalog.StatusGone {
		t.Fatalf("orphan outside all roots must be swept, got %s", got.Status)
	}
}
