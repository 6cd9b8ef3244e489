package permanent_test

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
	"winnow/internal/permanent"
	"winnow/internal/services"
	"winnow/internal/testsupport"
)

func newEngine(t *testing.T, cfg *config.Config, store *catalog.Store) *permanent.Engine {
	t.Helper()
	resolver, err := library.NewResolver(cfg.Library.Roots)
	if err != nil {
		t.Fatalf("NewResolver failed: %v", err)
	}
	return permanent.NewEngine(store, resolver, logging.NewNop(), cfg.Lifecycle.DryRun)
}

func mustStatus(t *testing.T, store *catalog.Store, id int64, want catalog.Status) *catalog.MediaItem {
	t.Helper()
	item, err := store.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if item == nil {
		t.Fatalf("item %d not found", id)
	}
	if item.Status != want {
		t.Fatalf("item %d status = %s, want %s", id, item.Status, want)
	}
	return item
}

func TestPersistMovesFilesAndRecordsOwner(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	root := cfg.Library.Roots[0]

	alice := testsupport.SeedUser(t, store, "alice")
	bob := testsupport.SeedUser(t, store, "bob")

	moviePath := filepath.Join(root, "Keeper (1994)")
	testsupport.WriteFile(t, filepath.Join(moviePath, "movie.mkv"), 48)
	item := testsupport.SeedMovie(t, store, moviePath, "Keeper", 1994)

	ctx := context.Background()
	if err := store.AddMark(ctx, bob.ID, item.ID); err != nil {
		t.Fatalf("AddMark failed: %v", err)
	}

	engine := newEngine(t, cfg, store)
	if err := engine.Persist(ctx, alice.ID, item.ID); err != nil {
		t.Fatalf("Persist failed: %v", err)
	}

	mustStatus(t, store, item.ID, catalog.StatusPermanent)
	if _, err := os.Stat(moviePath); !os.IsNotExist(err) {
		t.Fatalf("original path must be vacated, stat err = %v", err)
	}
	permanentCopy := filepath.Join(root+library.PermanentSuffix, "Keeper (1994)", "movie.mkv")
	if _, err := os.Stat(permanentCopy); err != nil {
		t.Fatalf("permanent copy missing: %v", err)
	}

	owner, err := store.OwnerFor(ctx, item.ID)
	if err != nil {
		t.Fatalf("OwnerFor failed: %v", err)
	}
	if owner == nil || owner.UserID != alice.ID {
		t.Fatalf("expected alice as owner, got %#v", owner)
	}

	count, err := store.MarkCount(ctx, item.ID)
	if err != nil {
		t.Fatalf("MarkCount failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("persist must clear marks, found %d", count)
	}
}

func TestPersistValidatesItemAndState(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	root := cfg.Library.Roots[0]

	user := testsupport.SeedUser(t, store, "alice")
	engine := newEngine(t, cfg, store)
	ctx := context.Background()

	if err := engine.Persist(ctx, user.ID, 404); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("persisting a missing item must be NotFound, got %v", err)
	}

	item := testsupport.SeedMovie(t, store, filepath.Join(root, "Binned (2005)"), "Binned", 2005)
	if ok, err := store.SetTrashed(ctx, item.ID); err != nil || !ok {
		t.Fatalf("SetTrashed failed: ok=%v err=%v", ok, err)
	}
	if err := engine.Persist(ctx, user.ID, item.ID); !errors.Is(err, services.ErrInvalidState) {
		t.Fatalf("persisting a trashed item must be InvalidState, got %v", err)
	}
}

func TestUnpersistOwnerRoundTripLeavesNoResidue(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	root := cfg.Library.Roots[0]

	alice := testsupport.SeedUser(t, store, "alice")
	seasonPath := filepath.Join(root, "The Wire", "Season 1")
	testsupport.WriteFile(t, filepath.Join(seasonPath, "e01.mkv"), 16)
	item := testsupport.SeedSeason(t, store, seasonPath, "The Wire", 1)

	engine := newEngine(t, cfg, store)
	ctx := context.Background()

	if err := engine.Persist(ctx, alice.ID, item.ID); err != nil {
		t.Fatalf("Persist failed: %v", err)
	}
	permanentLeaf := filepath.Join(root+library.PermanentSuffix, "The Wire", "Season 1")
	if _, err := os.Stat(filepath.Join(permanentLeaf, "e01.mkv")); err != nil {
		t.Fatalf("permanent copy must preserve Show/Season structure: %v", err)
	}

	if err := engine.Unpersist(ctx, alice.ID, item.ID); err != nil {
		t.Fatalf("Unpersist failed: %v", err)
	}

	mustStatus(t, store, item.ID, catalog.StatusActive)
	if _, err := os.Stat(filepath.Join(seasonPath, "e01.mkv")); err != nil {
		t.Fatalf("files must be back in the library: %v", err)
	}
	if _, err := os.Stat(permanentLeaf); !os.IsNotExist(err) {
		t.Fatalf("permanent copy must be gone after unpersist, stat err = %v", err)
	}
	owner, err := store.OwnerFor(ctx, item.ID)
	if err != nil {
		t.Fatalf("OwnerFor failed: %v", err)
	}
	if owner != nil {
		t.Fatalf("unpersist must clear ownership, got %#v", owner)
	}
}

func TestUnpersistNonOwnerForbidden(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	root := cfg.Library.Roots[0]

	alice := testsupport.SeedUser(t, store, "alice")
	bob := testsupport.SeedUser(t, store, "bob")

	moviePath := filepath.Join(root, "Claimed (2015)")
	testsupport.WriteFile(t, filepath.Join(moviePath, "movie.mkv"), 8)
	item := testsupport.SeedMovie(t, store, moviePath, "Claimed", 2015)

	engine := newEngine(t, cfg, store)
	ctx := context.Background()

	if err := engine.Persist(ctx, alice.ID, item.ID); err != nil {
		t.Fatalf("Persist failed: %v", err)
	}
	if err := engine.Unpersist(ctx, bob.ID, item.ID); !errors.Is(err, services.ErrForbidden) {
		t.Fatalf("non-owner unpersist must be Forbidden, got %v", err)
	}

	mustStatus(t, store, item.ID, catalog.StatusPermanent)
	permanentCopy := filepath.Join(root+library.PermanentSuffix, "Claimed (2015)", "movie.mkv")
	if _, err := os.Stat(permanentCopy); err != nil {
		t.Fatalf("a forbidden unpersist must not move files: %v", err)
	}
}

func TestUnpersistRejectsNonPermanent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	root := cfg.Library.Roots[0]

	alice := testsupport.SeedUser(t, store, "alice")
	item := testsupport.SeedMovie(t, store, filepath.Join(root, "Everyday (2017)"), "Everyday", 2017)

	engine := newEngine(t, cfg, store)
	if err := engine.Unpersist(context.Background(), alice.ID, item.ID); !errors.Is(err, services.ErrInvalidState) {
		t.Fatalf("unpersisting an active item must be InvalidState, got %v", err)
	}
}

func TestForceRestoreIgnoresNonPermanent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	root := cfg.Library.Roots[0]

	item := testsupport.SeedMovie(t, store, filepath.Join(root, "Ordinary (2013)"), "Ordinary", 2013)
	engine := newEngine(t, cfg, store)

	if err := engine.ForceRestore(context.Background(), item.ID); err != nil {
		t.Fatalf("force restore of a non-permanent item must be a no-op, got %v", err)
	}
	mustStatus(t, store, item.ID, catalog.StatusActive)
}

func TestForceRestoreRequiresPermanentCopy(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	root := cfg.Library.Roots[0]

	item := testsupport.SeedMovie(t, store, filepath.Join(root, "Misplaced (2009)"), "Misplaced", 2009)
	ctx := context.Background()
	if ok, err := store.SetPermanent(ctx, item.ID); err != nil || !ok {
		t.Fatalf("SetPermanent failed: ok=%v err=%v", ok, err)
	}

	engine := newEngine(t, cfg, store)
	if err := engine.ForceRestore(ctx, item.ID); !errors.Is(err, services.ErrFilesystem) {
		t.Fatalf("restore without a permanent copy must be FilesystemFailure, got %v", err)
	}
	mustStatus(t, store, item.ID, catalog.StatusPermanent)
}

func TestRestoreAllOwnedByTouchesOnlyThatUser(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	root := cfg.Library.Roots[0]

	alice := testsupport.SeedUser(t, store, "alice")
	bob := testsupport.SeedUser(t, store, "bob")

	engine := newEngine(t, cfg, store)
	ctx := context.Background()

	var aliceItems []*catalog.MediaItem
	for _, name := range []string{"First (2000)", "Second (2001)"} {
		path := filepath.Join(root, name)
		testsupport.WriteFile(t, filepath.Join(path, "movie.mkv"), 8)
		item := testsupport.SeedMovie(t, store, path, name, 2000)
		if err := engine.Persist(ctx, alice.ID, item.ID); err != nil {
			t.Fatalf("Persist failed: %v", err)
		}
		aliceItems = append(aliceItems, item)
	}

	bobPath := filepath.Join(root, "Third (2002)")
	testsupport.WriteFile(t, filepath.Join(bobPath, "movie.mkv"), 8)
	bobItem := testsupport.SeedMovie(t, store, bobPath, "Third", 2002)
	if err := engine.Persist(ctx, bob.ID, bobItem.ID); err != nil {
		t.Fatalf("Persist failed: %v", err)
	}

	restored, err := engine.RestoreAllOwnedBy(ctx, alice.ID)
	if err != nil {
		t.Fatalf("RestoreAllOwnedBy failed: %v", err)
	}
	if restored != 2 {
		t.Fatalf("expected 2 restored, got %d", restored)
	}

	for _, item := range aliceItems {
		mustStatus(t, store, item.ID, catalog.StatusActive)
	}
	mustStatus(t, store, bobItem.ID, catalog.StatusPermanent)
}

func TestDryRunPersistsRecordOnly(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithDryRun())
	store := testsupport.MustOpenStore(t, cfg)
	root := cfg.Library.Roots[0]

	alice := testsupport.SeedUser(t, store, "alice")
	moviePath := filepath.Join(root, "Phantom Keep (2021)")
	testsupport.WriteFile(t, filepath.Join(moviePath, "movie.mkv"), 8)
	item := testsupport.SeedMovie(t, store, moviePath, "Phantom Keep", 2021)

	engine := newEngine(t, cfg, store)
	ctx := context.Background()

	if err := engine.Persist(ctx, alice.ID, item.ID); err != nil {
		t.Fatalf("dry-run persist failed: %v", err)
	}
	mustStatus(t, store, item.ID, catalog.StatusPermanent)
	if _, err := os.Stat(moviePath); err != nil {
		t.Fatalf("dry run must leave files in place: %v", err)
	}

	if err := engine.Unpersist(ctx, alice.ID, item.ID); err != nil {
		t.Fatalf("dry-run unpersist failed: %v", err)
	}
	mustStatus(t, store, item.ID, catalog.StatusActive)
}
