package testsupport

import (
	"context"
	"testing"

	"winnow/internal/catalog"
	"winnow/internal/config"
)

// MustOpenStore opens a catalog.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *catalog.Store {
	t.Helper()

	store, err := catalog.Open(cfg)
	if err != nil {
		t.Fatalf("catalog.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// SeedUser creates a non-admin user for tests.
func SeedUser(t testing.TB, store *catalog.Store, username string) *catalog.User {
	t.Helper()

	user, err := store.CreateUser(context.Background(), username, false, "")
	if err != nil {
		t.Fatalf("store.CreateUser: %v", err)
	}
	return user
}

// SeedMovie registers a movie at the given path without touching disk.
func SeedMovie(t testing.TB, store *catalog.Store, path, title string, year int64) *catalog.MediaItem {
	t.Helper()

	item, _, err := store.Upsert(context.Background(), catalog.Discovery{
		MediaType: catalog.TypeMovie,
		Title:     title,
		Year:      &year,
		Path:      path,
		SizeBytes: 1,
	})
	if err != nil {
		t.Fatalf("store.Upsert: %v", err)
	}
	return item
}

// SeedSeason registers a TV season at the given path without touching disk.
func SeedSeason(t testing.TB, store *catalog.Store, path, title string, season int64) *catalog.MediaItem {
	t.Helper()

	item, _, err := store.Upsert(context.Background(), catalog.Discovery{
		MediaType: catalog.TypeTVSeason,
		Title:     title,
		Season:    &season,
		Path:      path,
		SizeBytes: 1,
	})
	if err != nil {
		t.Fatalf("store.Upsert: %v", err)
	}
	return item
}
