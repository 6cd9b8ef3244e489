package catalogaccess_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"winnow/internal/api"
	"winnow/internal/catalog"
	"winnow/internal/catalogaccess"
	"winnow/internal/ipc"
	"winnow/internal/testsupport"
)

func TestStoreAccessServesReadsAndTriggers(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	root := cfg.Library.Roots[0]
	ctx := context.Background()

	testsupport.SeedUser(t, store, "alice")
	testsupport.WriteFile(t, filepath.Join(root, "Solaris (1972)", "movie.mkv"), 32)

	access := catalogaccess.NewStoreAccess(cfg, store, nil)

	report, err := access.Scan(ctx)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if report.NewItems != 1 {
		t.Fatalf("expected 1 new item, got %+v", report)
	}

	items, err := access.List(ctx, api.ScopeMovies, "")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(items) != 1 || items[0].Title != "Solaris" {
		t.Fatalf("unexpected items: %+v", items)
	}

	detail, err := access.Describe(ctx, items[0].ID)
	if err != nil {
		t.Fatalf("Describe failed: %v", err)
	}
	if detail.TotalUsers != 1 {
		t.Fatalf("expected 1 library user, got %+v", detail)
	}

	stats, err := access.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Active != 1 || stats.Users != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	health, err := access.Health(ctx)
	if err != nil {
		t.Fatalf("Health failed: %v", err)
	}
	if !health.IntegrityCheck || health.TotalItems != 1 {
		t.Fatalf("unexpected health: %+v", health)
	}

	summary, err := access.Reconcile(ctx)
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if summary.Errors != 0 || summary.ItemsSeen != 1 {
		t.Fatalf("unexpected cycle summary: %+v", summary)
	}
}

func TestOpenWithFallbackUsesStoreWhenDialFails(t *testing.T) {
	cfg := testsupport.NewConfig(t)

	dial := func() (*ipc.Client, error) {
		return nil, errors.New("daemon not running")
	}
	openStore := func() (*catalog.Store, error) {
		return catalog.Open(cfg)
	}

	session, err := catalogaccess.OpenWithFallback(cfg, dial, openStore)
	if err != nil {
		t.Fatalf("OpenWithFallback failed: %v", err)
	}
	t.Cleanup(func() {
		if err := session.Close(); err != nil {
			t.Errorf("session close: %v", err)
		}
	})

	stats, err := session.Access.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats through fallback failed: %v", err)
	}
	if stats.Total != 0 {
		t.Fatalf("expected empty catalog, got %+v", stats)
	}
}

func TestOpenWithFallbackRequiresStoreOpener(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if _, err := catalogaccess.OpenWithFallback(cfg, nil, nil); err == nil {
		t.Fatal("expected error without store opener")
	}
}
