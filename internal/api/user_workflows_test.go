package api_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"winnow/internal/api"
	"winnow/internal/catalog"
	"winnow/internal/services"
	"winnow/internal/testsupport"
)

func TestUserAddGeneratesInviteToken(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	result, err := api.UserAdd(ctx, api.UserAddRequest{Store: store, Username: "alice"})
	if err != nil {
		t.Fatalf("UserAdd failed: %v", err)
	}
	if result.User.Username != "alice" || result.User.InviteToken == "" {
		t.Fatalf("unexpected user %+v", result.User)
	}
	if result.User.IsAdmin {
		t.Fatal("plain add must not create an admin")
	}

	admin, err := api.UserAdd(ctx, api.UserAddRequest{Store: store, Username: "root", Admin: true})
	if err != nil {
		t.Fatalf("UserAdd admin failed: %v", err)
	}
	if !admin.User.IsAdmin {
		t.Fatal("expected admin account")
	}
	if admin.User.InviteToken == result.User.InviteToken {
		t.Fatal("invite tokens must be unique")
	}

	if _, err := api.UserAdd(ctx, api.UserAddRequest{Store: store, Username: "alice"}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("duplicate username must be a validation error, got %v", err)
	}
}

func TestUserListReturnsAccounts(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	testsupport.SeedUser(t, store, "alice")
	testsupport.SeedUser(t, store, "bob")

	result, err := api.UserList(context.Background(), api.UserListRequest{Store: store})
	if err != nil {
		t.Fatalf("UserList failed: %v", err)
	}
	if len(result.Users) != 2 {
		t.Fatalf("expected 2 users, got %+v", result.Users)
	}
}

func TestUserRemoveRestoresOwnedItemsAndReevaluatesQuorum(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	root := cfg.Library.Roots[0]
	ctx := context.Background()

	testsupport.SeedUser(t, store, "alice")
	testsupport.SeedUser(t, store, "bob")

	// Alice alone votes on one item; quorum is blocked only by bob.
	votedPath := filepath.Join(root, "Voted (2001)")
	testsupport.WriteFile(t, filepath.Join(votedPath, "movie.mkv"), 32)
	voted := testsupport.SeedMovie(t, store, votedPath, "Voted", 2001)
	if _, err := api.Mark(ctx, api.MarkRequest{Config: cfg, Store: store, ItemID: voted.ID, Username: "alice"}); err != nil {
		t.Fatalf("mark failed: %v", err)
	}

	// Bob holds another item out of the deletion flow.
	keptPath := filepath.Join(root, "Kept (2002)")
	testsupport.WriteFile(t, filepath.Join(keptPath, "movie.mkv"), 32)
	kept := testsupport.SeedMovie(t, store, keptPath, "Kept", 2002)
	if _, err := api.Persist(ctx, api.PersistRequest{Config: cfg, Store: store, ItemID: kept.ID, Username: "bob"}); err != nil {
		t.Fatalf("persist failed: %v", err)
	}

	result, err := api.UserRemove(ctx, api.UserRemoveRequest{Config: cfg, Store: store, Username: "bob"})
	if err != nil {
		t.Fatalf("UserRemove failed: %v", err)
	}
	if result.Restored != 1 {
		t.Fatalf("expected 1 restored item, got %d", result.Restored)
	}
	if result.Trashed != 1 {
		t.Fatalf("expected 1 newly trashed item, got %d", result.Trashed)
	}

	if user, err := store.GetUserByName(ctx, "bob"); err != nil || user != nil {
		t.Fatalf("bob must be gone: user=%v err=%v", user, err)
	}
	mustStatus(t, store, kept.ID, catalog.StatusActive)
	if _, err := os.Stat(filepath.Join(keptPath, "movie.mkv")); err != nil {
		t.Fatalf("kept item files must be back in the library: %v", err)
	}
	mustStatus(t, store, voted.ID, catalog.StatusTrashed)
	if _, err := os.Stat(votedPath); !os.IsNotExist(err) {
		t.Fatalf("voted item must be vacated, stat err = %v", err)
	}
}

func TestUserRemoveUnknownUser(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	_, err := api.UserRemove(context.Background(), api.UserRemoveRequest{Config: cfg, Store: store, Username: "ghost"})
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}
}
