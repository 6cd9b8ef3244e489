package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"winnow/internal/catalog"
	"winnow/internal/config"
	"winnow/internal/library"
	"winnow/internal/logging"
	"winnow/internal/notifications"
	"winnow/internal/permanent"
	"winnow/internal/services"
	"winnow/internal/trash"
)

// MarkRequest records one user's deletion vote for an item.
type MarkRequest struct {
	Config   *config.Config
	Logger   *slog.Logger
	Store    *catalog.Store
	ItemID   int64
	Username string
}

// MarkResult carries the refreshed item. Trashed reports whether this
// vote completed the quorum and moved the item to trash.
type MarkResult struct {
	Item    Item `json:"item"`
	Trashed bool `json:"trashed"`
}

func Mark(ctx context.Context, req MarkRequest) (MarkResult, error) {
	logger := workflowLogger(req.Logger)
	engine, _, err := buildEngines(req.Config, req.Store, logger)
	if err != nil {
		return MarkResult{}, err
	}
	user, err := resolveUser(ctx, req.Store, req.Username)
	if err != nil {
		return MarkResult{}, err
	}
	trashed, err := engine.Mark(ctx, user.ID, req.ItemID)
	if err != nil {
		return MarkResult{}, err
	}
	item, err := annotatedItem(ctx, req.Store, req.ItemID)
	if err != nil {
		return MarkResult{}, err
	}
	return MarkResult{Item: item, Trashed: trashed}, nil
}

// UnmarkRequest withdraws one user's deletion vote.
type UnmarkRequest struct {
	Config   *config.Config
	Logger   *slog.Logger
	Store    *catalog.Store
	ItemID   int64
	Username string
}

// UnmarkResult carries the refreshed item.
type UnmarkResult struct {
	Item Item `json:"item"`
}

func Unmark(ctx context.Context, req UnmarkRequest) (UnmarkResult, error) {
	logger := workflowLogger(req.Logger)
	engine, _, err := buildEngines(req.Config, req.Store, logger)
	if err != nil {
		return UnmarkResult{}, err
	}
	user, err := resolveUser(ctx, req.Store, req.Username)
	if err != nil {
		return UnmarkResult{}, err
	}
	if err := engine.Unmark(ctx, user.ID, req.ItemID); err != nil {
		return UnmarkResult{}, err
	}
	item, err := annotatedItem(ctx, req.Store, req.ItemID)
	if err != nil {
		return UnmarkResult{}, err
	}
	return UnmarkResult{Item: item}, nil
}

// RescueRequest pulls a trashed item back into the library.
type RescueRequest struct {
	Config *config.Config
	Logger *slog.Logger
	Store  *catalog.Store
	ItemID int64
}

// RescueResult carries the restored item.
type RescueResult struct {
	Item Item `json:"item"`
}

func Rescue(ctx context.Context, req RescueRequest) (RescueResult, error) {
	logger := workflowLogger(req.Logger)
	engine, _, err := buildEngines(req.Config, req.Store, logger)
	if err != nil {
		return RescueResult{}, err
	}
	if err := engine.Rescue(ctx, req.ItemID); err != nil {
		return RescueResult{}, err
	}
	item, err := annotatedItem(ctx, req.Store, req.ItemID)
	if err != nil {
		return RescueResult{}, err
	}
	return RescueResult{Item: item}, nil
}

// PersistRequest takes an item out of the deletion flow on behalf of a
// user, who becomes its owner.
type PersistRequest struct {
	Config   *config.Config
	Logger   *slog.Logger
	Store    *catalog.Store
	ItemID   int64
	Username string
}

// PersistResult carries the now permanent item.
type PersistResult struct {
	Item Item `json:"item"`
}

func Persist(ctx context.Context, req PersistRequest) (PersistResult, error) {
	logger := workflowLogger(req.Logger)
	_, engine, err := buildEngines(req.Config, req.Store, logger)
	if err != nil {
		return PersistResult{}, err
	}
	user, err := resolveUser(ctx, req.Store, req.Username)
	if err != nil {
		return PersistResult{}, err
	}
	if err := engine.Persist(ctx, user.ID, req.ItemID); err != nil {
		return PersistResult{}, err
	}
	item, err := annotatedItem(ctx, req.Store, req.ItemID)
	if err != nil {
		return PersistResult{}, err
	}
	return PersistResult{Item: item}, nil
}

// UnpersistRequest returns a permanent item to the shared library. Only
// the owner may do this.
type UnpersistRequest struct {
	Config   *config.Config
	Logger   *slog.Logger
	Store    *catalog.Store
	ItemID   int64
	Username string
}

// UnpersistResult carries the reactivated item.
type UnpersistResult struct {
	Item Item `json:"item"`
}

func Unpersist(ctx context.Context, req UnpersistRequest) (UnpersistResult, error) {
	logger := workflowLogger(req.Logger)
	_, engine, err := buildEngines(req.Config, req.Store, logger)
	if err != nil {
		return UnpersistResult{}, err
	}
	user, err := resolveUser(ctx, req.Store, req.Username)
	if err != nil {
		return UnpersistResult{}, err
	}
	if err := engine.Unpersist(ctx, user.ID, req.ItemID); err != nil {
		return UnpersistResult{}, err
	}
	item, err := annotatedItem(ctx, req.Store, req.ItemID)
	if err != nil {
		return UnpersistResult{}, err
	}
	return UnpersistResult{Item: item}, nil
}

func workflowLogger(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return logging.NewNop()
	}
	return logger
}

func buildEngines(cfg *config.Config, store *catalog.Store, logger *slog.Logger) (*trash.Engine, *permanent.Engine, error) {
	if cfg == nil {
		return nil, nil, errors.New("configuration is required")
	}
	if store == nil {
		return nil, nil, errors.New("catalog store is required")
	}
	resolver, err := library.NewResolver(cfg.Library.Roots)
	if err != nil {
		return nil, nil, err
	}
	notifier := notifications.NewService(cfg)
	trashEngine := trash.NewEngine(store, resolver, notifier, logger, cfg.Lifecycle.DryRun)
	permanentEngine := permanent.NewEngine(store, resolver, logger, cfg.Lifecycle.DryRun)
	return trashEngine, permanentEngine, nil
}

func resolveUser(ctx context.Context, store *catalog.Store, username string) (*catalog.User, error) {
	name := strings.TrimSpace(username)
	if name == "" {
		return nil, services.Wrap(services.ErrValidation, "api", "resolve user",
			"a username is required", nil)
	}
	user, err := store.GetUserByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, services.Wrap(services.ErrNotFound, "api", "resolve user",
			fmt.Sprintf("user %q not found", name), nil)
	}
	return user, nil
}

// annotatedItem loads an item and fills in the vote tally fields.
func annotatedItem(ctx context.Context, store *catalog.Store, id int64) (Item, error) {
	item, err := store.GetByID(ctx, id)
	if err != nil {
		return Item{}, err
	}
	if item == nil {
		return Item{}, services.Wrap(services.ErrNotFound, "api", "load item",
			fmt.Sprintf("media item %d not found", id), nil)
	}
	dto := FromMediaItem(item)
	count, err := store.MarkCount(ctx, id)
	if err != nil {
		return Item{}, err
	}
	total, err := store.UserCount(ctx)
	if err != nil {
		return Item{}, err
	}
	dto.MarkCount = count
	dto.TotalUsers = total
	return dto, nil
}
