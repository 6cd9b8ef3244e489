// Package permanent exempts items from the quorum lifecycle. A user
// moves an item to the root's permanent sibling and becomes its sole
// owner; only that owner (or a system-forced restore, when the owner's
// account is removed) brings it back into the shared library.
package permanent

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"winnow/internal/catalog"
	"winnow/internal/fileutil"
	"winnow/internal/library"
	"winnow/internal/logging"
	"winnow/internal/services"
)

// Engine moves items between the library roots and their permanent
// siblings, tracking ownership in the catalog.
type Engine struct {
	store    *catalog.Store
	resolver *library.Resolver
	logger   *slog.Logger
	dryRun   bool
}

// NewEngine builds a permanent-store engine. Dry-run suppresses the
// filesystem moves while the catalog transitions still happen.
func NewEngine(store *catalog.Store, resolver *library.Resolver, logger *slog.Logger, dryRun bool) *Engine {
	return &Engine{
		store:    store,
		resolver: resolver,
		logger:   logging.NewComponentLogger(logger, "permanent"),
		dryRun:   dryRun,
	}
}

// Persist moves an active item to its root's permanent sibling, records
// the user as owner, and clears any accumulated marks.
func (e *Engine) Persist(ctx context.Context, userID, mediaID int64) error {
	item, err := e.store.GetByID(ctx, mediaID)
	if err != nil {
		return services.Wrap(services.ErrStore, "permanent", "persist", "load item", err)
	}
	if item == nil {
		return services.Wrap(services.ErrNotFound, "permanent", "persist", fmt.Sprintf("item %d", mediaID), nil)
	}
	if item.Status != catalog.StatusActive {
		return services.Wrap(services.ErrInvalidState, "permanent", "persist",
			fmt.Sprintf("item %d is %s, only active items can be made permanent", mediaID, item.Status), nil)
	}

	permanentPath, err := e.resolver.PermanentPathFor(item.Path)
	if err != nil {
		return err
	}

	if e.dryRun {
		e.logger.Info("dry run: would move item to permanent storage",
			logging.Int64(logging.FieldItemID, item.ID),
			logging.String(logging.FieldPath, item.Path),
			logging.String("permanent_path", permanentPath),
			logging.Bool(logging.FieldDryRun, true))
	} else {
		if err := os.MkdirAll(filepath.Dir(permanentPath), 0o755); err != nil {
			return services.Wrap(services.ErrFilesystem, "permanent", "persist",
				fmt.Sprintf("create %s", filepath.Dir(permanentPath)), err)
		}
		if err := fileutil.MovePath(item.Path, permanentPath); err != nil {
			return services.Wrap(services.ErrFilesystem, "permanent", "persist",
				fmt.Sprintf("move %s to %s", item.Path, permanentPath), err)
		}
	}

	moved, err := e.store.SetPermanent(ctx, item.ID)
	if err != nil {
		return services.Wrap(services.ErrStore, "permanent", "persist", "set permanent", err)
	}
	if !moved {
		logging.WarnWithContext(e.logger, "item changed status while being persisted", "persist_race",
			logging.Int64(logging.FieldItemID, item.ID),
			logging.String(logging.FieldImpact, "files were moved; the reconciler settles the record"))
		return nil
	}
	if err := e.store.SetOwner(ctx, item.ID, userID); err != nil {
		return services.Wrap(services.ErrStore, "permanent", "persist", "record owner", err)
	}
	if err := e.store.ClearMarks(ctx, item.ID); err != nil {
		return services.Wrap(services.ErrStore, "permanent", "persist", "clear marks", err)
	}

	e.logger.Info("item moved to permanent storage",
		logging.Int64(logging.FieldItemID, item.ID),
		logging.Int64(logging.FieldUserID, userID),
		logging.String(logging.FieldPath, item.Path),
		logging.String("permanent_path", permanentPath))
	return nil
}

// Unpersist returns a permanent item to the shared library. Only the
// recorded owner may do so; anyone else gets Forbidden.
func (e *Engine) Unpersist(ctx context.Context, userID, mediaID int64) error {
	item, err := e.store.GetByID(ctx, mediaID)
	if err != nil {
		return services.Wrap(services.ErrStore, "permanent", "unpersist", "load item", err)
	}
	if item == nil {
		return services.Wrap(services.ErrNotFound, "permanent", "unpersist", fmt.Sprintf("item %d", mediaID), nil)
	}
	if item.Status != catalog.StatusPermanent {
		return services.Wrap(services.ErrInvalidState, "permanent", "unpersist",
			fmt.Sprintf("item %d is %s, not permanent", mediaID, item.Status), nil)
	}

	owner, err := e.store.OwnerFor(ctx, mediaID)
	if err != nil {
		return services.Wrap(services.ErrStore, "permanent", "unpersist", "load owner", err)
	}
	if owner == nil || owner.UserID != userID {
		return services.Wrap(services.ErrForbidden, "permanent", "unpersist",
			"only the user who made this item permanent can restore it", nil)
	}

	return e.restore(ctx, item)
}

// ForceRestore returns a permanent item to the shared library without
// an ownership check. Items that are not permanent are left alone.
func (e *Engine) ForceRestore(ctx context.Context, mediaID int64) error {
	item, err := e.store.GetByID(ctx, mediaID)
	if err != nil {
		return services.Wrap(services.ErrStore, "permanent", "force restore", "load item", err)
	}
	if item == nil {
		return services.Wrap(services.ErrNotFound, "permanent", "force restore", fmt.Sprintf("item %d", mediaID), nil)
	}
	if item.Status != catalog.StatusPermanent {
		return nil
	}
	return e.restore(ctx, item)
}

// RestoreAllOwnedBy force-restores every permanent item a user owns.
// The first failure aborts so a user removal never proceeds while their
// items are stranded in permanent storage.
func (e *Engine) RestoreAllOwnedBy(ctx context.Context, userID int64) (int, error) {
	ids, err := e.store.MediaIDsOwnedBy(ctx, userID)
	if err != nil {
		return 0, services.Wrap(services.ErrStore, "permanent", "restore owned", "list owned items", err)
	}

	restored := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return restored, err
		}
		if err := e.ForceRestore(ctx, id); err != nil {
			return restored, err
		}
		restored++
	}
	return restored, nil
}

func (e *Engine) restore(ctx context.Context, item *catalog.MediaItem) error {
	permanentPath, err := e.resolver.PermanentPathFor(item.Path)
	if err != nil {
		return err
	}

	if e.dryRun {
		e.logger.Info("dry run: would restore item from permanent storage",
			logging.Int64(logging.FieldItemID, item.ID),
			logging.String(logging.FieldPath, permanentPath),
			logging.Bool(logging.FieldDryRun, true))
	} else {
		if _, err := os.Stat(permanentPath); err != nil {
			if os.IsNotExist(err) {
				return services.Wrap(services.ErrFilesystem, "permanent", "restore",
					fmt.Sprintf("permanent copy %s is missing", permanentPath), nil)
			}
			return services.Wrap(services.ErrFilesystem, "permanent", "restore",
				fmt.Sprintf("inspect %s", permanentPath), err)
		}
		if err := os.MkdirAll(filepath.Dir(item.Path), 0o755); err != nil {
			return services.Wrap(services.ErrFilesystem, "permanent", "restore",
				fmt.Sprintf("create %s", filepath.Dir(item.Path)), err)
		}
		if err := fileutil.MovePath(permanentPath, item.Path); err != nil {
			return services.Wrap(services.ErrFilesystem, "permanent", "restore",
				fmt.Sprintf("move %s back to %s", permanentPath, item.Path), err)
		}
	}

	restored, err := e.store.SetActive(ctx, item.ID, catalog.StatusPermanent)
	if err != nil {
		return services.Wrap(services.ErrStore, "permanent", "restore", "set active", err)
	}
	if !restored {
		logging.WarnWithContext(e.logger, "item changed status while being restored", "restore_race",
			logging.Int64(logging.FieldItemID, item.ID),
			logging.String(logging.FieldImpact, "files were moved back; the reconciler settles the record"))
	}
	if err := e.store.ClearOwner(ctx, item.ID); err != nil {
		return services.Wrap(services.ErrStore, "permanent", "restore", "clear owner", err)
	}
	if err := e.store.ClearMarks(ctx, item.ID); err != nil {
		return services.Wrap(services.ErrStore, "permanent", "restore", "clear marks", err)
	}

	e.logger.Info("item restored from permanent storage",
		logging.Int64(logging.FieldItemID, item.ID),
		logging.String(logging.FieldPath, item.Path))
	return nil
}
