// Package trash implements the quorum deletion lifecycle: users mark
// items watched, unanimous agreement moves the item to its root's trash
// sibling, and the grace period decides whether it comes back or goes
// for good. All status writes are compare-and-swap against the expected
// prior status, so concurrent actors lose races as no-ops.
package trash

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"winnow/internal/catalog"
	"winnow/internal/fileutil"
	"winnow/internal/library"
	"winnow/internal/logging"
	"winnow/internal/notifications"
	"winnow/internal/services"
)

// Engine coordinates marks, quorum checks, and the trash directory
// lifecycle for a single catalog.
type Engine struct {
	store    *catalog.Store
	resolver *library.Resolver
	notifier notifications.Service
	logger   *slog.Logger
	dryRun   bool
}

// NewEngine builds a trash engine. When dryRun is set, filesystem moves
// and deletions are logged but skipped while catalog transitions still
// happen, so the database is expected to diverge from disk.
func NewEngine(store *catalog.Store, resolver *library.Resolver, notifier notifications.Service, logger *slog.Logger, dryRun bool) *Engine {
	return &Engine{
		store:    store,
		resolver: resolver,
		notifier: notifier,
		logger:   logging.NewComponentLogger(logger, "trash"),
		dryRun:   dryRun,
	}
}

// Mark records that a user has watched an item and cascades to the
// trash move when the mark completes the quorum. It reports whether the
// item was trashed as a result.
func (e *Engine) Mark(ctx context.Context, userID, mediaID int64) (bool, error) {
	item, err := e.requireStatus(ctx, mediaID, "mark", catalog.StatusActive)
	if err != nil {
		return false, err
	}
	if err := e.store.AddMark(ctx, userID, mediaID); err != nil {
		return false, services.Wrap(services.ErrStore, "trash", "mark", "record mark", err)
	}
	e.logger.Info("user marked item watched",
		logging.Int64(logging.FieldItemID, item.ID),
		logging.Int64(logging.FieldUserID, userID))
	return e.CheckAndTrash(ctx, mediaID)
}

// Unmark withdraws a user's watched mark from an active item.
func (e *Engine) Unmark(ctx context.Context, userID, mediaID int64) error {
	item, err := e.requireStatus(ctx, mediaID, "unmark", catalog.StatusActive)
	if err != nil {
		return err
	}
	if err := e.store.RemoveMark(ctx, userID, mediaID); err != nil {
		return services.Wrap(services.ErrStore, "trash", "unmark", "remove mark", err)
	}
	e.logger.Info("user unmarked item",
		logging.Int64(logging.FieldItemID, item.ID),
		logging.Int64(logging.FieldUserID, userID))
	return nil
}

// CheckAndTrash moves the item to trash when every current user has
// marked it. A zero-user catalog never reaches quorum. Items that are
// no longer active by the time the quorum holds are skipped.
func (e *Engine) CheckAndTrash(ctx context.Context, mediaID int64) (bool, error) {
	full, err := e.store.AllUsersMarked(ctx, mediaID)
	if err != nil {
		return false, services.Wrap(services.ErrStore, "trash", "check quorum", "count unmarked users", err)
	}
	if !full {
		return false, nil
	}

	item, err := e.store.GetByID(ctx, mediaID)
	if err != nil {
		return false, services.Wrap(services.ErrStore, "trash", "check quorum", "load item", err)
	}
	if item == nil || item.Status != catalog.StatusActive {
		return false, nil
	}
	if err := e.trashItem(ctx, item); err != nil {
		return false, err
	}
	return true, nil
}

// TrashAllEligible re-evaluates the quorum for every active item and
// trashes the ones that now satisfy it. Deleting a user shrinks the
// quorum, so items they never marked can become eligible without any
// new mark being written. Per-item failures are logged and skipped.
func (e *Engine) TrashAllEligible(ctx context.Context) (int, error) {
	ids, err := e.store.FullQuorumMediaIDs(ctx)
	if err != nil {
		return 0, services.Wrap(services.ErrStore, "trash", "trash eligible", "list full-quorum items", err)
	}

	trashed := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return trashed, err
		}
		moved, err := e.CheckAndTrash(ctx, id)
		if err != nil {
			logging.ErrorWithContext(e.logger, "quorum-eligible item could not be trashed", "trash_eligible_failed",
				logging.Int64(logging.FieldItemID, id),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check trash sibling permissions for the item's root"),
				logging.String(logging.FieldImpact, "item stays active; the next mark or reconcile retries"))
			continue
		}
		if moved {
			trashed++
		}
	}
	return trashed, nil
}

// Rescue moves a trashed item back to its library location, restores it
// to active, and clears every mark so the quorum restarts from zero.
func (e *Engine) Rescue(ctx context.Context, mediaID int64) error {
	item, err := e.requireStatus(ctx, mediaID, "rescue", catalog.StatusTrashed)
	if err != nil {
		return err
	}

	trashPath, err := e.resolver.TrashPathFor(item.Path)
	if err != nil {
		return err
	}

	if e.dryRun {
		e.logger.Info("dry run: would restore item from trash",
			logging.Int64(logging.FieldItemID, item.ID),
			logging.String(logging.FieldPath, trashPath),
			logging.Bool(logging.FieldDryRun, true))
	} else {
		if _, err := os.Stat(trashPath); err != nil {
			if os.IsNotExist(err) {
				return services.Wrap(services.ErrFilesystem, "trash", "rescue",
					fmt.Sprintf("trash copy %s is missing", trashPath), nil)
			}
			return services.Wrap(services.ErrFilesystem, "trash", "rescue",
				fmt.Sprintf("inspect %s", trashPath), err)
		}
		if err := os.MkdirAll(filepath.Dir(item.Path), 0o755); err != nil {
			return services.Wrap(services.ErrFilesystem, "trash", "rescue",
				fmt.Sprintf("create %s", filepath.Dir(item.Path)), err)
		}
		if err := fileutil.MovePath(trashPath, item.Path); err != nil {
			return services.Wrap(services.ErrFilesystem, "trash", "rescue",
				fmt.Sprintf("move %s back to %s", trashPath, item.Path), err)
		}
	}

	restored, err := e.store.SetActive(ctx, item.ID, catalog.StatusTrashed)
	if err != nil {
		return services.Wrap(services.ErrStore, "trash", "rescue", "set active", err)
	}
	if !restored {
		logging.WarnWithContext(e.logger, "item changed status while being rescued", "rescue_race",
			logging.Int64(logging.FieldItemID, item.ID),
			logging.String(logging.FieldImpact, "files were moved back; the reconciler settles the record"))
	}
	if err := e.store.ClearMarks(ctx, item.ID); err != nil {
		return services.Wrap(services.ErrStore, "trash", "rescue", "clear marks", err)
	}

	e.logger.Info("item rescued from trash",
		logging.Int64(logging.FieldItemID, item.ID),
		logging.String(logging.FieldPath, item.Path))
	if e.notifier != nil {
		if err := e.notifier.NotifyItemRescued(ctx, item.Label()); err != nil {
			e.logger.Warn("rescue notification failed", logging.Error(err))
		}
	}
	return nil
}

// PurgeReport summarizes one purge pass over expired trash.
type PurgeReport struct {
	Examined int
	Purged   int
	Failed   int
}

// PurgeExpired permanently deletes the trash copies of items trashed
// before the cutoff and retires them to gone. A deletion failure leaves
// the item trashed so the next cycle retries it; a trash copy that is
// already missing still retires the item.
func (e *Engine) PurgeExpired(ctx context.Context, cutoff time.Time) (*PurgeReport, error) {
	items, err := e.store.ListExpiredTrash(ctx, cutoff)
	if err != nil {
		return nil, services.Wrap(services.ErrStore, "trash", "purge expired", "list expired trash", err)
	}

	report := &PurgeReport{Examined: len(items)}
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		trashPath, err := e.resolver.TrashPathFor(item.Path)
		if err != nil {
			report.Failed++
			logging.WarnWithContext(e.logger, "trashed item has no resolvable trash location", "purge_unresolvable",
				logging.Int64(logging.FieldItemID, item.ID),
				logging.String(logging.FieldPath, item.Path),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "the item's root is no longer configured"),
				logging.String(logging.FieldImpact, "item stays trashed until the roots change"))
			continue
		}

		if e.dryRun {
			e.logger.Info("dry run: would delete expired trash copy",
				logging.Int64(logging.FieldItemID, item.ID),
				logging.String(logging.FieldPath, trashPath),
				logging.Bool(logging.FieldDryRun, true))
		} else if err := os.RemoveAll(trashPath); err != nil {
			report.Failed++
			logging.ErrorWithContext(e.logger, "failed to delete expired trash copy", "purge_failed",
				logging.Int64(logging.FieldItemID, item.ID),
				logging.String(logging.FieldPath, trashPath),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check ownership and permissions on the trash sibling"),
				logging.String(logging.FieldImpact, "item remains trashed and is retried next cycle"))
			continue
		}

		gone, err := e.store.SetGone(ctx, item.ID, catalog.StatusTrashed)
		if err != nil {
			report.Failed++
			logging.ErrorWithContext(e.logger, "purged item could not be retired", "purge_retire_failed",
				logging.Int64(logging.FieldItemID, item.ID),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "inspect the catalog database"),
				logging.String(logging.FieldImpact, "trash copy is deleted but the record still reads trashed"))
			continue
		}
		if !gone {
			continue
		}

		report.Purged++
		e.logger.Info("purged expired item",
			logging.Int64(logging.FieldItemID, item.ID),
			logging.String(logging.FieldPath, item.Path))
		if e.notifier != nil {
			if err := e.notifier.NotifyItemPurged(ctx, item.Label()); err != nil {
				e.logger.Warn("purge notification failed", logging.Error(err))
			}
		}
	}
	return report, nil
}

// SweepMissingTrash retires trashed items whose trash copy has vanished
// from disk, clearing their marks. Somebody deleting out from under the
// trash directory is treated as the final word on the item.
func (e *Engine) SweepMissingTrash(ctx context.Context) (int64, error) {
	items, err := e.store.ListTrashed(ctx)
	if err != nil {
		return 0, services.Wrap(services.ErrStore, "trash", "sweep missing trash", "list trashed items", err)
	}

	var swept int64
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return swept, err
		}

		trashPath, err := e.resolver.TrashPathFor(item.Path)
		if err != nil {
			logging.WarnWithContext(e.logger, "trashed item has no resolvable trash location", "sweep_unresolvable",
				logging.Int64(logging.FieldItemID, item.ID),
				logging.String(logging.FieldPath, item.Path),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "the item's root is no longer configured"),
				logging.String(logging.FieldImpact, "item is left as-is"))
			continue
		}

		if _, err := os.Stat(trashPath); err == nil {
			continue
		} else if !os.IsNotExist(err) {
			logging.WarnWithContext(e.logger, "could not inspect trash copy", "sweep_stat_failed",
				logging.Int64(logging.FieldItemID, item.ID),
				logging.String(logging.FieldPath, trashPath),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check permissions on the trash sibling"),
				logging.String(logging.FieldImpact, "item is left as-is this cycle"))
			continue
		}

		gone, err := e.store.SetGone(ctx, item.ID, catalog.StatusTrashed)
		if err != nil {
			logging.ErrorWithContext(e.logger, "vanished item could not be retired", "sweep_retire_failed",
				logging.Int64(logging.FieldItemID, item.ID),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "inspect the catalog database"),
				logging.String(logging.FieldImpact, "record still reads trashed with no trash copy behind it"))
			continue
		}
		if !gone {
			continue
		}
		if err := e.store.ClearMarks(ctx, item.ID); err != nil {
			e.logger.Warn("failed to clear marks for vanished item",
				logging.Int64(logging.FieldItemID, item.ID),
				logging.Error(err))
		}
		swept++
		e.logger.Info("trash copy vanished; item retired",
			logging.Int64(logging.FieldItemID, item.ID),
			logging.String(logging.FieldPath, trashPath))
	}
	return swept, nil
}

// trashItem performs the quorum side effect: move the item directory to
// its trash sibling, then stamp the record trashed. The move happens
// first so a failure leaves the item active with its files in place.
func (e *Engine) trashItem(ctx context.Context, item *catalog.MediaItem) error {
	trashPath, err := e.resolver.TrashPathFor(item.Path)
	if err != nil {
		return err
	}

	if e.dryRun {
		e.logger.Info("dry run: would move item to trash",
			logging.Int64(logging.FieldItemID, item.ID),
			logging.String(logging.FieldPath, item.Path),
			logging.String("trash_path", trashPath),
			logging.Bool(logging.FieldDryRun, true))
	} else {
		if err := os.MkdirAll(filepath.Dir(trashPath), 0o755); err != nil {
			return services.Wrap(services.ErrFilesystem, "trash", "move to trash",
				fmt.Sprintf("create %s", filepath.Dir(trashPath)), err)
		}
		if err := fileutil.MovePath(item.Path, trashPath); err != nil {
			return services.Wrap(services.ErrFilesystem, "trash", "move to trash",
				fmt.Sprintf("move %s to %s", item.Path, trashPath), err)
		}
	}

	moved, err := e.store.SetTrashed(ctx, item.ID)
	if err != nil {
		return services.Wrap(services.ErrStore, "trash", "move to trash", "set trashed", err)
	}
	if !moved {
		logging.WarnWithContext(e.logger, "item changed status while being trashed", "trash_race",
			logging.Int64(logging.FieldItemID, item.ID),
			logging.String(logging.FieldImpact, "files were moved to trash; the reconciler settles the record"))
		return nil
	}

	e.logger.Info("item moved to trash",
		logging.Int64(logging.FieldItemID, item.ID),
		logging.String(logging.FieldPath, item.Path),
		logging.String("trash_path", trashPath))
	if e.notifier != nil {
		if err := e.notifier.NotifyItemTrashed(ctx, item.Label()); err != nil {
			e.logger.Warn("trash notification failed", logging.Error(err))
		}
	}
	return nil
}

// requireStatus loads an item and insists it is in the given status.
func (e *Engine) requireStatus(ctx context.Context, mediaID int64, operation string, want catalog.Status) (*catalog.MediaItem, error) {
	item, err := e.store.GetByID(ctx, mediaID)
	if err != nil {
		return nil, services.Wrap(services.ErrStore, "trash", operation, "load item", err)
	}
	if item == nil {
		return nil, services.Wrap(services.ErrNotFound, "trash", operation, fmt.Sprintf("item %d", mediaID), nil)
	}
	if item.Status != want {
		return nil, services.Wrap(services.ErrInvalidState, "trash", operation,
			fmt.Sprintf("item %d is %s, expected %s", mediaID, item.Status, want), nil)
	}
	return item, nil
}
