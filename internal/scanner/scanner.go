// Package scanner walks the library roots and keeps the catalog in
// step with what is actually on disk. A scan upserts every discovered
// item; a full scan additionally retires active items that no longer
// exist under any successfully scanned root.
package scanner

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

// Scanner discovers media items under the configured library roots.
type Scanner struct {
	store    *catalog.Store
	resolver *library.Resolver
	logger   *slog.Logger
}

// New builds a scanner over the given store and root resolver.
func New(store *catalog.Store, resolver *library.Resolver, logger *slog.Logger) *Scanner {
	return &Scanner{
		store:    store,
		resolver: resolver,
		logger:   logging.NewComponentLogger(logger, "scanner"),
	}
}

// Report summarizes one full scan cycle.
type Report struct {
	RootsScanned int
	RootsFailed  int
	ItemsSeen    int
	NewItems     int
	SweptGone    int64
}

// ScanRoot discovers the immediate children of one library root and
// upserts each as a movie or a set of TV seasons. It returns the item
// paths seen, which the caller may feed into a gone sweep, and how many
// of them were new to the catalog.
func (s *Scanner) ScanRoot(ctx context.Context, root string) ([]string, int, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, 0, services.Wrap(services.ErrFilesystem, "scanner", "scan root", fmt.Sprintf("read %s", root), err)
	}

	var seen []string
	newItems := 0
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return seen, newItems, err
		}
		if !entry.IsDir() {
			continue
		}

		dirName := entry.Name()
		dirPath := filepath.Join(root, dirName)

		seasons := findSeasons(dirPath)
		if len(seasons) > 0 {
			for _, season := range seasons {
				num := season.number
				item, created, err := s.store.Upsert(ctx, catalog.Discovery{
					MediaType: catalog.TypeTVSeason,
					Title:     dirName,
					Season:    &num,
					Path:      season.path,
					SizeBytes: fileutil.DirSize(season.path),
				})
				if err != nil {
					return seen, newItems, services.Wrap(services.ErrStore, "scanner", "record discovery", fmt.Sprintf("upsert %s", season.path), err)
				}
				if created {
					newItems++
					s.logger.Info("discovered item",
						logging.Int64(logging.FieldItemID, item.ID),
						logging.String(logging.FieldPath, item.Path),
						logging.String("media_type", string(item.MediaType)))
				}
				seen = append(seen, season.path)
			}
			continue
		}

		title, year := parseMovieDir(dirName)
		item, created, err := s.store.Upsert(ctx, catalog.Discovery{
			MediaType: catalog.TypeMovie,
			Title:     title,
			Year:      year,
			Path:      dirPath,
			SizeBytes: fileutil.DirSize(dirPath),
		})
		if err != nil {
			return seen, newItems, services.Wrap(services.ErrStore, "scanner", "record discovery", fmt.Sprintf("upsert %s", dirPath), err)
		}
		if created {
			newItems++
			s.logger.Info("discovered item",
				logging.Int64(logging.FieldItemID, item.ID),
				logging.String(logging.FieldPath, item.Path),
				logging.String("media_type", string(item.MediaType)))
		}
		seen = append(seen, dirPath)
	}

	return seen, newItems, nil
}

// FullScan scans every configured root and retires stale items. A root
// whose scan fails is logged and sits the cycle out: its items are not
// swept. Items whose path matches no configured root at all are always
// sweepable. When every root fails the sweep is skipped entirely.
func (s *Scanner) FullScan(ctx context.Context) (*Report, error) {
	report := &Report{}
	seen := make(map[string]struct{})
	scannedRoots := make(map[string]struct{})

	for _, root := range s.resolver.Roots() {
		s.logger.Info("scanning library root", logging.String(logging.FieldRoot, root))
		paths, created, err := s.ScanRoot(ctx, root)
		if err != nil {
			report.RootsFailed++
			logging.ErrorWithContext(s.logger, "library root scan failed", "scan_root_failed",
				logging.String(logging.FieldRoot, root),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check that the root is mounted and readable"),
				logging.String(logging.FieldImpact, "items under this root are skipped this cycle"))
			continue
		}
		report.RootsScanned++
		report.NewItems += created
		scannedRoots[root] = struct{}{}
		for _, path := range paths {
			seen[path] = struct{}{}
		}
	}
	report.ItemsSeen = len(seen)

	if report.RootsScanned == 0 {
		logging.WarnWithContext(s.logger, "every library root failed to scan; skipping gone sweep", "scan_all_roots_failed",
			logging.String(logging.FieldImpact, "stale items are retained until a root scans successfully"))
		return report, nil
	}

	swept, err := s.sweepGone(ctx, scannedRoots, seen)
	if err != nil {
		return report, err
	}
	report.SweptGone = swept

	s.logger.Info("scan complete",
		logging.Int("roots_scanned", report.RootsScanned),
		logging.Int("roots_failed", report.RootsFailed),
		logging.Int("items_seen", report.ItemsSeen),
		logging.Int("new_items", report.NewItems),
		logging.Int64("swept_gone", report.SweptGone))
	return report, nil
}

// sweepGone retires active items that were not seen this cycle, scoped
// to roots that scanned successfully plus items owned by no root.
func (s *Scanner) sweepGone(ctx context.Context, scannedRoots map[string]struct{}, seen map[string]struct{}) (int64, error) {
	active, err := s.store.List(ctx, catalog.StatusActive)
	if err != nil {
		return 0, services.Wrap(services.ErrStore, "scanner", "sweep gone", "list active items", err)
	}

	var stale []int64
	for _, item := range active {
		if _, ok := seen[item.Path]; ok {
			continue
		}
		root, err := s.resolver.RootFor(item.Path)
		if err != nil {
			// Orphaned by a configuration change; nothing can rediscover it.
			stale = append(stale, item.ID)
			continue
		}
		if _, ok := scannedRoots[root]; ok {
			stale = append(stale, item.ID)
		}
	}

	swept, err := s.store.MarkGoneByIDs(ctx, stale)
	if err != nil {
		return 0, services.Wrap(services.ErrStore, "scanner", "sweep gone", "mark stale items", err)
	}
	return swept, nil
}
