package api

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"winnow/internal/catalog"
)

// ListScope selects which slice of the catalog a listing returns.
type ListScope string

const (
	ScopeAll    ListScope = ""
	ScopeMovies ListScope = "movies"
	ScopeTV     ListScope = "tv"
	ScopeTrash  ListScope = "trash"
)

// ParseListScope validates a scope argument from the CLI or IPC.
func ParseListScope(value string) (ListScope, error) {
	switch ListScope(strings.ToLower(strings.TrimSpace(value))) {
	case ScopeAll:
		return ScopeAll, nil
	case ScopeMovies:
		return ScopeMovies, nil
	case ScopeTV:
		return ScopeTV, nil
	case ScopeTrash:
		return ScopeTrash, nil
	default:
		return ScopeAll, fmt.Errorf("unknown list scope %q (expected movies, tv, or trash)", value)
	}
}

// ListRequest fetches catalog items for display. ForUser narrows the
// library scopes to what that user sees: active items plus the
// permanent items they own. The trash scope is shared and ignores it.
type ListRequest struct {
	Store   *catalog.Store
	Scope   ListScope
	ForUser string
}

// ListResult carries the annotated listing.
type ListResult struct {
	Items []Item `json:"items"`
}

func List(ctx context.Context, req ListRequest) (ListResult, error) {
	if req.Store == nil {
		return ListResult{}, errors.New("catalog store is required")
	}

	if username := strings.TrimSpace(req.ForUser); username != "" && req.Scope != ScopeTrash {
		return listVisibleTo(ctx, req.Store, req.Scope, username)
	}

	var (
		items []*catalog.MediaItem
		err   error
	)
	switch req.Scope {
	case ScopeMovies:
		items, err = req.Store.ListByType(ctx, catalog.TypeMovie)
	case ScopeTV:
		items, err = req.Store.ListByType(ctx, catalog.TypeTVSeason)
	case ScopeTrash:
		items, err = req.Store.ListTrashed(ctx)
	case ScopeAll:
		items, err = req.Store.List(ctx, catalog.StatusActive, catalog.StatusTrashed, catalog.StatusPermanent)
	default:
		return ListResult{}, fmt.Errorf("unknown list scope %q", req.Scope)
	}
	if err != nil {
		return ListResult{}, err
	}

	// Trash listings keep the store's most-recent-first order; the rest
	// get display collation.
	if req.Scope != ScopeTrash {
		sortForDisplay(items)
	}

	dtos := FromMediaItems(items)
	if err := annotateItems(ctx, req.Store, dtos); err != nil {
		return ListResult{}, err
	}
	return ListResult{Items: dtos}, nil
}

func listVisibleTo(ctx context.Context, store *catalog.Store, scope ListScope, username string) (ListResult, error) {
	user, err := resolveUser(ctx, store, username)
	if err != nil {
		return ListResult{}, err
	}
	items, err := store.ListVisibleForUser(ctx, user.ID)
	if err != nil {
		return ListResult{}, err
	}
	switch scope {
	case ScopeMovies:
		items = filterByType(items, catalog.TypeMovie)
	case ScopeTV:
		items = filterByType(items, catalog.TypeTVSeason)
	}
	sortForDisplay(items)

	dtos := FromMediaItems(items)
	if err := annotateItems(ctx, store, dtos); err != nil {
		return ListResult{}, err
	}
	return ListResult{Items: dtos}, nil
}

func filterByType(items []*catalog.MediaItem, mediaType catalog.MediaType) []*catalog.MediaItem {
	filtered := items[:0]
	for _, item := range items {
		if item.MediaType == mediaType {
			filtered = append(filtered, item)
		}
	}
	return filtered
}

// DescribeRequest fetches one item with votes and ownership.
type DescribeRequest struct {
	Store  *catalog.Store
	ItemID int64
}

// DescribeResult carries the item detail.
type DescribeResult struct {
	Detail ItemDetail `json:"detail"`
}

func Describe(ctx context.Context, req DescribeRequest) (DescribeResult, error) {
	if req.Store == nil {
		return DescribeResult{}, errors.New("catalog store is required")
	}

	item, err := annotatedItem(ctx, req.Store, req.ItemID)
	if err != nil {
		return DescribeResult{}, err
	}
	detail := ItemDetail{Item: item}

	names, err := req.Store.MarkedUsernames(ctx, req.ItemID)
	if err != nil {
		return DescribeResult{}, err
	}
	detail.MarkedBy = names

	owner, err := req.Store.OwnerFor(ctx, req.ItemID)
	if err != nil {
		return DescribeResult{}, err
	}
	if owner != nil {
		user, err := req.Store.GetUserByID(ctx, owner.UserID)
		if err != nil {
			return DescribeResult{}, err
		}
		if user != nil {
			detail.Owner = user.Username
		}
	}
	return DescribeResult{Detail: detail}, nil
}

// StatsRequest fetches catalog aggregates.
type StatsRequest struct {
	Store *catalog.Store
}

// StatsResult carries the dashboard summary.
type StatsResult struct {
	Stats StatsSummary `json:"stats"`
}

func Stats(ctx context.Context, req StatsRequest) (StatsResult, error) {
	if req.Store == nil {
		return StatsResult{}, errors.New("catalog store is required")
	}
	stats, err := req.Store.Stats(ctx)
	if err != nil {
		return StatsResult{}, err
	}
	return StatsResult{Stats: FromStats(stats)}, nil
}

// sortForDisplay orders items by collated title, then season, then
// path. The store's byte ordering puts lowercase titles after every
// uppercase one; the collator does not.
func sortForDisplay(items []*catalog.MediaItem) {
	collator := collate.New(language.Und, collate.IgnoreCase)
	sort.SliceStable(items, func(i, j int) bool {
		if cmp := collator.CompareString(items[i].Title, items[j].Title); cmp != 0 {
			return cmp < 0
		}
		si, sj := seasonOrZero(items[i]), seasonOrZero(items[j])
		if si != sj {
			return si < sj
		}
		return items[i].Path < items[j].Path
	})
}

func seasonOrZero(item *catalog.MediaItem) int64 {
	if item == nil || item.Season == nil {
		return 0
	}
	return *item.Season
}

// annotateItems fills the vote tally fields across a listing in one
// aggregate query.
func annotateItems(ctx context.Context, store *catalog.Store, dtos []Item) error {
	if len(dtos) == 0 {
		return nil
	}
	counts, err := store.MarkCounts(ctx)
	if err != nil {
		return err
	}
	total, err := store.UserCount(ctx)
	if err != nil {
		return err
	}
	for i := range dtos {
		dtos[i].MarkCount = counts[dtos[i].ID]
		dtos[i].TotalUsers = total
	}
	return nil
}
