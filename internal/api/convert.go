package api

import (
	"github.com/dustin/go-humanize"

	"winnow/internal/catalog"
)

// FromMediaItem converts a catalog record to its API representation.
func FromMediaItem(item *catalog.MediaItem) Item {
	if item == nil {
		return Item{}
	}

	dto := Item{
		ID:         item.ID,
		MediaType:  string(item.MediaType),
		Title:      item.Title,
		Year:       item.Year,
		Season:     item.Season,
		Label:      item.Label(),
		Path:       item.Path,
		SizeBytes:  item.SizeBytes,
		Size:       humanize.IBytes(uint64(item.SizeBytes)),
		Status:     string(item.Status),
		PosterPath: item.PosterPath,
	}
	if item.TrashedAt != nil && !item.TrashedAt.IsZero() {
		dto.TrashedAt = item.TrashedAt.UTC().Format(dateTimeFormat)
	}
	if !item.FirstSeen.IsZero() {
		dto.FirstSeen = item.FirstSeen.UTC().Format(dateTimeFormat)
	}
	if !item.LastSeen.IsZero() {
		dto.LastSeen = item.LastSeen.UTC().Format(dateTimeFormat)
	}
	return dto
}

// FromMediaItems converts a slice of catalog records into API DTOs.
func FromMediaItems(items []*catalog.MediaItem) []Item {
	if len(items) == 0 {
		return nil
	}
	out := make([]Item, 0, len(items))
	for _, item := range items {
		out = append(out, FromMediaItem(item))
	}
	return out
}

// FromUser converts a user row to its API representation.
func FromUser(user *catalog.User) UserInfo {
	if user == nil {
		return UserInfo{}
	}
	dto := UserInfo{
		ID:          user.ID,
		Username:    user.Username,
		IsAdmin:     user.IsAdmin,
		InviteToken: user.InviteToken,
	}
	if !user.CreatedAt.IsZero() {
		dto.CreatedAt = user.CreatedAt.UTC().Format(dateTimeFormat)
	}
	return dto
}

// FromStats converts catalog aggregates to the dashboard payload.
func FromStats(stats catalog.LibraryStats) StatsSummary {
	return StatsSummary{
		Total:        stats.Total,
		Active:       stats.Active,
		Trashed:      stats.Trashed,
		Permanent:    stats.Permanent,
		Gone:         stats.Gone,
		Users:        stats.Users,
		ActiveBytes:  stats.ActiveBytes,
		TrashedBytes: stats.TrashedBytes,
		ActiveSize:   humanize.IBytes(uint64(stats.ActiveBytes)),
		TrashedSize:  humanize.IBytes(uint64(stats.TrashedBytes)),
	}
}
