package catalog

import (
	"fmt"
	"time"
)

// MediaType distinguishes the two shapes of library items.
type MediaType string

const (
	TypeMovie    MediaType = "movie"
	TypeTVSeason MediaType = "tv_season"
)

// Valid reports whether the media type is one the catalog understands.
func (t MediaType) Valid() bool {
	switch t {
	case TypeMovie, TypeTVSeason:
		return true
	default:
		return false
	}
}

// Status captures an item's position in the deletion lifecycle.
type Status string

const (
	StatusActive    Status = "active"
	StatusTrashed   Status = "trashed"
	StatusPermanent Status = "permanent"
	StatusGone      Status = "gone"
)

// Valid reports whether the status is a known lifecycle state.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusTrashed, StatusPermanent, StatusGone:
		return true
	default:
		return false
	}
}

// MediaItem is one movie or TV season tracked by the catalog. Path is
// always the item's location under its library root; while the item is
// trashed or permanent the bytes live at the derived sibling location,
// but Path stays canonical so a rescue or unpersist knows where to put
// them back.
type MediaItem struct {
	ID         int64
	MediaType  MediaType
	Title      string
	Year       *int64
	Season     *int64
	Path       string
	SizeBytes  int64
	Status     Status
	TrashedAt  *time.Time
	FirstSeen  time.Time
	LastSeen   time.Time
	PosterPath string
}

// Label renders the item the way listings and notifications name it.
func (m *MediaItem) Label() string {
	if m == nil {
		return ""
	}
	switch m.MediaType {
	case TypeTVSeason:
		if m.Season != nil {
			return fmt.Sprintf("%s Season %d", m.Title, *m.Season)
		}
		return m.Title
	default:
		if m.Year != nil {
			return fmt.Sprintf("%s (%d)", m.Title, *m.Year)
		}
		return m.Title
	}
}

// User is a library member counted toward deletion quorum. A user with
// an unused invite token has no password hash yet but still counts.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	IsAdmin      bool
	InviteToken  string
	CreatedAt    time.Time
}

// PermanentOwner records which user holds an item out of the deletion
// flow. At most one owner exists per item; re-persisting replaces it.
type PermanentOwner struct {
	MediaID     int64
	UserID      int64
	PersistedAt time.Time
}

// LibraryStats aggregates item counts and sizes for the status surface.
type LibraryStats struct {
	Total        int
	Active       int
	Trashed      int
	Permanent    int
	Gone         int
	Users        int
	ActiveBytes  int64
	TrashedBytes int64
}

// DatabaseHealth describes the catalog database for diagnostics.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	SchemaVersion    string
	TableExists      bool
	ColumnsPresent   []string
	MissingColumns   []string
	IntegrityCheck   bool
	TotalItems       int
	Error            string
}
