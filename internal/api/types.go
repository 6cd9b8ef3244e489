package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Item describes a catalog entry in a transport-friendly format.
type Item struct {
	ID         int64  `json:"id"`
	MediaType  string `json:"mediaType"`
	Title      string `json:"title"`
	Year       *int64 `json:"year,omitempty"`
	Season     *int64 `json:"season,omitempty"`
	Label      string `json:"label"`
	Path       string `json:"path"`
	SizeBytes  int64  `json:"sizeBytes"`
	Size       string `json:"size"`
	Status     string `json:"status"`
	TrashedAt  string `json:"trashedAt,omitempty"`
	FirstSeen  string `json:"firstSeen,omitempty"`
	LastSeen   string `json:"lastSeen,omitempty"`
	PosterPath string `json:"posterPath,omitempty"`
	MarkCount  int    `json:"markCount"`
	TotalUsers int    `json:"totalUsers"`
}

// ItemDetail extends Item with who voted and who owns it.
type ItemDetail struct {
	Item     Item     `json:"item"`
	MarkedBy []string `json:"markedBy,omitempty"`
	Owner    string   `json:"owner,omitempty"`
}

// UserInfo describes a user account for listings.
type UserInfo struct {
	ID          int64  `json:"id"`
	Username    string `json:"username"`
	IsAdmin     bool   `json:"isAdmin"`
	InviteToken string `json:"inviteToken,omitempty"`
	CreatedAt   string `json:"createdAt,omitempty"`
}

// StatsSummary aggregates catalog counts and sizes for dashboards.
type StatsSummary struct {
	Total        int    `json:"total"`
	Active       int    `json:"active"`
	Trashed      int    `json:"trashed"`
	Permanent    int    `json:"permanent"`
	Gone         int    `json:"gone"`
	Users        int    `json:"users"`
	ActiveBytes  int64  `json:"activeBytes"`
	TrashedBytes int64  `json:"trashedBytes"`
	ActiveSize   string `json:"activeSize"`
	TrashedSize  string `json:"trashedSize"`
}
