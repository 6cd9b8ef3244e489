package catalog

import (
	"database/sql"
	"errors"
	"time"
)

const itemColumns = "id, media_type, title, year, season, path, size_bytes, status, trashed_at, first_seen, last_seen, poster_path"

func scanItem(scanner interface{ Scan(dest ...any) error }) (*MediaItem, error) {
	var (
		id         int64
		mediaType  string
		title      string
		year       sql.NullInt64
		season     sql.NullInt64
		path       string
		sizeBytes  sql.NullInt64
		statusStr  string
		trashedRaw sql.NullString
		firstRaw   sql.NullString
		lastRaw    sql.NullString
		posterPath sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&mediaType,
		&title,
		&year,
		&season,
		&path,
		&sizeBytes,
		&statusStr,
		&trashedRaw,
		&firstRaw,
		&lastRaw,
		&posterPath,
	); err != nil {
		return nil, err
	}

	item := &MediaItem{
		ID:         id,
		MediaType:  MediaType(mediaType),
		Title:      title,
		Path:       path,
		SizeBytes:  sizeBytes.Int64,
		Status:     Status(statusStr),
		PosterPath: posterPath.String,
	}
	if year.Valid {
		v := year.Int64
		item.Year = &v
	}
	if season.Valid {
		v := season.Int64
		item.Season = &v
	}
	if trashedRaw.Valid {
		if trashed, err := parseTimeString(trashedRaw.String); err == nil {
			item.TrashedAt = &trashed
		}
	}
	if first, err := parseTimeString(firstRaw.String); err == nil {
		item.FirstSeen = first
	}
	if last, err := parseTimeString(lastRaw.String); err == nil {
		item.LastSeen = last
	}
	return item, nil
}

const userColumns = "id, username, password_hash, is_admin, invite_token, created_at"

func scanUser(scanner interface{ Scan(dest ...any) error }) (*User, error) {
	var (
		id           int64
		username     string
		passwordHash sql.NullString
		isAdmin      sql.NullInt64
		inviteToken  sql.NullString
		createdRaw   sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&username,
		&passwordHash,
		&isAdmin,
		&inviteToken,
		&createdRaw,
	); err != nil {
		return nil, err
	}

	user := &User{
		ID:           id,
		Username:     username,
		PasswordHash: passwordHash.String,
		IsAdmin:      isAdmin.Int64 != 0,
		InviteToken:  inviteToken.String,
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		user.CreatedAt = created
	}
	return user, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableInt64(value *int64) any {
	if value == nil {
		return nil
	}
	return *value
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

// timeTextLayout keeps a fixed-width fraction so TEXT comparisons in
// SQL order chronologically. RFC3339Nano trims trailing zeros, which
// breaks lexicographic ordering within a second.
const timeTextLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeTextLayout)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
