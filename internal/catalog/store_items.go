package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Discovery describes one item found on disk during a scan.
type Discovery struct {
	MediaType MediaType
	Title     string
	Year      *int64
	Season    *int64
	Path      string
	SizeBytes int64
}

// Upsert records a discovery. A new path inserts a fresh active item; a
// known path refreshes last_seen and size and reactivates the row,
// clearing trashed_at so a half-finished rescue heals on the next scan.
// Title, year, and season are kept from the first sighting. The second
// return value reports whether the item was newly created.
func (s *Store) Upsert(ctx context.Context, d Discovery) (*MediaItem, bool, error) {
	ctx = ensureContext(ctx)
	if !d.MediaType.Valid() {
		return nil, false, fmt.Errorf("invalid media type %q", d.MediaType)
	}
	if d.Path == "" {
		return nil, false, errors.New("discovery path is empty")
	}

	now := formatTime(time.Now())

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("begin upsert tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var id int64
	created := false
	row := tx.QueryRowContext(ctx, `SELECT id FROM media WHERE path = ?`, d.Path)
	switch err := row.Scan(&id); {
	case errors.Is(err, sql.ErrNoRows):
		res, insertErr := tx.ExecContext(
			ctx,
			`INSERT INTO media (media_type, title, year, season, path, size_bytes, status, first_seen, last_seen)
             VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			d.MediaType,
			d.Title,
			nullableInt64(d.Year),
			nullableInt64(d.Season),
			d.Path,
			d.SizeBytes,
			StatusActive,
			now,
			now,
		)
		if insertErr != nil {
			return nil, false, fmt.Errorf("insert media: %w", insertErr)
		}
		id, err = res.LastInsertId()
		if err != nil {
			return nil, false, fmt.Errorf("last insert id: %w", err)
		}
		created = true
	case err != nil:
		return nil, false, fmt.Errorf("lookup media by path: %w", err)
	default:
		if _, err := tx.ExecContext(
			ctx,
			`UPDATE media
             SET last_seen = ?, size_bytes = ?, status = ?, trashed_at = NULL
             WHERE id = ?`,
			now,
			d.SizeBytes,
			StatusActive,
			id,
		); err != nil {
			return nil, false, fmt.Errorf("refresh media: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("commit upsert: %w", err)
	}

	item, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return item, created, nil
}

// GetByID fetches a media item by identifier.
func (s *Store) GetByID(ctx context.Context, id int64) (*MediaItem, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM media WHERE id = ?`, id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get media item: %w", err)
	}
	return item, nil
}

// GetByPath fetches the media item registered at the exact library path.
func (s *Store) GetByPath(ctx context.Context, path string) (*MediaItem, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM media WHERE path = ?`, path)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get media by path: %w", err)
	}
	return item, nil
}

// List returns media items filtered by status set, ordered for display.
// With no statuses every item is returned, gone ones included.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*MediaItem, error) {
	ctx = ensureContext(ctx)
	var (
		rows *sql.Rows
		err  error
	)

	baseQuery := `SELECT ` + itemColumns + ` FROM media`
	orderClause := ` ORDER BY title, season`

	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		query := baseQuery + ` WHERE status IN (` + placeholders + `)` + orderClause
		rows, err = s.db.QueryContext(ctx, query, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list media items: %w", err)
	}
	defer rows.Close()

	return collectItems(rows)
}

// ListByType returns active items of one media type ordered by title.
func (s *Store) ListByType(ctx context.Context, mediaType MediaType) ([]*MediaItem, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+itemColumns+` FROM media WHERE media_type = ? AND status = ? ORDER BY title, season`,
		mediaType,
		StatusActive,
	)
	if err != nil {
		return nil, fmt.Errorf("list media by type: %w", err)
	}
	defer rows.Close()

	return collectItems(rows)
}

// ListVisibleForUser returns what one user sees in the library: every
// active item plus the permanent items that user owns.
func (s *Store) ListVisibleForUser(ctx context.Context, userID int64) ([]*MediaItem, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+prefixedItemColumns("m")+`
         FROM media m
         LEFT JOIN persistent_media pm ON pm.media_id = m.id
         WHERE m.status = ? OR (m.status = ? AND pm.user_id = ?)
         ORDER BY m.title, m.season`,
		StatusActive,
		StatusPermanent,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list visible media: %w", err)
	}
	defer rows.Close()

	return collectItems(rows)
}

// ListTrashed returns trashed items, most recently trashed first.
func (s *Store) ListTrashed(ctx context.Context) ([]*MediaItem, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+itemColumns+` FROM media WHERE status = ? ORDER BY trashed_at DESC`,
		StatusTrashed,
	)
	if err != nil {
		return nil, fmt.Errorf("list trashed media: %w", err)
	}
	defer rows.Close()

	return collectItems(rows)
}

// ListExpiredTrash returns trashed items whose trashed_at timestamp is
// at or before the cutoff, oldest first.
func (s *Store) ListExpiredTrash(ctx context.Context, cutoff time.Time) ([]*MediaItem, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+itemColumns+` FROM media
         WHERE status = ? AND trashed_at IS NOT NULL AND trashed_at <= ?
         ORDER BY trashed_at`,
		StatusTrashed,
		formatTime(cutoff),
	)
	if err != nil {
		return nil, fmt.Errorf("list expired trash: %w", err)
	}
	defer rows.Close()

	return collectItems(rows)
}

func collectItems(rows *sql.Rows) ([]*MediaItem, error) {
	var items []*MediaItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func prefixedItemColumns(alias string) string {
	cols := ""
	for i, col := range []string{"id", "media_type", "title", "year", "season", "path", "size_bytes", "status", "trashed_at", "first_seen", "last_seen", "poster_path"} {
		if i > 0 {
			cols += ", "
		}
		cols += alias + "." + col
	}
	return cols
}
