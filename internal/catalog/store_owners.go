package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SetOwner records which user holds an item permanent. Re-persisting
// replaces the previous owner rather than adding a second row.
func (s *Store) SetOwner(ctx context.Context, mediaID, userID int64) error {
	if err := s.execWithoutResultRetry(
		ctx,
		`INSERT INTO persistent_media (media_id, user_id, persisted_at)
         VALUES (?, ?, ?)
         ON CONFLICT(media_id) DO UPDATE SET
           user_id = excluded.user_id,
           persisted_at = excluded.persisted_at`,
		mediaID,
		userID,
		formatTime(time.Now()),
	); err != nil {
		return fmt.Errorf("set owner: %w", err)
	}
	return nil
}

// ClearOwner releases an item's permanent ownership.
func (s *Store) ClearOwner(ctx context.Context, mediaID int64) error {
	if err := s.execWithoutResultRetry(ctx, `DELETE FROM persistent_media WHERE media_id = ?`, mediaID); err != nil {
		return fmt.Errorf("clear owner: %w", err)
	}
	return nil
}

const ownerColumns = "media_id, user_id, persisted_at"

func scanOwner(scanner interface{ Scan(dest ...any) error }) (*PermanentOwner, error) {
	var (
		mediaID      int64
		userID       int64
		persistedRaw sql.NullString
	)
	if err := scanner.Scan(&mediaID, &userID, &persistedRaw); err != nil {
		return nil, err
	}
	owner := &PermanentOwner{MediaID: mediaID, UserID: userID}
	if persisted, err := parseTimeString(persistedRaw.String); err == nil {
		owner.PersistedAt = persisted
	}
	return owner, nil
}

// OwnerFor returns the permanent owner of an item, or nil when the item
// has none.
func (s *Store) OwnerFor(ctx context.Context, mediaID int64) (*PermanentOwner, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, `SELECT `+ownerColumns+` FROM persistent_media WHERE media_id = ?`, mediaID)
	owner, err := scanOwner(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get owner: %w", err)
	}
	return owner, nil
}

// OwnersForMedia returns the ownership rows for the listed items,
// staging the ids through a connection-local temp table.
func (s *Store) OwnersForMedia(ctx context.Context, mediaIDs []int64) ([]*PermanentOwner, error) {
	if len(mediaIDs) == 0 {
		return nil, nil
	}
	ctx = ensureContext(ctx)

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, `CREATE TEMP TABLE IF NOT EXISTS _owner_ids (id INTEGER NOT NULL)`); err != nil {
		return nil, fmt.Errorf("create id staging table: %w", err)
	}
	if _, err := conn.ExecContext(ctx, `DELETE FROM _owner_ids`); err != nil {
		return nil, fmt.Errorf("reset id staging table: %w", err)
	}

	for start := 0; start < len(mediaIDs); start += markGoneChunk {
		end := start + markGoneChunk
		if end > len(mediaIDs) {
			end = len(mediaIDs)
		}
		chunk := mediaIDs[start:end]
		args := make([]any, len(chunk))
		for i, id := range chunk {
			args[i] = id
		}
		if _, err := conn.ExecContext(ctx, `INSERT INTO _owner_ids (id) VALUES `+valuesGroups(len(chunk)), args...); err != nil {
			return nil, fmt.Errorf("stage ids: %w", err)
		}
	}

	rows, err := conn.QueryContext(
		ctx,
		`SELECT pm.media_id, pm.user_id, pm.persisted_at
         FROM persistent_media pm
         JOIN _owner_ids t ON t.id = pm.media_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("list owners: %w", err)
	}

	var owners []*PermanentOwner
	for rows.Next() {
		owner, err := scanOwner(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		owners = append(owners, owner)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	if _, err := conn.ExecContext(ctx, `DELETE FROM _owner_ids`); err != nil {
		return owners, fmt.Errorf("clear id staging table: %w", err)
	}
	return owners, nil
}

// MediaIDsOwnedBy returns the ids of every item a user holds permanent.
func (s *Store) MediaIDsOwnedBy(ctx context.Context, userID int64) ([]int64, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, `SELECT media_id FROM persistent_media WHERE user_id = ?`, userID)
	if err != nil {
		return nil, fmt.Errorf("list owned media: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
