package catalog

import (
	"context"
	"fmt"
	"time"
)

// SetTrashed moves an active item to trashed and stamps trashed_at.
// Returns false when the item was not active anymore; the caller lost
// the race and must not touch the filesystem for it.
func (s *Store) SetTrashed(ctx context.Context, id int64) (bool, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE media SET status = ?, trashed_at = ? WHERE id = ? AND status = ?`,
		StatusTrashed,
		formatTime(time.Now()),
		id,
		StatusActive,
	)
	if err != nil {
		return false, fmt.Errorf("set trashed: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// SetActive restores an item to active from the expected prior status
// and clears trashed_at. Used by rescue (from trashed) and unpersist
// (from permanent).
func (s *Store) SetActive(ctx context.Context, id int64, expect Status) (bool, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE media SET status = ?, trashed_at = NULL WHERE id = ? AND status = ?`,
		StatusActive,
		id,
		expect,
	)
	if err != nil {
		return false, fmt.Errorf("set active: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// SetPermanent moves an active item into the permanent state.
func (s *Store) SetPermanent(ctx context.Context, id int64) (bool, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE media SET status = ?, trashed_at = NULL WHERE id = ? AND status = ?`,
		StatusPermanent,
		id,
		StatusActive,
	)
	if err != nil {
		return false, fmt.Errorf("set permanent: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// SetGone retires an item from the expected prior status. Purge and
// missing-trash repair call it with trashed; disappearance repair with
// active.
func (s *Store) SetGone(ctx context.Context, id int64, expect Status) (bool, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE media SET status = ? WHERE id = ? AND status = ?`,
		StatusGone,
		id,
		expect,
	)
	if err != nil {
		return false, fmt.Errorf("set gone: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// MarkGoneByPath retires the active item registered at the exact path.
// Watcher remove events land here.
func (s *Store) MarkGoneByPath(ctx context.Context, path string) (bool, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE media SET status = ? WHERE path = ? AND status = ?`,
		StatusGone,
		path,
		StatusActive,
	)
	if err != nil {
		return false, fmt.Errorf("mark gone by path: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// markGoneChunk is the per-statement id batch for bulk updates,
// comfortably below SQLite's bound-variable limit.
const markGoneChunk = 500

// MarkGoneByIDs retires the listed items wherever they are still
// active. Ids are staged through a connection-local temp table so the
// update stays a single statement no matter how many there are.
func (s *Store) MarkGoneByIDs(ctx context.Context, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	ctx = ensureContext(ctx)

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return 0, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, `CREATE TEMP TABLE IF NOT EXISTS _gone_ids (id INTEGER NOT NULL)`); err != nil {
		return 0, fmt.Errorf("create id staging table: %w", err)
	}
	if _, err := conn.ExecContext(ctx, `DELETE FROM _gone_ids`); err != nil {
		return 0, fmt.Errorf("reset id staging table: %w", err)
	}

	for start := 0; start < len(ids); start += markGoneChunk {
		end := start + markGoneChunk
		if end > len(ids) {
			end = len(ids)
		}
		chunk := ids[start:end]
		args := make([]any, len(chunk))
		for i, id := range chunk {
			args[i] = id
		}
		if _, err := conn.ExecContext(ctx, `INSERT INTO _gone_ids (id) VALUES `+valuesGroups(len(chunk)), args...); err != nil {
			return 0, fmt.Errorf("stage ids: %w", err)
		}
	}

	res, err := conn.ExecContext(
		ctx,
		`UPDATE media SET status = ? WHERE status = ? AND id IN (SELECT id FROM _gone_ids)`,
		StatusGone,
		StatusActive,
	)
	if err != nil {
		return 0, fmt.Errorf("mark gone by ids: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}

	if _, err := conn.ExecContext(ctx, `DELETE FROM _gone_ids`); err != nil {
		return affected, fmt.Errorf("clear id staging table: %w", err)
	}
	return affected, nil
}

func valuesGroups(count int) string {
	if count <= 0 {
		return ""
	}
	groups := make([]byte, 0, count*4)
	for i := 0; i < count; i++ {
		if i > 0 {
			groups = append(groups, ',')
		}
		groups = append(groups, '(', '?', ')')
	}
	return string(groups)
}
