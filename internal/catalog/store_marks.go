package catalog

import (
	"context"
	"fmt"
)

// AddMark records one user's deletion vote for an item. Marking twice
// is a no-op.
func (s *Store) AddMark(ctx context.Context, userID, mediaID int64) error {
	if err := s.execWithoutResultRetry(
		ctx,
		`INSERT OR IGNORE INTO marks (user_id, media_id) VALUES (?, ?)`,
		userID,
		mediaID,
	); err != nil {
		return fmt.Errorf("add mark: %w", err)
	}
	return nil
}

// RemoveMark withdraws one user's deletion vote for an item.
func (s *Store) RemoveMark(ctx context.Context, userID, mediaID int64) error {
	if err := s.execWithoutResultRetry(
		ctx,
		`DELETE FROM marks WHERE user_id = ? AND media_id = ?`,
		userID,
		mediaID,
	); err != nil {
		return fmt.Errorf("remove mark: %w", err)
	}
	return nil
}

// ClearMarks removes every vote on an item. Runs after any transition
// out of active so a returning item starts with a clean slate.
func (s *Store) ClearMarks(ctx context.Context, mediaID int64) error {
	if err := s.execWithoutResultRetry(ctx, `DELETE FROM marks WHERE media_id = ?`, mediaID); err != nil {
		return fmt.Errorf("clear marks: %w", err)
	}
	return nil
}

// MarkCount returns how many users currently vote to delete the item.
func (s *Store) MarkCount(ctx context.Context, mediaID int64) (int, error) {
	ctx = ensureContext(ctx)
	var count int
	row := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM marks WHERE media_id = ?`, mediaID)
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count marks: %w", err)
	}
	return count, nil
}

// AllUsersMarked reports whether every current user has voted to delete
// the item. An empty user roster never satisfies the quorum.
func (s *Store) AllUsersMarked(ctx context.Context, mediaID int64) (bool, error) {
	ctx = ensureContext(ctx)
	var total, unmarked int
	row := s.db.QueryRowContext(
		ctx,
		`SELECT
            (SELECT COUNT(1) FROM users),
            (SELECT COUNT(1) FROM users WHERE id NOT IN (SELECT user_id FROM marks WHERE media_id = ?))`,
		mediaID,
	)
	if err := row.Scan(&total, &unmarked); err != nil {
		return false, fmt.Errorf("check quorum: %w", err)
	}
	return total > 0 && unmarked == 0, nil
}

// MarkCounts returns the vote tally per media id for every item with at
// least one mark. Listings join this in one pass instead of counting
// per row.
func (s *Store) MarkCounts(ctx context.Context) (map[int64]int, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, `SELECT media_id, COUNT(1) FROM marks GROUP BY media_id`)
	if err != nil {
		return nil, fmt.Errorf("count marks per item: %w", err)
	}
	defer rows.Close()

	counts := make(map[int64]int)
	for rows.Next() {
		var id int64
		var count int
		if err := rows.Scan(&id, &count); err != nil {
			return nil, err
		}
		counts[id] = count
	}
	return counts, rows.Err()
}

// UserMarkIDs returns the ids of every item a user has voted on.
func (s *Store) UserMarkIDs(ctx context.Context, userID int64) ([]int64, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, `SELECT media_id FROM marks WHERE user_id = ?`, userID)
	if err != nil {
		return nil, fmt.Errorf("list user marks: %w", err)
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

// MarkedUsernames returns who has voted on an item, alphabetically.
func (s *Store) MarkedUsernames(ctx context.Context, mediaID int64) ([]string, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT u.username FROM marks mk JOIN users u ON u.id = mk.user_id
         WHERE mk.media_id = ? ORDER BY u.username`,
		mediaID,
	)
	if err != nil {
		return nil, fmt.Errorf("list marking users: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// FullQuorumMediaIDs returns every active item for which no current
// user is missing a vote. Removing a user can grow this set, so it is
// re-checked after user deletion.
func (s *Store) FullQuorumMediaIDs(ctx context.Context) ([]int64, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT m.id FROM media m
         WHERE m.status = ?
         AND EXISTS (SELECT 1 FROM users)
         AND NOT EXISTS (
             SELECT 1 FROM users u
             WHERE u.id NOT IN (SELECT mk.user_id FROM marks mk WHERE mk.media_id = m.id)
         )`,
		StatusActive,
	)
	if err != nil {
		return nil, fmt.Errorf("list full-quorum media: %w", err)
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

// DeleteGoneMarks drops votes that point at gone items.
func (s *Store) DeleteGoneMarks(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(
		ctx,
		`DELETE FROM marks WHERE media_id IN (SELECT id FROM media WHERE status = ?)`,
		StatusGone,
	)
	if err != nil {
		return 0, fmt.Errorf("delete gone marks: %w", err)
	}
	return res.RowsAffected()
}
