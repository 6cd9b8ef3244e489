package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// CreateUser adds a library member. Username must be unique; the
// optional invite token is stored for a future account claim.
func (s *Store) CreateUser(ctx context.Context, username string, isAdmin bool, inviteToken string) (*User, error) {
	ctx = ensureContext(ctx)
	if username == "" {
		return nil, errors.New("username is empty")
	}
	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO users (username, is_admin, invite_token) VALUES (?, ?, ?)`,
		username,
		boolToInt(isAdmin),
		nullableString(inviteToken),
	)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetUserByID(ctx, id)
}

// GetUserByID fetches a user by identifier.
func (s *Store) GetUserByID(ctx context.Context, id int64) (*User, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

// GetUserByName fetches a user by username.
func (s *Store) GetUserByName(ctx context.Context, username string) (*User, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE username = ?`, username)
	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by name: %w", err)
	}
	return user, nil
}

// ListUsers returns every library member in creation order.
func (s *Store) ListUsers(ctx context.Context) ([]*User, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// DeleteUser removes a member. Their marks cascade away; permanent
// ownership must be released by the caller first.
func (s *Store) DeleteUser(ctx context.Context, id int64) (bool, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete user: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// UserCount returns the size of the quorum universe.
func (s *Store) UserCount(ctx context.Context) (int, error) {
	ctx = ensureContext(ctx)
	var count int
	row := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM users`)
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return count, nil
}

// EnsureAdmin seeds the named admin account if it does not exist yet.
// The second return value reports whether a row was created.
func (s *Store) EnsureAdmin(ctx context.Context, username string) (*User, bool, error) {
	ctx = ensureContext(ctx)
	existing, err := s.GetUserByName(ctx, username)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}
	user, err := s.CreateUser(ctx, username, true, "")
	if err != nil {
		return nil, false, err
	}
	return user, true, nil
}
