package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"winnow/internal/catalog"
	"winnow/internal/config"
	"winnow/internal/logging"
	"winnow/internal/services"
)

// UserAddRequest creates a user account with a fresh invite token.
type UserAddRequest struct {
	Store    *catalog.Store
	Username string
	Admin    bool
}

// UserAddResult carries the created account and its invite token.
type UserAddResult struct {
	User UserInfo `json:"user"`
}

func UserAdd(ctx context.Context, req UserAddRequest) (UserAddResult, error) {
	if req.Store == nil {
		return UserAddResult{}, errors.New("catalog store is required")
	}
	name := strings.TrimSpace(req.Username)
	if name == "" {
		return UserAddResult{}, services.Wrap(services.ErrValidation, "api", "add user",
			"a username is required", nil)
	}
	if existing, err := req.Store.GetUserByName(ctx, name); err != nil {
		return UserAddResult{}, err
	} else if existing != nil {
		return UserAddResult{}, services.Wrap(services.ErrValidation, "api", "add user",
			fmt.Sprintf("user %q already exists", name), nil)
	}

	user, err := req.Store.CreateUser(ctx, name, req.Admin, uuid.NewString())
	if err != nil {
		return UserAddResult{}, err
	}
	return UserAddResult{User: FromUser(user)}, nil
}

// UserListRequest fetches every account.
type UserListRequest struct {
	Store *catalog.Store
}

// UserListResult carries the account listing.
type UserListResult struct {
	Users []UserInfo `json:"users"`
}

func UserList(ctx context.Context, req UserListRequest) (UserListResult, error) {
	if req.Store == nil {
		return UserListResult{}, errors.New("catalog store is required")
	}
	users, err := req.Store.ListUsers(ctx)
	if err != nil {
		return UserListResult{}, err
	}
	out := make([]UserInfo, 0, len(users))
	for _, user := range users {
		out = append(out, FromUser(user))
	}
	return UserListResult{Users: out}, nil
}

// UserRemoveRequest deletes an account. The user's permanent items are
// returned to the shared library first, and quorum is re-evaluated for
// every active item afterwards, since a departing holdout can tip items
// into the trash.
type UserRemoveRequest struct {
	Config   *config.Config
	Logger   *slog.Logger
	Store    *catalog.Store
	Username string
}

// UserRemoveResult reports the side effects of the removal.
type UserRemoveResult struct {
	Restored int `json:"restored"`
	Trashed  int `json:"trashed"`
}

func UserRemove(ctx context.Context, req UserRemoveRequest) (UserRemoveResult, error) {
	logger := workflowLogger(req.Logger)
	trashEngine, permanentEngine, err := buildEngines(req.Config, req.Store, logger)
	if err != nil {
		return UserRemoveResult{}, err
	}
	user, err := resolveUser(ctx, req.Store, req.Username)
	if err != nil {
		return UserRemoveResult{}, err
	}

	restored, err := permanentEngine.RestoreAllOwnedBy(ctx, user.ID)
	if err != nil {
		return UserRemoveResult{}, fmt.Errorf("restore permanent items for %s: %w", user.Username, err)
	}

	deleted, err := req.Store.DeleteUser(ctx, user.ID)
	if err != nil {
		return UserRemoveResult{}, err
	}
	if !deleted {
		return UserRemoveResult{}, services.Wrap(services.ErrNotFound, "api", "remove user",
			fmt.Sprintf("user %q not found", user.Username), nil)
	}
	logger.Info("user removed",
		logging.Int64(logging.FieldUserID, user.ID),
		logging.String("username", user.Username),
		logging.Int("restored_items", restored))

	trashed, err := trashEngine.TrashAllEligible(ctx)
	if err != nil {
		return UserRemoveResult{Restored: restored}, fmt.Errorf("re-evaluate quorum: %w", err)
	}
	return UserRemoveResult{Restored: restored, Trashed: trashed}, nil
}
