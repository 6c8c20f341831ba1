// Package storage declares the contract every persistence backend of the
// sync server fulfils: the credential store and the tab store.
package storage

import (
	"context"

	"github.com/patric-chuzhbe/scratchpad/internal/models"
	"github.com/patric-chuzhbe/scratchpad/internal/user"
)

type Storage interface {
	// CreateUser stores usr and returns its ID. It returns models.ErrConflict
	// when the username is taken.
	CreateUser(ctx context.Context, usr *user.User) (string, error)

	// GetUserByUsername looks up a lower-cased username.
	GetUserByUsername(ctx context.Context, username string) (*user.User, bool, error)

	// GetTabs returns the user's tabs ordered by tab ID.
	GetTabs(ctx context.Context, userID string) (models.Tabs, error)

	// UpsertTab inserts the tab or overwrites name, content and updated_at.
	UpsertTab(ctx context.Context, userID string, tab models.Tab) error

	DeleteTab(ctx context.Context, userID, tabID string) error

	DeleteAllTabs(ctx context.Context, userID string) error

	GetNumberOfUsers(ctx context.Context) (int64, error)

	GetNumberOfTabs(ctx context.Context) (int64, error)

	Ping(ctx context.Context) error

	Close() error
}
