package memorystorage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patric-chuzhbe/scratchpad/internal/db/storage"
	"github.com/patric-chuzhbe/scratchpad/internal/models"
	"github.com/patric-chuzhbe/scratchpad/internal/user"
)

var _ storage.Storage = (*MemoryStorage)(nil)

func TestMemoryStorage(t *testing.T) {
	ctx := context.Background()
	theStorage := New()

	userID, err := theStorage.CreateUser(ctx, &user.User{Username: "dave2024", PinHash: "hash"})
	require.NoError(t, err)

	require.NoError(t, theStorage.UpsertTab(ctx, userID, models.Tab{TabID: "1", Content: "x"}))

	tabs, err := theStorage.GetTabs(ctx, userID)
	require.NoError(t, err)
	require.Len(t, tabs, 1)
	assert.Equal(t, "x", tabs[0].Content)

	assert.NoError(t, theStorage.Ping(ctx))
	assert.NoError(t, theStorage.Close())
}
