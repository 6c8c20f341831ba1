// Package mockstorage provides a testify-based mock implementation
// of storage.Storage. Router and service tests use it to simulate
// backend failures that the real storages never produce.
package mockstorage

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/patric-chuzhbe/scratchpad/internal/models"
	"github.com/patric-chuzhbe/scratchpad/internal/user"
)

// StorageMock is a testify mock that implements storage.Storage.
type StorageMock struct {
	mock.Mock

	// OnGetNumberOfUsers, if set, replaces the generic mock handler of
	// GetNumberOfUsers.
	OnGetNumberOfUsers func(ctx context.Context) (int64, error)

	// OnGetNumberOfTabs, if set, replaces the generic mock handler of
	// GetNumberOfTabs.
	OnGetNumberOfTabs func(ctx context.Context) (int64, error)
}

// Ping mocks the health check.
func (m *StorageMock) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// CreateUser mocks storing a new account.
func (m *StorageMock) CreateUser(ctx context.Context, usr *user.User) (string, error) {
	args := m.Called(ctx, usr)
	return args.String(0), args.Error(1)
}

// GetUserByUsername mocks the account lookup.
func (m *StorageMock) GetUserByUsername(ctx context.Context, username string) (*user.User, bool, error) {
	args := m.Called(ctx, username)
	usr, _ := args.Get(0).(*user.User)
	return usr, args.Bool(1), args.Error(2)
}

// GetTabs mocks fetching the tabs of a user.
func (m *StorageMock) GetTabs(ctx context.Context, userID string) (models.Tabs, error) {
	args := m.Called(ctx, userID)
	tabs, _ := args.Get(0).(models.Tabs)
	return tabs, args.Error(1)
}

// UpsertTab mocks saving one tab.
func (m *StorageMock) UpsertTab(ctx context.Context, userID string, tab models.Tab) error {
	args := m.Called(ctx, userID, tab)
	return args.Error(0)
}

// DeleteTab mocks removing one tab.
func (m *StorageMock) DeleteTab(ctx context.Context, userID, tabID string) error {
	args := m.Called(ctx, userID, tabID)
	return args.Error(0)
}

// DeleteAllTabs mocks removing every tab of a user.
func (m *StorageMock) DeleteAllTabs(ctx context.Context, userID string) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

// GetNumberOfUsers mocks the account count.
func (m *StorageMock) GetNumberOfUsers(ctx context.Context) (int64, error) {
	if m.OnGetNumberOfUsers != nil {
		return m.OnGetNumberOfUsers(ctx)
	}
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

// GetNumberOfTabs mocks the tab count.
func (m *StorageMock) GetNumberOfTabs(ctx context.Context) (int64, error) {
	if m.OnGetNumberOfTabs != nil {
		return m.OnGetNumberOfTabs(ctx)
	}
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

// Close mocks releasing the storage.
func (m *StorageMock) Close() error {
	args := m.Called()
	return args.Error(0)
}
