package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/patric-chuzhbe/scratchpad/internal/db/memorystorage"
	"github.com/patric-chuzhbe/scratchpad/internal/mockstorage"
	"github.com/patric-chuzhbe/scratchpad/internal/models"
)

func newTestService() *Service {
	return New(memorystorage.New(), bcrypt.MinCost)
}

func validationMessage(t *testing.T, err error) string {
	t.Helper()
	var validationErr *models.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.ErrorIs(t, err, models.ErrValidation)

	return validationErr.Message
}

func TestRegisterAndAuthenticate(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	registered, err := svc.Register(ctx, "Alice01", "pin1234")
	require.NoError(t, err)
	assert.Equal(t, "alice01", registered.Username)
	assert.NotEmpty(t, registered.ID)
	assert.NotEqual(t, "pin1234", registered.PinHash)

	authenticated, err := svc.Authenticate(ctx, "ALICE01", "pin1234")
	require.NoError(t, err)
	assert.Equal(t, registered.ID, authenticated.ID)
	assert.Equal(t, "alice01", authenticated.Username)
}

func TestRegisterConflictIsCaseInsensitive(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	_, err := svc.Register(ctx, "alice01", "pin1234")
	require.NoError(t, err)

	_, err = svc.Register(ctx, "ALICE01", "other99")
	assert.ErrorIs(t, err, models.ErrConflict)
}

func TestRegisterValidation(t *testing.T) {
	tests := []struct {
		name     string
		username string
		pin      string
		message  string
	}{
		{name: "short username", username: "abc", pin: "pin1234", message: msgBadUsername},
		{name: "long username", username: strings.Repeat("a", 17), pin: "pin1234", message: msgBadUsername},
		{name: "username with symbols", username: "alice_01", pin: "pin1234", message: msgBadUsername},
		{name: "short pin", username: "alice01", pin: "123", message: msgBadPin},
		{name: "long pin", username: "alice01", pin: strings.Repeat("1", 17), message: msgBadPin},
		{name: "pin with space", username: "alice01", pin: "12 34", message: msgBadPin},
	}

	svc := newTestService()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(context.Background(), tt.username, tt.pin)
			assert.Equal(t, tt.message, validationMessage(t, err))
		})
	}
}

func TestRegisterAcceptsPinSymbols(t *testing.T) {
	_, err := newTestService().Register(context.Background(), "bob1", `!@#$%^&*()_+-=[]{};':"\|,.<>/?`[:16])
	assert.NoError(t, err)
}

func TestAuthenticateFailuresLookAlike(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()
	_, err := svc.Register(ctx, "alice01", "pin1234")
	require.NoError(t, err)

	_, wrongPinErr := svc.Authenticate(ctx, "alice01", "pin9999")
	_, unknownUserErr := svc.Authenticate(ctx, "nobody1", "pin1234")

	assert.ErrorIs(t, wrongPinErr, models.ErrAuth)
	assert.ErrorIs(t, unknownUserErr, models.ErrAuth)
	assert.Equal(t, wrongPinErr.Error(), unknownUserErr.Error())
}

func TestAuthenticateBadFormat(t *testing.T) {
	_, err := newTestService().Authenticate(context.Background(), "a", "pin1234")
	assert.Equal(t, msgBadCredentialsFormat, validationMessage(t, err))
}

func TestTabs(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()
	usr, err := svc.Register(ctx, "alice01", "pin1234")
	require.NoError(t, err)

	require.NoError(t, svc.UpsertTab(ctx, usr.ID, "2", "second", "b"))
	require.NoError(t, svc.UpsertTab(ctx, usr.ID, "1", "", "a"))
	require.NoError(t, svc.UpsertTab(ctx, usr.ID, "1", "", "a"))

	tabs, err := svc.ListTabs(ctx, usr.ID)
	require.NoError(t, err)
	require.Len(t, tabs, 2)
	assert.Equal(t, "1", tabs[0].TabID)
	assert.Equal(t, "a", tabs[0].Content)
	assert.Equal(t, "2", tabs[1].TabID)

	require.NoError(t, svc.DeleteTab(ctx, usr.ID, "2"))
	require.NoError(t, svc.DeleteTab(ctx, usr.ID, "2"))
	tabs, err = svc.ListTabs(ctx, usr.ID)
	require.NoError(t, err)
	assert.Len(t, tabs, 1)

	require.NoError(t, svc.DeleteAllTabs(ctx, usr.ID))
	tabs, err = svc.ListTabs(ctx, usr.ID)
	require.NoError(t, err)
	assert.Empty(t, tabs)

	stats, err := svc.GetInternalStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.InternalStatsResponse{Users: 1, Tabs: 0}, stats)
}

func TestUpsertTabValidation(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()
	usr, err := svc.Register(ctx, "alice01", "pin1234")
	require.NoError(t, err)

	tests := []struct {
		name    string
		userID  string
		tabID   string
		message string
	}{
		{name: "missing user", userID: "", tabID: "1", message: msgMissingTabFields},
		{name: "missing tab", userID: usr.ID, tabID: "", message: msgMissingTabFields},
		{name: "tab id too long", userID: usr.ID, tabID: strings.Repeat("x", models.MaxTabIDLength+1), message: msgTabIDTooLong},
		{name: "malformed user", userID: "42", tabID: "1", message: msgInvalidUserID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.UpsertTab(ctx, tt.userID, tt.tabID, "", "")
			assert.Equal(t, tt.message, validationMessage(t, err))
		})
	}
}

func TestMalformedUserIDOwnsNothing(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	tabs, err := svc.ListTabs(ctx, "not-a-uuid")
	require.NoError(t, err)
	assert.Empty(t, tabs)
	assert.NoError(t, svc.DeleteTab(ctx, "not-a-uuid", "1"))
	assert.NoError(t, svc.DeleteAllTabs(ctx, "not-a-uuid"))
}

func TestStorageFailuresAreWrapped(t *testing.T) {
	ctx := context.Background()
	failure := errors.New("disk on fire")
	userID := "6f1c3f1e-8f0a-4c7b-9a55-1d2f3e4a5b6c"

	storageMock := &mockstorage.StorageMock{}
	storageMock.On("CreateUser", mock.Anything, mock.Anything).Return("", failure)
	storageMock.On("GetUserByUsername", mock.Anything, "alice01").Return(nil, false, failure)
	storageMock.On("GetTabs", mock.Anything, userID).Return(nil, failure)
	storageMock.On("UpsertTab", mock.Anything, userID, mock.Anything).Return(failure)
	storageMock.On("DeleteTab", mock.Anything, userID, "1").Return(failure)
	storageMock.On("DeleteAllTabs", mock.Anything, userID).Return(failure)
	storageMock.OnGetNumberOfUsers = func(ctx context.Context) (int64, error) {
		return 0, failure
	}

	svc := New(storageMock, bcrypt.MinCost)

	_, err := svc.Register(ctx, "alice01", "pin1234")
	assert.ErrorIs(t, err, models.ErrStorage)
	_, err = svc.Authenticate(ctx, "alice01", "pin1234")
	assert.ErrorIs(t, err, models.ErrStorage)
	_, err = svc.ListTabs(ctx, userID)
	assert.ErrorIs(t, err, models.ErrStorage)
	assert.ErrorIs(t, svc.UpsertTab(ctx, userID, "1", "", ""), models.ErrStorage)
	assert.ErrorIs(t, svc.DeleteTab(ctx, userID, "1"), models.ErrStorage)
	assert.ErrorIs(t, svc.DeleteAllTabs(ctx, userID), models.ErrStorage)
	_, err = svc.GetInternalStats(ctx)
	assert.ErrorIs(t, err, models.ErrStorage)
	assert.ErrorIs(t, err, failure)

	storageMock.AssertExpectations(t)
}
