package postgresdb

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patric-chuzhbe/scratchpad/internal/db/storage"
	"github.com/patric-chuzhbe/scratchpad/internal/models"
	"github.com/patric-chuzhbe/scratchpad/internal/user"
)

var _ storage.Storage = (*PostgresDB)(nil)

const testUserID = "6f1c3f1e-8f0a-4c7b-9a55-1d2f3e4a5b6c"

func newMockDB(t *testing.T) (*PostgresDB, sqlmock.Sqlmock) {
	t.Helper()
	database, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	return newWithDB(database, time.Second), mock
}

func TestCreateUser(t *testing.T) {
	ctx := context.Background()
	query := regexp.QuoteMeta(`INSERT INTO users (id, username, pin_hash) VALUES ($1, $2, $3) RETURNING id`)

	t.Run("stored", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectQuery(query).
			WithArgs(sqlmock.AnyArg(), "alice01", "hash").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(testUserID))

		userID, err := db.CreateUser(ctx, &user.User{Username: "alice01", PinHash: "hash"})
		require.NoError(t, err)
		assert.Equal(t, testUserID, userID)
	})

	t.Run("username taken", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectQuery(query).
			WithArgs(sqlmock.AnyArg(), "alice01", "hash").
			WillReturnError(&pgconn.PgError{Code: uniqueViolationCode})

		_, err := db.CreateUser(ctx, &user.User{Username: "alice01", PinHash: "hash"})
		assert.ErrorIs(t, err, models.ErrConflict)
	})

	t.Run("other failure", func(t *testing.T) {
		db, mock := newMockDB(t)
		failure := errors.New("connection reset")
		mock.ExpectQuery(query).WillReturnError(failure)

		_, err := db.CreateUser(ctx, &user.User{Username: "alice01", PinHash: "hash"})
		assert.ErrorIs(t, err, failure)
		assert.NotErrorIs(t, err, models.ErrConflict)
	})
}

func TestGetUserByUsername(t *testing.T) {
	ctx := context.Background()
	query := regexp.QuoteMeta(`SELECT id, username, pin_hash, created_at FROM users WHERE username = $1`)
	createdAt := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	t.Run("found", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectQuery(query).
			WithArgs("alice01").
			WillReturnRows(
				sqlmock.NewRows([]string{"id", "username", "pin_hash", "created_at"}).
					AddRow(testUserID, "alice01", "hash", createdAt),
			)

		usr, found, err := db.GetUserByUsername(ctx, "alice01")
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, &user.User{ID: testUserID, Username: "alice01", PinHash: "hash", CreatedAt: createdAt}, usr)
	})

	t.Run("not found", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectQuery(query).
			WithArgs("nobody").
			WillReturnRows(sqlmock.NewRows([]string{"id", "username", "pin_hash", "created_at"}))

		usr, found, err := db.GetUserByUsername(ctx, "nobody")
		require.NoError(t, err)
		assert.False(t, found)
		assert.Nil(t, usr)
	})
}

func TestGetTabs(t *testing.T) {
	ctx := context.Background()
	db, mock := newMockDB(t)
	updatedAt := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT tab_id, tab_name, content, updated_at\s+FROM tabs\s+WHERE user_id = \$1\s+ORDER BY tab_id COLLATE "C"`).
		WithArgs(testUserID).
		WillReturnRows(
			sqlmock.NewRows([]string{"tab_id", "tab_name", "content", "updated_at"}).
				AddRow("1", "a", "one", updatedAt).
				AddRow("2", "", "", updatedAt),
		)

	tabs, err := db.GetTabs(ctx, testUserID)
	require.NoError(t, err)
	assert.Equal(t, models.Tabs{
		{TabID: "1", TabName: "a", Content: "one", UpdatedAt: updatedAt},
		{TabID: "2", TabName: "", Content: "", UpdatedAt: updatedAt},
	}, tabs)
}

func TestGetTabsEmpty(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery(`SELECT tab_id`).
		WithArgs(testUserID).
		WillReturnRows(sqlmock.NewRows([]string{"tab_id", "tab_name", "content", "updated_at"}))

	tabs, err := db.GetTabs(context.Background(), testUserID)
	require.NoError(t, err)
	assert.NotNil(t, tabs)
	assert.Empty(t, tabs)
}

func TestUpsertTab(t *testing.T) {
	ctx := context.Background()
	query := `INSERT INTO tabs \(user_id, tab_id, tab_name, content, updated_at\)\s+VALUES .*\s+ON CONFLICT \(user_id, tab_id\) DO UPDATE`

	t.Run("stored", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectExec(query).
			WithArgs(testUserID, "1", "name", "content").
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := db.UpsertTab(ctx, testUserID, models.Tab{TabID: "1", TabName: "name", Content: "content"})
		assert.NoError(t, err)
	})

	t.Run("unknown user", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectExec(query).
			WillReturnError(&pgconn.PgError{Code: foreignKeyViolationCode})

		err := db.UpsertTab(ctx, testUserID, models.Tab{TabID: "1"})
		assert.ErrorIs(t, err, models.ErrUnknownUser)
	})
}

func TestDeleteTabs(t *testing.T) {
	ctx := context.Background()
	db, mock := newMockDB(t)

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM tabs WHERE user_id = $1 AND tab_id = $2`)).
		WithArgs(testUserID, "1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM tabs WHERE user_id = $1`)).
		WithArgs(testUserID).
		WillReturnResult(sqlmock.NewResult(0, 3))

	assert.NoError(t, db.DeleteTab(ctx, testUserID, "1"))
	assert.NoError(t, db.DeleteAllTabs(ctx, testUserID))
}

func TestCounts(t *testing.T) {
	ctx := context.Background()
	db, mock := newMockDB(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM users`)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(2)))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM tabs`)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(7)))

	users, err := db.GetNumberOfUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), users)

	tabs, err := db.GetNumberOfTabs(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(7), tabs)
}

func TestPingAndClose(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectPing()
	mock.ExpectClose()

	assert.NoError(t, db.Ping(context.Background()))
	assert.NoError(t, db.Close())
}
