// Package postgresdb provides the PostgreSQL implementation of the credential
// store and the tab store. The schema is managed with goose migrations.
package postgresdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/patric-chuzhbe/scratchpad/internal/models"
	"github.com/patric-chuzhbe/scratchpad/internal/user"
)

const (
	uniqueViolationCode     = "23505"
	foreignKeyViolationCode = "23503"
)

// PostgresDB is a PostgreSQL-backed storage.
type PostgresDB struct {
	database          *sql.DB
	connectionTimeout time.Duration
}

type initOptions struct {
	DBPreReset bool
}

// InitOption defines a functional option for configuring database initialization.
type InitOption func(*initOptions)

// WithDBPreReset drops every table in the public schema before migrating.
// It is meant for test setups.
func WithDBPreReset(value bool) InitOption {
	return func(options *initOptions) {
		options.DBPreReset = value
	}
}

// New connects to the database and applies the migrations found in migrationsDir.
func New(
	ctx context.Context,
	databaseDSN string,
	connectionTimeout time.Duration,
	migrationsDir string,
	optionsProto ...InitOption,
) (*PostgresDB, error) {
	options := &initOptions{
		DBPreReset: false,
	}
	for _, protoOption := range optionsProto {
		protoOption(options)
	}

	database, err := sql.Open("pgx", databaseDSN)
	if err != nil {
		return nil, err
	}

	result := newWithDB(database, connectionTimeout)

	if options.DBPreReset {
		if err := result.resetDB(ctx); err != nil {
			return nil,
				fmt.Errorf(
					"in internal/db/postgresdb/postgresdb.go/New(): error while `result.resetDB()` calling: %w",
					err,
				)
		}
	}

	if err := goose.SetDialect("postgres"); err != nil {
		return nil,
			fmt.Errorf(
				"in internal/db/postgresdb/postgresdb.go/New(): error while `goose.SetDialect()` calling: %w",
				err,
			)
	}

	if err := goose.UpContext(ctx, result.database, migrationsDir); err != nil {
		return nil,
			fmt.Errorf(
				"in internal/db/postgresdb/postgresdb.go/New(): error while `goose.UpContext()` calling: %w",
				err,
			)
	}

	return result, nil
}

func newWithDB(database *sql.DB, connectionTimeout time.Duration) *PostgresDB {
	return &PostgresDB{
		database:          database,
		connectionTimeout: connectionTimeout,
	}
}

// CreateUser inserts a user with a freshly generated UUID. A taken username
// surfaces as models.ErrConflict through the unique constraint.
func (db *PostgresDB) CreateUser(ctx context.Context, usr *user.User) (string, error) {
	row := db.database.QueryRowContext(
		ctx,
		`INSERT INTO users (id, username, pin_hash) VALUES ($1, $2, $3) RETURNING id`,
		uuid.New().String(),
		usr.Username,
		usr.PinHash,
	)
	var userIDFromDB string
	if err := row.Scan(&userIDFromDB); err != nil {
		if isPgError(err, uniqueViolationCode) {
			return "", models.ErrConflict
		}
		return "", err
	}

	return userIDFromDB, nil
}

// GetUserByUsername fetches the user with the given lower-cased username.
func (db *PostgresDB) GetUserByUsername(ctx context.Context, username string) (*user.User, bool, error) {
	row := db.database.QueryRowContext(
		ctx,
		`SELECT id, username, pin_hash, created_at FROM users WHERE username = $1`,
		username,
	)
	usr := &user.User{}
	err := row.Scan(&usr.ID, &usr.Username, &usr.PinHash, &usr.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}

	return usr, true, nil
}

// GetTabs returns the user's tabs in byte order of tab_id, independent of
// the database collation.
func (db *PostgresDB) GetTabs(ctx context.Context, userID string) (models.Tabs, error) {
	rows, err := db.database.QueryContext(
		ctx,
		`
			SELECT tab_id, tab_name, content, updated_at
				FROM tabs
				WHERE user_id = $1
				ORDER BY tab_id COLLATE "C"
		`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := models.Tabs{}
	for rows.Next() {
		var tab models.Tab
		if err := rows.Scan(&tab.TabID, &tab.TabName, &tab.Content, &tab.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, tab)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// UpsertTab inserts the tab or overwrites its name, content and updated_at.
func (db *PostgresDB) UpsertTab(ctx context.Context, userID string, tab models.Tab) error {
	_, err := db.database.ExecContext(
		ctx,
		`
			INSERT INTO tabs (user_id, tab_id, tab_name, content, updated_at)
				VALUES ($1, $2, $3, $4, CURRENT_TIMESTAMP)
				ON CONFLICT (user_id, tab_id) DO UPDATE
				SET
					tab_name = EXCLUDED.tab_name,
					content = EXCLUDED.content,
					updated_at = CURRENT_TIMESTAMP
		`,
		userID,
		tab.TabID,
		tab.TabName,
		tab.Content,
	)
	if isPgError(err, foreignKeyViolationCode) {
		return models.ErrUnknownUser
	}

	return err
}

func (db *PostgresDB) DeleteTab(ctx context.Context, userID, tabID string) error {
	_, err := db.database.ExecContext(
		ctx,
		`DELETE FROM tabs WHERE user_id = $1 AND tab_id = $2`,
		userID,
		tabID,
	)

	return err
}

func (db *PostgresDB) DeleteAllTabs(ctx context.Context, userID string) error {
	_, err := db.database.ExecContext(ctx, `DELETE FROM tabs WHERE user_id = $1`, userID)

	return err
}

func (db *PostgresDB) GetNumberOfUsers(ctx context.Context) (int64, error) {
	return db.count(ctx, `SELECT COUNT(*) FROM users`)
}

func (db *PostgresDB) GetNumberOfTabs(ctx context.Context) (int64, error) {
	return db.count(ctx, `SELECT COUNT(*) FROM tabs`)
}

func (db *PostgresDB) count(ctx context.Context, query string) (int64, error) {
	var result int64
	if err := db.database.QueryRowContext(ctx, query).Scan(&result); err != nil {
		return 0, err
	}

	return result, nil
}

// Ping verifies connectivity within the configured timeout.
func (db *PostgresDB) Ping(ctx context.Context) error {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, db.connectionTimeout)
	defer cancel()

	return db.database.PingContext(ctxWithTimeout)
}

func (db *PostgresDB) Close() error {
	return db.database.Close()
}

func (db *PostgresDB) resetDB(ctx context.Context) error {
	_, err := db.database.ExecContext(
		ctx,
		`
			DO $$
			DECLARE
				r RECORD;
			BEGIN
				FOR r IN (SELECT tablename FROM pg_tables WHERE schemaname = 'public') LOOP
					EXECUTE 'DROP TABLE IF EXISTS ' || quote_ident(r.tablename) || ' CASCADE';
				END LOOP;
			END $$;
		`,
	)
	if err != nil {
		return fmt.Errorf(
			"in internal/db/postgresdb/postgresdb.go/resetDB(): error while `db.database.ExecContext()` calling: %w",
			err,
		)
	}
	return nil
}

func isPgError(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}
