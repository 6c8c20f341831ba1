// Package app initializes and runs the sync server.
// It configures logging, storage, authentication and routing,
// and handles graceful shutdown.
package app

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/patric-chuzhbe/scratchpad/internal/auth"
	"github.com/patric-chuzhbe/scratchpad/internal/config"
	"github.com/patric-chuzhbe/scratchpad/internal/db/jsondb"
	"github.com/patric-chuzhbe/scratchpad/internal/db/memorystorage"
	"github.com/patric-chuzhbe/scratchpad/internal/db/postgresdb"
	"github.com/patric-chuzhbe/scratchpad/internal/db/storage"
	"github.com/patric-chuzhbe/scratchpad/internal/ipchecker"
	"github.com/patric-chuzhbe/scratchpad/internal/logger"
	"github.com/patric-chuzhbe/scratchpad/internal/models"
	"github.com/patric-chuzhbe/scratchpad/internal/router"
	"github.com/patric-chuzhbe/scratchpad/internal/service"
)

const (
	shutdownTimeout       = 10 * time.Second
	generatedSigningKeyLen = 32
)

// App encapsulates the configuration, HTTP handler and storage backend
// needed to run the sync server.
type App struct {
	cfg         *config.Config
	db          storage.Storage
	httpHandler http.Handler
}

// New loads the configuration, initializes the logger, selects the storage
// and builds the router.
func New(optionsProto ...config.InitOption) (*App, error) {
	var err error
	app := &App{}

	app.cfg, err = config.New(optionsProto...)
	if err != nil {
		return nil, err
	}

	err = logger.Init(app.cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	signingKey, err := getSigningKey(app.cfg.AuthTokenSigningKey)
	if err != nil {
		return nil, err
	}

	trustedSubnetChecker, err := ipchecker.New(app.cfg.TrustedSubnet)
	if err != nil {
		return nil, err
	}

	app.db, err = getStorageByType(app.cfg)
	if err != nil {
		return nil, err
	}

	app.httpHandler = router.New(
		service.New(app.db, app.cfg.PinHashCost),
		auth.New(
			app.cfg.AuthCookieName,
			signingKey,
			app.cfg.EnforceTabOwnership,
		),
		trustedSubnetChecker,
		router.WithStaticDir(app.cfg.StaticDir),
		router.WithCORSAllowedOrigins(app.cfg.CORSAllowedOrigins),
		router.WithMaxBodyBytes(app.cfg.MaxBodyBytes),
	)

	return app, nil
}

// Handler returns the HTTP handler serving the API.
func (a *App) Handler() http.Handler {
	return a.httpHandler
}

// Run starts the HTTP server with graceful shutdown support.
// It listens for system signals and cleans up resources upon termination.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Log.Infoln("server running", "RunAddr", a.cfg.RunAddr, "storage", storageTypeName(getAvailableStorageType(a.cfg)))

	server := &http.Server{
		Addr:              a.cfg.RunAddr,
		Handler:           a.httpHandler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Log.Infoln("Received shutdown signal. Closing storage and exiting...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}

		return a.db.Close()

	case err := <-serverErrCh:
		if closeErr := a.db.Close(); closeErr != nil {
			logger.Log.Errorln("Error calling the `a.db.Close()`:", zap.Error(closeErr))
		}
		return fmt.Errorf("server error: %w", err)
	}
}

// Close finalizes resources used by App such as logging.
func (a *App) Close() {
	if err := logger.Sync(); err != nil {
		fmt.Fprintln(os.Stderr, "Logger sync error:", err)
	}
}

// getSigningKey decodes the configured key or, when none is configured,
// generates one. Tokens signed with a generated key do not survive a restart.
func getSigningKey(encoded string) ([]byte, error) {
	if encoded != "" {
		key, err := base64.URLEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("in internal/app/app.go/getSigningKey(): error while `base64.URLEncoding.DecodeString()` calling: %w", err)
		}
		return key, nil
	}

	key := make([]byte, generatedSigningKeyLen)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("in internal/app/app.go/getSigningKey(): error while `rand.Read()` calling: %w", err)
	}
	logger.Log.Warnln("No token signing key configured, using a generated one")

	return key, nil
}

func getAvailableStorageType(cfg *config.Config) int {
	if cfg.DatabaseDSN != "" {
		return models.StorageTypePostgresql
	}

	if cfg.DBFileName != "" {
		return models.StorageTypeFile
	}

	return models.StorageTypeMemory
}

func storageTypeName(storageType int) string {
	switch storageType {
	case models.StorageTypePostgresql:
		return "postgresql"
	case models.StorageTypeFile:
		return "file"
	case models.StorageTypeMemory:
		return "memory"
	}

	return "unknown"
}

func getStorageByType(cfg *config.Config) (storage.Storage, error) {
	switch getAvailableStorageType(cfg) {
	case models.StorageTypeUnknown:
		return nil, errors.New("unknown storage type")

	case models.StorageTypePostgresql:
		return postgresdb.New(
			context.Background(),
			cfg.DatabaseDSN,
			cfg.DBConnectionTimeout,
			cfg.MigrationsDir,
		)

	case models.StorageTypeFile:
		return jsondb.New(cfg.DBFileName)
	}

	return memorystorage.New(), nil
}
