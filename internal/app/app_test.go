package app

import (
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patric-chuzhbe/scratchpad/internal/config"
	"github.com/patric-chuzhbe/scratchpad/internal/db/jsondb"
	"github.com/patric-chuzhbe/scratchpad/internal/db/memorystorage"
	"github.com/patric-chuzhbe/scratchpad/internal/models"
)

func TestNewWithMemoryStorage(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("FILE_STORAGE_PATH", "")

	app, err := New(config.WithDisableFlagsParsing(true))
	require.NoError(t, err)
	defer app.Close()

	assert.IsType(t, &memorystorage.MemoryStorage{}, app.db)

	server := httptest.NewServer(app.Handler())
	defer server.Close()

	var health models.HealthResponse
	resp, err := resty.New().R().SetResult(&health).Get(server.URL + "/api/health")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode())
	assert.Equal(t, "ok", health.Status)

	resp, err = resty.New().R().
		SetBody(models.CredentialsRequest{Username: "alice01", Pin: "pin1234"}).
		Post(server.URL + "/api/register")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode())
}

func TestNewWithFileStorage(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	fileName := filepath.Join(t.TempDir(), "scratchpad.json")

	app, err := New(
		config.WithDisableFlagsParsing(false),
		config.WithArgs([]string{"-f", fileName}),
	)
	require.NoError(t, err)
	defer app.Close()

	assert.IsType(t, &jsondb.JSONDB{}, app.db)
	assert.NoError(t, app.db.Close())
}

func TestGetSigningKey(t *testing.T) {
	key, err := getSigningKey(base64.URLEncoding.EncodeToString([]byte("configured")))
	require.NoError(t, err)
	assert.Equal(t, []byte("configured"), key)

	generated, err := getSigningKey("")
	require.NoError(t, err)
	assert.Len(t, generated, generatedSigningKeyLen)

	_, err = getSigningKey("%%%")
	assert.Error(t, err)
}

func TestStorageTypeSelection(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.Config
		want string
	}{
		{name: "postgres wins", cfg: config.Config{DatabaseDSN: "dsn", DBFileName: "file.json"}, want: "postgresql"},
		{name: "file", cfg: config.Config{DBFileName: "file.json"}, want: "file"},
		{name: "memory", cfg: config.Config{}, want: "memory"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, storageTypeName(getAvailableStorageType(&tt.cfg)))
		})
	}
}
