package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testJSON = `{
	"server_address": ":3100",
	"file_storage_path": "json_storage.json",
	"database_dsn": "json-dsn",
	"db_connection_timeout": "3s",
	"cors_allowed_origins": ["https://pad.example.com"],
	"enforce_tab_ownership": true
}`

func writeTempJSON(t *testing.T, content string) string {
	t.Helper()
	file, err := os.CreateTemp("", "config*.json")
	require.NoError(t, err)
	_, err = file.WriteString(content)
	require.NoError(t, err)
	require.NoError(t, file.Close())
	t.Cleanup(func() {
		err := os.Remove(file.Name())
		require.NoError(t, err)
	})
	return file.Name()
}

func TestDefaults(t *testing.T) {
	cfg, err := New(WithDisableFlagsParsing(true))
	require.NoError(t, err)

	assert.Equal(t, ":3000", cfg.RunAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 10*time.Second, cfg.DBConnectionTimeout)
	assert.Equal(t, []string{"*"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, int64(10<<20), cfg.MaxBodyBytes)
	assert.Equal(t, "scratchpad_token", cfg.AuthCookieName)
	assert.False(t, cfg.EnforceTabOwnership)
	assert.Empty(t, cfg.DatabaseDSN)
	assert.Empty(t, cfg.DBFileName)
}

func TestApplyDefaultsCopiesSlices(t *testing.T) {
	values := Config{}
	applyDefaults(&values, defaultConfig)
	values.CORSAllowedOrigins[0] = "changed"

	assert.Equal(t, []string{"*"}, defaultConfig.CORSAllowedOrigins)
}

func TestConfigPriorityJSONOnly(t *testing.T) {
	jsonPath := writeTempJSON(t, testJSON)
	t.Setenv("CONFIG", jsonPath)

	cfg, err := New(WithDisableFlagsParsing(true))
	require.NoError(t, err)

	assert.Equal(t, ":3100", cfg.RunAddr)
	assert.Equal(t, "json_storage.json", cfg.DBFileName)
	assert.Equal(t, "json-dsn", cfg.DatabaseDSN)
	assert.Equal(t, 3*time.Second, cfg.DBConnectionTimeout)
	assert.Equal(t, []string{"https://pad.example.com"}, cfg.CORSAllowedOrigins)
	assert.True(t, cfg.EnforceTabOwnership)
	assert.Equal(t, "info", cfg.LogLevel) // default kept
}

func TestConfigPriorityJSONPlusEnv(t *testing.T) {
	jsonPath := writeTempJSON(t, testJSON)
	t.Setenv("CONFIG", jsonPath)
	t.Setenv("SERVER_ADDRESS", ":4000")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example.com,https://b.example.com")

	cfg, err := New(WithDisableFlagsParsing(true))
	require.NoError(t, err)

	assert.Equal(t, ":4000", cfg.RunAddr) // env overrides json
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, "json-dsn", cfg.DatabaseDSN) // from JSON
}

func TestConfigPriorityAllSources(t *testing.T) {
	jsonPath := writeTempJSON(t, testJSON)
	t.Setenv("CONFIG", jsonPath)
	t.Setenv("SERVER_ADDRESS", ":4000")
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := New(WithArgs([]string{
		"-a", ":6000",
		"-l", "debug",
		"-t", "10.0.0.0/8",
	}))
	require.NoError(t, err)

	assert.Equal(t, ":6000", cfg.RunAddr) // CLI > ENV > JSON
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "10.0.0.0/8", cfg.TrustedSubnet)
	assert.Equal(t, "json-dsn", cfg.DatabaseDSN) // from JSON
}

func TestConfigFileFromFlag(t *testing.T) {
	jsonPath := writeTempJSON(t, testJSON)

	cfg, err := New(WithArgs([]string{"-config", jsonPath}))
	require.NoError(t, err)

	assert.Equal(t, ":3100", cfg.RunAddr)
	assert.Equal(t, jsonPath, cfg.ConfigFile)
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "bad log level", env: map[string]string{"LOG_LEVEL": "loud"}},
		{name: "bad address", env: map[string]string{"SERVER_ADDRESS": "localhost"}},
		{name: "bad subnet", env: map[string]string{"TRUSTED_SUBNET": "10.0.0.0/99"}},
		{name: "bad signing key", env: map[string]string{"AUTH_TOKEN_SIGNING_KEY": "not base64!"}},
		{name: "pin hash cost too low", env: map[string]string{"PIN_HASH_COST": "2"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for key, value := range tt.env {
				t.Setenv(key, value)
			}

			_, err := New(WithDisableFlagsParsing(true))
			assert.Error(t, err)
		})
	}
}

func TestMissingConfigFile(t *testing.T) {
	t.Setenv("CONFIG", "/nonexistent/config.json")

	_, err := New(WithDisableFlagsParsing(true))
	assert.Error(t, err)
}
