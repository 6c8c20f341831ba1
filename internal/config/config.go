// Package config assembles the sync server configuration from defaults, an
// optional JSON file, the environment (including a .env file) and command
// line flags, in that order of increasing priority.
package config

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	env "github.com/caarlos0/env/v6"
	validator "github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/patric-chuzhbe/scratchpad/internal/logger"
)

// Config holds every server setting.
type Config struct {
	RunAddr             string        `env:"SERVER_ADDRESS" validate:"hostname_port"`
	LogLevel            string        `env:"LOG_LEVEL" validate:"loglevel"`
	DatabaseDSN         string        `env:"DATABASE_URL"`
	DBFileName          string        `env:"FILE_STORAGE_PATH" validate:"omitempty,filepath"`
	DBConnectionTimeout time.Duration `env:"DB_CONNECTION_TIMEOUT" validate:"gt=0"`
	MigrationsDir       string        `env:"MIGRATIONS_DIR"`
	StaticDir           string        `env:"STATIC_DIR"`
	CORSAllowedOrigins  []string      `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," validate:"min=1"`
	PinHashCost         int           `env:"PIN_HASH_COST" validate:"min=4,max=31"`
	MaxBodyBytes        int64         `env:"MAX_BODY_BYTES" validate:"gt=0"`
	AuthTokenSigningKey string        `env:"AUTH_TOKEN_SIGNING_KEY" validate:"omitempty,base64url"`
	AuthCookieName      string        `env:"AUTH_COOKIE_NAME" validate:"required"`
	EnforceTabOwnership bool          `env:"ENFORCE_TAB_OWNERSHIP"`
	TrustedSubnet       string        `env:"TRUSTED_SUBNET" validate:"omitempty,cidr"`
	ConfigFile          string        `env:"CONFIG"`
}

// fileConfig is the JSON file representation. Durations are written the
// way time.ParseDuration reads them, e.g. "5s".
type fileConfig struct {
	RunAddr             string   `json:"server_address"`
	LogLevel            string   `json:"log_level"`
	DatabaseDSN         string   `json:"database_dsn"`
	DBFileName          string   `json:"file_storage_path"`
	DBConnectionTimeout string   `json:"db_connection_timeout"`
	MigrationsDir       string   `json:"migrations_dir"`
	StaticDir           string   `json:"static_dir"`
	CORSAllowedOrigins  []string `json:"cors_allowed_origins"`
	PinHashCost         int      `json:"pin_hash_cost"`
	MaxBodyBytes        int64    `json:"max_body_bytes"`
	AuthTokenSigningKey string   `json:"auth_token_signing_key"`
	AuthCookieName      string   `json:"auth_cookie_name"`
	EnforceTabOwnership bool     `json:"enforce_tab_ownership"`
	TrustedSubnet       string   `json:"trusted_subnet"`
}

var defaultConfig = Config{
	RunAddr:             ":3000",
	LogLevel:            "info",
	DBConnectionTimeout: 10 * time.Second,
	MigrationsDir:       "cmd/scratchpad/migrations",
	CORSAllowedOrigins:  []string{"*"},
	PinHashCost:         10,
	MaxBodyBytes:        10 << 20,
	AuthCookieName:      "scratchpad_token",
}

type InitOption func(*initOptions)

type initOptions struct {
	disableFlagsParsing bool
	args                []string
}

// WithDisableFlagsParsing skips command line flags; tests use it.
func WithDisableFlagsParsing(disableFlagsParsing bool) InitOption {
	return func(options *initOptions) {
		options.disableFlagsParsing = disableFlagsParsing
	}
}

// WithArgs parses the given arguments instead of os.Args[1:].
func WithArgs(args []string) InitOption {
	return func(options *initOptions) {
		options.args = args
	}
}

// New builds and validates the configuration.
func New(optionsProto ...InitOption) (*Config, error) {
	options := &initOptions{
		disableFlagsParsing: false,
		args:                os.Args[1:],
	}
	for _, protoOption := range optionsProto {
		protoOption(options)
	}

	if err := godotenv.Load(); err != nil {
		logger.Log.Debugln("Unable to load .env file:", err)
	}

	var valuesFromFlags Config
	if !options.disableFlagsParsing {
		if err := parseFlags(&valuesFromFlags, options.args); err != nil {
			return nil, err
		}
	}

	var valuesFromEnv Config
	if err := env.Parse(&valuesFromEnv); err != nil {
		return nil, fmt.Errorf("in internal/config/config.go/New(): error while `env.Parse()` calling: %w", err)
	}

	values := &Config{}
	applyDefaults(values, defaultConfig)

	configFile := valuesFromFlags.ConfigFile
	if configFile == "" {
		configFile = valuesFromEnv.ConfigFile
	}
	if configFile != "" {
		valuesFromFile, err := readJSONFile(configFile)
		if err != nil {
			return nil, err
		}
		applyOverrides(values, valuesFromFile)
		values.ConfigFile = configFile
	}

	applyOverrides(values, &valuesFromEnv)
	applyOverrides(values, &valuesFromFlags)

	if err := values.validate(); err != nil {
		return nil, err
	}

	return values, nil
}

func parseFlags(values *Config, args []string) error {
	flags := flag.NewFlagSet("scratchpad", flag.ContinueOnError)
	flags.StringVar(&values.RunAddr, "a", "", "address and port to run server")
	flags.StringVar(&values.LogLevel, "l", "", "logger level")
	flags.StringVar(&values.DatabaseDSN, "d", "", "PostgreSQL connection string")
	flags.StringVar(&values.DBFileName, "f", "", "JSON file used as storage when no database is configured")
	flags.StringVar(&values.MigrationsDir, "m", "", "directory with goose migrations")
	flags.StringVar(&values.StaticDir, "s", "", "directory with the frontend to serve at /")
	flags.StringVar(&values.TrustedSubnet, "t", "", "CIDR allowed to query /api/internal/stats")
	flags.StringVar(&values.ConfigFile, "c", "", "path to a JSON config file")
	flags.StringVar(&values.ConfigFile, "config", "", "path to a JSON config file")

	return flags.Parse(args)
}

func readJSONFile(fileName string) (*Config, error) {
	data, err := os.ReadFile(fileName)
	if err != nil {
		return nil, fmt.Errorf("in internal/config/config.go/readJSONFile(): error while `os.ReadFile()` calling: %w", err)
	}

	var raw fileConfig
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("in internal/config/config.go/readJSONFile(): error while `json.Unmarshal()` calling: %w", err)
	}

	result := &Config{
		RunAddr:             raw.RunAddr,
		LogLevel:            raw.LogLevel,
		DatabaseDSN:         raw.DatabaseDSN,
		DBFileName:          raw.DBFileName,
		MigrationsDir:       raw.MigrationsDir,
		StaticDir:           raw.StaticDir,
		CORSAllowedOrigins:  raw.CORSAllowedOrigins,
		PinHashCost:         raw.PinHashCost,
		MaxBodyBytes:        raw.MaxBodyBytes,
		AuthTokenSigningKey: raw.AuthTokenSigningKey,
		AuthCookieName:      raw.AuthCookieName,
		EnforceTabOwnership: raw.EnforceTabOwnership,
		TrustedSubnet:       raw.TrustedSubnet,
	}
	if raw.DBConnectionTimeout != "" {
		result.DBConnectionTimeout, err = time.ParseDuration(raw.DBConnectionTimeout)
		if err != nil {
			return nil, fmt.Errorf("in internal/config/config.go/readJSONFile(): bad db_connection_timeout: %w", err)
		}
	}

	return result, nil
}

func applyDefaults(values *Config, defaults Config) {
	*values = defaults
	values.CORSAllowedOrigins = append([]string(nil), defaults.CORSAllowedOrigins...)
}

// applyOverrides copies every non-zero field of src over dst.
func applyOverrides(dst, src *Config) {
	if src.RunAddr != "" {
		dst.RunAddr = src.RunAddr
	}
	if src.LogLevel != "" {
		dst.LogLevel = src.LogLevel
	}
	if src.DatabaseDSN != "" {
		dst.DatabaseDSN = src.DatabaseDSN
	}
	if src.DBFileName != "" {
		dst.DBFileName = src.DBFileName
	}
	if src.DBConnectionTimeout != 0 {
		dst.DBConnectionTimeout = src.DBConnectionTimeout
	}
	if src.MigrationsDir != "" {
		dst.MigrationsDir = src.MigrationsDir
	}
	if src.StaticDir != "" {
		dst.StaticDir = src.StaticDir
	}
	if len(src.CORSAllowedOrigins) > 0 {
		dst.CORSAllowedOrigins = src.CORSAllowedOrigins
	}
	if src.PinHashCost != 0 {
		dst.PinHashCost = src.PinHashCost
	}
	if src.MaxBodyBytes != 0 {
		dst.MaxBodyBytes = src.MaxBodyBytes
	}
	if src.AuthTokenSigningKey != "" {
		dst.AuthTokenSigningKey = src.AuthTokenSigningKey
	}
	if src.AuthCookieName != "" {
		dst.AuthCookieName = src.AuthCookieName
	}
	if src.EnforceTabOwnership {
		dst.EnforceTabOwnership = true
	}
	if src.TrustedSubnet != "" {
		dst.TrustedSubnet = src.TrustedSubnet
	}
}

func validateFilePath(fieldLevel validator.FieldLevel) bool {
	path := fieldLevel.Field().String()
	_, err := os.Stat(path)

	return err == nil || os.IsNotExist(err)
}

func validateLogLevel(fieldLevel validator.FieldLevel) bool {
	allowedLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
		"fatal": true,
	}

	return allowedLogLevels[fieldLevel.Field().String()]
}

func (c *Config) validate() error {
	validate := validator.New()

	if err := validate.RegisterValidation("loglevel", validateLogLevel); err != nil {
		return err
	}

	if err := validate.RegisterValidation("filepath", validateFilePath); err != nil {
		return err
	}

	return validate.Struct(c)
}
