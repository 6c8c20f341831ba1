// Package clientconfig loads the padctl settings from command line flags,
// PADCTL_* environment variables and an optional YAML file, in that order of
// decreasing priority.
package clientconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	validator "github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const EnvPrefix = "PADCTL"

// Config holds every client setting.
type Config struct {
	ServerURL      string        `mapstructure:"server_url" validate:"required,url"`
	StateFile      string        `mapstructure:"state_file" validate:"required"`
	Debounce       time.Duration `mapstructure:"debounce" validate:"gt=0"`
	SyncInterval   time.Duration `mapstructure:"sync_interval" validate:"gt=0"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" validate:"gt=0"`
	LogLevel       string        `mapstructure:"log_level" validate:"oneof=debug info warn error"`
}

// flag name -> configuration key
var flagKeys = map[string]string{
	"server-url":      "server_url",
	"state-file":      "state_file",
	"debounce":        "debounce",
	"sync-interval":   "sync_interval",
	"request-timeout": "request_timeout",
	"log-level":       "log_level",
	"config":          "config",
}

// RegisterFlags adds the client flags to flags.
func RegisterFlags(flags *pflag.FlagSet) {
	flags.String("server-url", "http://localhost:3000", "sync server base URL")
	flags.String("state-file", DefaultStateFile(), "local state file")
	flags.Duration("debounce", 2*time.Second, "quiet period after an edit before pushing")
	flags.Duration("sync-interval", 30*time.Second, "period of the background push")
	flags.Duration("request-timeout", 10*time.Second, "timeout of one server request")
	flags.String("log-level", "warn", "log level: debug, info, warn or error")
	flags.StringP("config", "c", "", "YAML configuration file")
}

// Load resolves the configuration for flags previously set up by RegisterFlags.
func Load(flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	for flagName, key := range flagKeys {
		flag := flags.Lookup(flagName)
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return nil, fmt.Errorf("in internal/client/clientconfig/clientconfig.go/Load(): error while `v.BindPFlag()` calling: %w", err)
		}
	}

	if configFile := v.GetString("config"); configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("in internal/client/clientconfig/clientconfig.go/Load(): error while `v.ReadInConfig()` calling: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("in internal/client/clientconfig/clientconfig.go/Load(): error while `v.Unmarshal()` calling: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid client configuration: %w", err)
	}

	return cfg, nil
}

// DefaultStateFile is ~/.padctl/state.db, or a file in the working
// directory when the home directory is unknown.
func DefaultStateFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".padctl-state.db"
	}

	return filepath.Join(home, ".padctl", "state.db")
}
