package app

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/user"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/florianilch/chargectl/internal/observability"
	"github.com/florianilch/chargectl/internal/tokenstore"
)

// LogFormat represents the logging output format.
type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
)

// TokenStorageType represents the different storage types supported for stored tokens.
type TokenStorageType string

const (
	TokenStorageTypeFile    TokenStorageType = "file"
	TokenStorageTypeEnv     TokenStorageType = "env"
	TokenStorageTypeKeyring TokenStorageType = "keyring"
	TokenStorageTypeSQLite  TokenStorageType = "sqlite"
)

// Default configuration values
const (
	DefaultConfigLogFormat         = LogFormatText
	DefaultConfigTelemetryExporter = observability.ExporterNone
	DefaultConfigAPIBaseURL        = "https://owner-api.teslamotors.com/"
	DefaultConfigHTTPTimeout       = 30 * time.Second
	DefaultConfigAuthStorage       = TokenStorageTypeFile
	DefaultConfigAuthEnvPrefix     = "TESLA_"
	DefaultConfigKeyringService    = "chargectl"
)

// appDirName is the per-user directory name below the cache and config dirs.
const appDirName = "chargectl"

// TelemetryConfig holds log export configuration. With an exporter set,
// records leave through it and log_format does not apply.
type TelemetryConfig struct {
	Exporter observability.Exporter `json:"exporter" validate:"oneof=none stdout otlp-http otlp-grpc"`
}

// APIConfig holds vehicle API configuration.
type APIConfig struct {
	BaseURL string `json:"base_url" validate:"required,url"`
}

// VehicleConfig identifies the vehicle commands are sent to.
// ID is only required by vehicle commands, so it is checked there.
type VehicleConfig struct {
	ID string `json:"id"`
}

// HTTPConfig holds outbound HTTP configuration.
type HTTPConfig struct {
	// Timeout bounds every upstream request.
	Timeout time.Duration `json:"timeout" validate:"gt=0"`
}

// AuthConfig describes how to construct the TokenStore.
type AuthConfig struct {
	// Storage configuration - where tokens are kept
	Storage TokenStorageType `json:"storage" validate:"required,oneof=file env keyring sqlite"`

	// Storage-specific settings (mutually exclusive based on Storage type)
	Dir         string `json:"dir,omitempty"`          // For file storage: directory of token entries
	Database    string `json:"database,omitempty"`     // For sqlite storage: database file
	KeyringUser string `json:"keyring_user,omitempty"` // For keyring storage: user identifier
	EnvPrefix   string `json:"env_prefix,omitempty"`   // For env storage: variable name prefix
}

// NewTokenStore creates a TokenStore from the authentication configuration.
func (a *AuthConfig) NewTokenStore() (tokenstore.TokenStore, error) {
	switch a.Storage {
	case TokenStorageTypeFile:
		return tokenstore.NewFileStore(a.Dir)
	case TokenStorageTypeEnv:
		return tokenstore.NewEnvStore(a.EnvPrefix)
	case TokenStorageTypeKeyring:
		return tokenstore.NewKeyringStore(DefaultConfigKeyringService, a.KeyringUser)
	case TokenStorageTypeSQLite:
		return tokenstore.NewSQLiteStore(a.Database)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", a.Storage)
	}
}

// Config holds the application's configuration.
type Config struct {
	// LogLevel for logging output (defaults to Info if unset).
	LogLevel  slog.Level      `json:"log_level"`
	LogFormat LogFormat       `json:"log_format" validate:"oneof=text json"`
	LogFile   string          `json:"log_file,omitempty"`
	Telemetry TelemetryConfig `json:"telemetry"`
	API       APIConfig       `json:"api"`
	Vehicle   VehicleConfig   `json:"vehicle"`
	HTTP      HTTPConfig      `json:"http"`
	Auth      AuthConfig      `json:"auth"`
}

// Default creates a new Config with default values applied.
func Default() (*Config, error) {
	cfg := &Config{}
	if err := cfg.ApplyDefaults(); err != nil {
		return nil, fmt.Errorf("failed to apply defaults: %w", err)
	}
	return cfg, nil
}

// ApplyDefaults fills unset config fields with sensible defaults.
func (c *Config) ApplyDefaults() error {
	if c.LogFormat == "" {
		c.LogFormat = DefaultConfigLogFormat
	}
	if c.Telemetry.Exporter == "" {
		c.Telemetry.Exporter = DefaultConfigTelemetryExporter
	}
	if c.API.BaseURL == "" {
		c.API.BaseURL = DefaultConfigAPIBaseURL
	}
	if c.HTTP.Timeout == 0 {
		c.HTTP.Timeout = DefaultConfigHTTPTimeout
	}
	if c.Auth.Storage == "" {
		c.Auth.Storage = DefaultConfigAuthStorage
	}

	// Dynamic defaults based on storage type
	switch c.Auth.Storage {
	case TokenStorageTypeFile:
		if c.Auth.Dir == "" {
			cacheDir, err := os.UserCacheDir()
			if err != nil {
				return fmt.Errorf("auth.dir required (auto-detect failed: %w)", err)
			}
			c.Auth.Dir = filepath.Join(cacheDir, appDirName, "tokens")
		}
	case TokenStorageTypeSQLite:
		if c.Auth.Database == "" {
			cacheDir, err := os.UserCacheDir()
			if err != nil {
				return fmt.Errorf("auth.database required (auto-detect failed: %w)", err)
			}
			c.Auth.Database = filepath.Join(cacheDir, appDirName, "tokens.db")
		}
	case TokenStorageTypeKeyring:
		if c.Auth.KeyringUser == "" {
			currentUser, err := user.Current()
			if err != nil {
				return fmt.Errorf("auth.keyring_user required (auto-detect failed: %w)", err)
			}
			c.Auth.KeyringUser = currentUser.Username
		}
	case TokenStorageTypeEnv:
		if c.Auth.EnvPrefix == "" {
			c.Auth.EnvPrefix = DefaultConfigAuthEnvPrefix
		}
	}

	return nil
}

// Validate validates the configuration using struct tags and enum values.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}

	if c.LogFile != "" && c.Telemetry.Exporter != "" && c.Telemetry.Exporter != observability.ExporterNone {
		return fmt.Errorf("log_file cannot be combined with telemetry.exporter %s", c.Telemetry.Exporter)
	}

	switch c.Auth.Storage {
	case TokenStorageTypeFile:
		if c.Auth.Dir == "" {
			return errors.New("dir required for file storage")
		}
	case TokenStorageTypeSQLite:
		if c.Auth.Database == "" {
			return errors.New("database required for sqlite storage")
		}
	case TokenStorageTypeEnv:
		if c.Auth.EnvPrefix == "" {
			return errors.New("env_prefix required for env storage")
		}
	case TokenStorageTypeKeyring:
		if c.Auth.KeyringUser == "" {
			return errors.New("keyring_user required for keyring storage")
		}
	}

	return nil
}

// ObservabilityOptions returns the logging setup described by the config.
func (c *Config) ObservabilityOptions() observability.Options {
	return observability.Options{
		Level:    c.LogLevel,
		Format:   string(c.LogFormat),
		File:     c.LogFile,
		Exporter: c.Telemetry.Exporter,
	}
}

// DefaultConfigFile returns the config file consulted when none is given.
func DefaultConfigFile() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, appDirName, "config.toml"), nil
}
