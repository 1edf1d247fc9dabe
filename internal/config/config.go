// Package config provides Viper-based configuration management for rollcall
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/roach88/rollcall/internal/classify"
	"github.com/roach88/rollcall/internal/directory"
	"github.com/roach88/rollcall/internal/engine"
)

// Config represents the complete rollcall configuration
type Config struct {
	Auth     AuthConfig      `mapstructure:"auth"`
	Users    UsersConfig     `mapstructure:"users"`
	Inactive classify.Cutoff `mapstructure:"inactive"`
	Executor ExecutorConfig  `mapstructure:"executor"`
	Journal  JournalConfig   `mapstructure:"journal"`
	Logging  LoggingConfig   `mapstructure:"logging"`
	Output   OutputConfig    `mapstructure:"output"`
}

// AuthConfig identifies the tenant and the machine client
type AuthConfig struct {
	Domain       string `mapstructure:"domain"`
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	Audience     string `mapstructure:"audience"`
}

// UsersConfig contains user creation settings
type UsersConfig struct {
	Connection string `mapstructure:"connection"`
	ImportFile string `mapstructure:"import_file"`
}

// ExecutorConfig contains mutation pacing and retry settings
type ExecutorConfig struct {
	Pace        time.Duration `mapstructure:"pace"`
	MaxAttempts int           `mapstructure:"max_attempts"`
	RetryAfter  time.Duration `mapstructure:"retry_after"`
	HTTPTimeout time.Duration `mapstructure:"http_timeout"`
}

// JournalConfig contains audit journal settings
type JournalConfig struct {
	Path string `mapstructure:"path"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// OutputConfig contains output formatting settings
type OutputConfig struct {
	Colors bool `mapstructure:"colors"`
}

// legacyEnv maps config keys to the bare variable names older deployments
// export. Prefixed names win when both are set.
var legacyEnv = map[string]string{
	"auth.domain":        "DOMAIN",
	"auth.client_id":     "CLIENT_ID",
	"auth.client_secret": "SECRET",
	"auth.audience":      "AUDIENCE",
	"users.connection":   "CONNECTION",
	"inactive.months":    "INACTIVE",
	"inactive.days":      "INACTIVE_DAYS",
}

// Load reads configuration from .env, the config file and environment
// variables. Only structural settings are validated here; credentials,
// connection and cutoff are checked when an operation needs them.
func Load(cfgFile string) (*Config, error) {
	// A missing .env is fine; the environment may already be populated.
	_ = godotenv.Load()

	v := viper.New()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(".rollcall")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/rollcall")
	}

	v.SetEnvPrefix("ROLLCALL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, legacy := range legacyEnv {
		prefixed := "ROLLCALL_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, legacy); err != nil {
			return nil, fmt.Errorf("binding %s: %w", key, err)
		}
	}

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults configures default values
func setDefaults(v *viper.Viper) {
	v.SetDefault("users.import_file", "./data/users.json")

	v.SetDefault("executor.pace", engine.DefaultPace)
	v.SetDefault("executor.max_attempts", engine.DefaultMaxAttempts)
	v.SetDefault("executor.retry_after", engine.DefaultRetryAfter)
	v.SetDefault("executor.http_timeout", directory.DefaultTimeout)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	v.SetDefault("output.colors", true)
}

// validate checks the structural settings
func validate(cfg *Config) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Logging.Level] {
		return directory.NewConfigError("invalid logging level: %s (must be debug, info, warn, or error)", cfg.Logging.Level)
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[cfg.Logging.Format] {
		return directory.NewConfigError("invalid logging format: %s (must be text or json)", cfg.Logging.Format)
	}

	if cfg.Executor.Pace < 0 {
		return directory.NewConfigError("executor.pace must not be negative: %s", cfg.Executor.Pace)
	}
	if cfg.Executor.MaxAttempts < 1 {
		return directory.NewConfigError("executor.max_attempts must be at least 1: %d", cfg.Executor.MaxAttempts)
	}
	if cfg.Executor.RetryAfter <= 0 {
		return directory.NewConfigError("executor.retry_after must be positive: %s", cfg.Executor.RetryAfter)
	}
	if cfg.Executor.HTTPTimeout <= 0 {
		return directory.NewConfigError("executor.http_timeout must be positive: %s", cfg.Executor.HTTPTimeout)
	}

	return nil
}

// RequireCredentials checks the settings needed to talk to the directory.
func (c *Config) RequireCredentials() error {
	var missing []string
	if c.Auth.Domain == "" {
		missing = append(missing, "auth.domain (DOMAIN)")
	}
	if c.Auth.ClientID == "" {
		missing = append(missing, "auth.client_id (CLIENT_ID)")
	}
	if c.Auth.ClientSecret == "" {
		missing = append(missing, "auth.client_secret (SECRET)")
	}
	if len(missing) > 0 {
		return directory.NewConfigError("missing credentials: %s", strings.Join(missing, ", "))
	}
	return nil
}

// RequireConnection checks the setting needed to create users.
func (c *Config) RequireConnection() error {
	if c.Users.Connection == "" {
		return directory.NewConfigError("missing users.connection (CONNECTION): required to create users")
	}
	return nil
}

// BaseURL returns the tenant origin. A bare domain is served over https.
func (c *Config) BaseURL() string {
	d := strings.TrimRight(c.Auth.Domain, "/")
	if strings.HasPrefix(d, "http://") || strings.HasPrefix(d, "https://") {
		return d
	}
	return "https://" + d
}

// TokenURL returns the client-credentials token endpoint.
func (c *Config) TokenURL() string {
	return c.BaseURL() + "/oauth/token"
}

// APIURL returns the management API base.
func (c *Config) APIURL() string {
	return c.BaseURL() + "/api/v2"
}

// TokenAudience returns the configured audience, defaulting to the
// management API identifier.
func (c *Config) TokenAudience() string {
	if c.Auth.Audience != "" {
		return c.Auth.Audience
	}
	return c.APIURL() + "/"
}

// Settings returns the immutable run settings for the orchestrator.
func (c *Config) Settings() engine.Settings {
	return engine.Settings{
		Cutoff:     c.Inactive,
		Connection: c.Users.Connection,
	}
}

// LogLevel maps logging.level to a slog level.
func (c *Config) LogLevel() slog.Level {
	switch c.Logging.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
