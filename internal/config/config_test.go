package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rollcall/internal/classify"
	"github.com/roach88/rollcall/internal/directory"
)

// isolate runs the test in an empty directory with no rollcall variables
// inherited from the environment.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HOME", dir)
	for _, legacy := range legacyEnv {
		t.Setenv(legacy, "")
	}
	return dir
}

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "rollcall.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, time.Second, cfg.Executor.Pace)
	assert.Equal(t, 5, cfg.Executor.MaxAttempts)
	assert.Equal(t, 5*time.Second, cfg.Executor.RetryAfter)
	assert.Equal(t, 30*time.Second, cfg.Executor.HTTPTimeout)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, "./data/users.json", cfg.Users.ImportFile)
	assert.True(t, cfg.Output.Colors)
	assert.True(t, cfg.Inactive.IsZero())
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := isolate(t)
	path := writeConfig(t, dir, `
auth:
  domain: tenant.example.com
  client_id: abc
  client_secret: s3cret
users:
  connection: Username-Password-Authentication
inactive:
  months: 6
executor:
  pace: 250ms
  max_attempts: 3
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "tenant.example.com", cfg.Auth.Domain)
	assert.Equal(t, "abc", cfg.Auth.ClientID)
	assert.Equal(t, classify.Cutoff{Months: 6}, cfg.Inactive)
	assert.Equal(t, 250*time.Millisecond, cfg.Executor.Pace)
	assert.Equal(t, 3, cfg.Executor.MaxAttempts)
	assert.NoError(t, cfg.RequireCredentials())
	assert.NoError(t, cfg.RequireConnection())
}

func TestLoad_SearchesWorkingDirectory(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".rollcall.yaml"), []byte("auth:\n  domain: found.example.com\n"), 0o600))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "found.example.com", cfg.Auth.Domain)
}

func TestLoad_LegacyEnvironmentNames(t *testing.T) {
	isolate(t)
	t.Setenv("DOMAIN", "legacy.example.com")
	t.Setenv("CLIENT_ID", "legacy-id")
	t.Setenv("SECRET", "legacy-secret")
	t.Setenv("CONNECTION", "db")
	t.Setenv("INACTIVE", "3")
	t.Setenv("INACTIVE_DAYS", "10")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "legacy.example.com", cfg.Auth.Domain)
	assert.Equal(t, "legacy-id", cfg.Auth.ClientID)
	assert.Equal(t, "legacy-secret", cfg.Auth.ClientSecret)
	assert.Equal(t, "db", cfg.Users.Connection)
	assert.Equal(t, classify.Cutoff{Months: 3, Days: 10}, cfg.Inactive)
}

func TestLoad_PrefixedEnvironmentWins(t *testing.T) {
	isolate(t)
	t.Setenv("DOMAIN", "legacy.example.com")
	t.Setenv("ROLLCALL_AUTH_DOMAIN", "prefixed.example.com")
	t.Setenv("ROLLCALL_EXECUTOR_PACE", "2s")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "prefixed.example.com", cfg.Auth.Domain)
	assert.Equal(t, 2*time.Second, cfg.Executor.Pace)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := isolate(t)
	t.Cleanup(func() { _ = os.Unsetenv("ROLLCALL_USERS_CONNECTION") })
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("ROLLCALL_USERS_CONNECTION=from-dotenv\n"), 0o600))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.Users.Connection)
}

func TestLoad_InvalidStructuralSettings(t *testing.T) {
	tests := map[string]string{
		"log level":     "logging:\n  level: loud\n",
		"log format":    "logging:\n  format: xml\n",
		"negative pace": "executor:\n  pace: -1s\n",
		"zero attempts": "executor:\n  max_attempts: 0\n",
		"zero retry":    "executor:\n  retry_after: 0s\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			dir := isolate(t)
			_, err := Load(writeConfig(t, dir, body))
			require.Error(t, err)
			assert.True(t, directory.IsConfigError(err))
		})
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	dir := isolate(t)
	_, err := Load(filepath.Join(dir, "nope.yaml"))
	require.Error(t, err)
}

func TestRequireCredentials_NamesMissingSettings(t *testing.T) {
	cfg := &Config{Auth: AuthConfig{Domain: "tenant.example.com"}}

	err := cfg.RequireCredentials()

	require.Error(t, err)
	assert.True(t, directory.IsConfigError(err))
	assert.Contains(t, err.Error(), "CLIENT_ID")
	assert.Contains(t, err.Error(), "SECRET")
	assert.NotContains(t, err.Error(), "DOMAIN")
}

func TestRequireConnection(t *testing.T) {
	err := (&Config{}).RequireConnection()
	require.Error(t, err)
	assert.True(t, directory.IsConfigError(err))
}

func TestURLs(t *testing.T) {
	cfg := &Config{Auth: AuthConfig{Domain: "tenant.example.com"}}
	assert.Equal(t, "https://tenant.example.com/oauth/token", cfg.TokenURL())
	assert.Equal(t, "https://tenant.example.com/api/v2", cfg.APIURL())
	assert.Equal(t, "https://tenant.example.com/api/v2/", cfg.TokenAudience())

	local := &Config{Auth: AuthConfig{Domain: "http://127.0.0.1:8080/", Audience: "custom"}}
	assert.Equal(t, "http://127.0.0.1:8080/api/v2", local.APIURL())
	assert.Equal(t, "custom", local.TokenAudience())
}

func TestSettings(t *testing.T) {
	cfg := &Config{Inactive: classify.Cutoff{Days: 30}, Users: UsersConfig{Connection: "db"}}
	s := cfg.Settings()
	assert.Equal(t, 30, s.Cutoff.Days)
	assert.Equal(t, "db", s.Connection)
}

func TestLogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, (&Config{Logging: LoggingConfig{Level: "debug"}}).LogLevel())
	assert.Equal(t, slog.LevelInfo, (&Config{Logging: LoggingConfig{Level: "info"}}).LogLevel())
	assert.Equal(t, slog.LevelWarn, (&Config{Logging: LoggingConfig{Level: "warn"}}).LogLevel())
}
