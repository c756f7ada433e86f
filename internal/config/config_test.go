package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"DROP2PRINT_CONFIG",
	"DROP2PRINT_DB_PATH",
	"DROP2PRINT_UPLOAD_PATH",
	"DROP2PRINT_WATCH_PATH",
	"DROP2PRINT_WATCH_INTERVAL",
	"DROP2PRINT_PRINTER",
	"DROP2PRINT_PRINT_COMMAND",
	"DROP2PRINT_PRINT_TIMEOUT",
	"DROP2PRINT_HTTP_ADDR",
	"DROP2PRINT_ADMIN_PASSWORD",
	"DROP2PRINT_MAX_UPLOAD_MB",
	"DROP2PRINT_LOG_FILE",
	"DROP2PRINT_LOG_LEVEL",
	"DROP2PRINT_OTEL",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Defaults(), cfg)
	assert.False(t, cfg.WatchEnabled())
}

func TestLoadEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("DROP2PRINT_DB_PATH", "/data/jobs.db")
	t.Setenv("DROP2PRINT_WATCH_PATH", "/data/in")
	t.Setenv("DROP2PRINT_WATCH_INTERVAL", "10")
	t.Setenv("DROP2PRINT_PRINTER", "office")
	t.Setenv("DROP2PRINT_PRINT_TIMEOUT", "30s")
	t.Setenv("DROP2PRINT_MAX_UPLOAD_MB", "5")
	t.Setenv("DROP2PRINT_LOG_LEVEL", "debug")
	t.Setenv("DROP2PRINT_OTEL", "true")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/data/jobs.db", cfg.DBPath)
	assert.True(t, cfg.WatchEnabled())
	assert.Equal(t, 10*time.Second, cfg.WatchInterval)
	assert.Equal(t, "office", cfg.PrinterName)
	assert.Equal(t, 30*time.Second, cfg.PrintTimeout)
	assert.EqualValues(t, 5<<20, cfg.MaxUploadBytes)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.True(t, cfg.OTelEnabled)
}

func TestWatchIntervalClamped(t *testing.T) {
	clearEnv(t)
	t.Setenv("DROP2PRINT_WATCH_INTERVAL", "0")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, MinWatchInterval, cfg.WatchInterval)
}

func TestLoadEnvErrors(t *testing.T) {
	for _, key := range []string{"DROP2PRINT_WATCH_INTERVAL", "DROP2PRINT_PRINT_TIMEOUT", "DROP2PRINT_MAX_UPLOAD_MB"} {
		t.Run(key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(key, "soon")
			_, err := Load()
			assert.ErrorContains(t, err, key)
		})
	}
}

func TestLoadFileThenEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "drop2print.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
db_path: /srv/db.sqlite3
watch_path: /srv/in
watch_interval: 3
printer: lobby
print_command: "lp -n {copies} -d {printer} {file}"
print_timeout: 1m
max_upload_mb: 20
log_level: warn
`), 0o644))
	t.Setenv("DROP2PRINT_CONFIG", path)
	t.Setenv("DROP2PRINT_PRINTER", "office")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/srv/db.sqlite3", cfg.DBPath)
	assert.Equal(t, "/srv/in", cfg.WatchDir)
	assert.Equal(t, 3*time.Second, cfg.WatchInterval)
	assert.Equal(t, "office", cfg.PrinterName, "environment wins over file")
	assert.Equal(t, "lp -n {copies} -d {printer} {file}", cfg.PrintCommand)
	assert.Equal(t, time.Minute, cfg.PrintTimeout)
	assert.EqualValues(t, 20<<20, cfg.MaxUploadBytes)
	assert.Equal(t, slog.LevelWarn, cfg.LogLevel)
	assert.Equal(t, ":8000", cfg.HTTPAddr, "unset keys keep defaults")
}

func TestLoadFileErrors(t *testing.T) {
	clearEnv(t)
	t.Setenv("DROP2PRINT_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))
	_, err := Load()
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("print_timeout: later\n"), 0o644))
	t.Setenv("DROP2PRINT_CONFIG", path)
	_, err = Load()
	assert.ErrorContains(t, err, "print_timeout")
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelWarn, parseLogLevel("WARNING"))
	assert.Equal(t, slog.LevelError, parseLogLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLogLevel("chatty"))
}

func TestSetupLoggerWithWriters(t *testing.T) {
	var stderr, file bytes.Buffer
	logger := SetupLoggerWithWriters(&stderr, &file, slog.LevelInfo)
	logger.Debug("hidden")
	logger.Info("job finished", "job_id", 7)

	assert.Contains(t, stderr.String(), "job_id=7")
	assert.Contains(t, file.String(), `"job_id":7`)
	assert.NotContains(t, file.String(), "hidden")
}

func TestSetupLoggerFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	logger, closeFn := SetupLogger(path, slog.LevelInfo)
	logger.Info("hello")
	require.NoError(t, closeFn())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"hello"`)
}
