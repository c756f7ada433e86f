// Package config loads drop2print settings from an optional YAML file and
// DROP2PRINT_* environment variables.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration values.
type Config struct {
	// Storage
	DBPath    string `yaml:"db_path"`
	UploadDir string `yaml:"upload_path"`

	// Directory watcher; empty WatchDir disables it.
	WatchDir      string        `yaml:"watch_path"`
	WatchInterval time.Duration `yaml:"-"`

	// Printing
	PrinterName  string        `yaml:"printer"`
	PrintCommand string        `yaml:"print_command"`
	PrintTimeout time.Duration `yaml:"-"`

	// HTTP
	HTTPAddr       string `yaml:"http_addr"`
	AdminPassword  string `yaml:"admin_password"`
	MaxUploadBytes int64  `yaml:"-"`

	// Logging
	LogFile  string     `yaml:"log_file"`
	LogLevel slog.Level `yaml:"-"`

	// Telemetry
	OTelEnabled bool `yaml:"otel"`
}

// MinWatchInterval is the shortest poll interval accepted.
const MinWatchInterval = time.Second

// Defaults returns the configuration used when nothing is set.
func Defaults() Config {
	return Config{
		DBPath:         "app/db/drop2print.sqlite3",
		UploadDir:      "app/uploads",
		WatchInterval:  5 * time.Second,
		HTTPAddr:       ":8000",
		MaxUploadBytes: 50 << 20,
		LogLevel:       slog.LevelInfo,
	}
}

// fileConfig adds the YAML spellings of fields whose Go types do not decode
// directly: the interval in plain seconds as in the environment, durations
// as strings, the upload limit in megabytes.
type fileConfig struct {
	Config        `yaml:",inline"`
	WatchInterval *int   `yaml:"watch_interval"`
	PrintTimeout  string `yaml:"print_timeout"`
	MaxUploadMB   *int64 `yaml:"max_upload_mb"`
	LogLevel      string `yaml:"log_level"`
}

// Load reads DROP2PRINT_CONFIG (when set) and then applies environment
// overrides.
func Load() (Config, error) {
	cfg := Defaults()
	if path := os.Getenv("DROP2PRINT_CONFIG"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return cfg, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	cfg.normalize()
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	fc := fileConfig{Config: *c}
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}
	next := fc.Config

	if fc.WatchInterval != nil {
		next.WatchInterval = time.Duration(*fc.WatchInterval) * time.Second
	}
	if fc.PrintTimeout != "" {
		d, err := time.ParseDuration(fc.PrintTimeout)
		if err != nil {
			return fmt.Errorf("print_timeout: %w", err)
		}
		next.PrintTimeout = d
	}
	if fc.MaxUploadMB != nil {
		next.MaxUploadBytes = *fc.MaxUploadMB << 20
	}
	if fc.LogLevel != "" {
		next.LogLevel = parseLogLevel(fc.LogLevel)
	}
	*c = next
	return nil
}

func (c *Config) applyEnv() error {
	c.DBPath = getEnv("DROP2PRINT_DB_PATH", c.DBPath)
	c.UploadDir = getEnv("DROP2PRINT_UPLOAD_PATH", c.UploadDir)
	c.WatchDir = getEnv("DROP2PRINT_WATCH_PATH", c.WatchDir)
	c.PrinterName = getEnv("DROP2PRINT_PRINTER", c.PrinterName)
	c.PrintCommand = getEnv("DROP2PRINT_PRINT_COMMAND", c.PrintCommand)
	c.HTTPAddr = getEnv("DROP2PRINT_HTTP_ADDR", c.HTTPAddr)
	c.AdminPassword = getEnv("DROP2PRINT_ADMIN_PASSWORD", c.AdminPassword)
	c.LogFile = getEnv("DROP2PRINT_LOG_FILE", c.LogFile)

	if v := os.Getenv("DROP2PRINT_WATCH_INTERVAL"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("DROP2PRINT_WATCH_INTERVAL: %w", err)
		}
		c.WatchInterval = time.Duration(n) * time.Second
	}
	if v := os.Getenv("DROP2PRINT_PRINT_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("DROP2PRINT_PRINT_TIMEOUT: %w", err)
		}
		c.PrintTimeout = d
	}
	if v := os.Getenv("DROP2PRINT_MAX_UPLOAD_MB"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("DROP2PRINT_MAX_UPLOAD_MB: %w", err)
		}
		c.MaxUploadBytes = n << 20
	}
	if v := os.Getenv("DROP2PRINT_LOG_LEVEL"); v != "" {
		c.LogLevel = parseLogLevel(v)
	}
	if v := os.Getenv("DROP2PRINT_OTEL"); v != "" {
		c.OTelEnabled = v == "true" || v == "1"
	}
	return nil
}

func (c *Config) normalize() {
	if c.WatchInterval < MinWatchInterval {
		c.WatchInterval = MinWatchInterval
	}
	if c.PrintTimeout < 0 {
		c.PrintTimeout = 0
	}
	if c.MaxUploadBytes <= 0 {
		c.MaxUploadBytes = Defaults().MaxUploadBytes
	}
}

// WatchEnabled reports whether a watch directory is configured.
func (c Config) WatchEnabled() bool {
	return c.WatchDir != ""
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
