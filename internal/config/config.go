// ABOUTME: Configuration loading and parsing for wabridge
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Store backends.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Config represents the complete wabridge configuration
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Wire    WireConfig    `yaml:"wire"`
	Store   StoreConfig   `yaml:"store"`
	Connect ConnectConfig `yaml:"connect"`
	Relay   RelayConfig   `yaml:"relay"`
	Auth    AuthConfig    `yaml:"auth"`
	Logging LoggingConfig `yaml:"logging"`
	Logs    LogsConfig    `yaml:"logs"`
}

// ServerConfig holds the HTTP facade address
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
}

// WireConfig holds the protocol engine endpoints
type WireConfig struct {
	Endpoint   string `yaml:"endpoint"`
	VersionURL string `yaml:"version_url"`
}

// StoreConfig selects and configures the session store backend
type StoreConfig struct {
	// Backend is "file" or "sqlite"
	Backend string `yaml:"backend"`
	// Path is the session directory for the file backend
	Path string `yaml:"path"`
	// Database is the connection string for the sqlite backend
	Database string `yaml:"database"`
}

// ConnectConfig holds connection lifecycle timing
type ConnectConfig struct {
	SettleDelay       time.Duration `yaml:"-"`
	ReconnectMinDelay time.Duration `yaml:"-"`
	ReconnectMaxDelay time.Duration `yaml:"-"`
	LoggedOutDelay    time.Duration `yaml:"-"`
	ResetDelay        time.Duration `yaml:"-"`
	RetryDelay        time.Duration `yaml:"-"`
	MaxRetries        int           `yaml:"max_retries"`

	// Raw string values for YAML unmarshaling
	SettleDelayRaw       string `yaml:"settle_delay"`
	ReconnectMinDelayRaw string `yaml:"reconnect_min_delay"`
	ReconnectMaxDelayRaw string `yaml:"reconnect_max_delay"`
	LoggedOutDelayRaw    string `yaml:"logged_out_delay"`
	ResetDelayRaw        string `yaml:"reset_delay"`
	RetryDelayRaw        string `yaml:"retry_delay"`
}

// RelayConfig holds message relay configuration
type RelayConfig struct {
	ReplyPrefix   string `yaml:"reply_prefix"`
	SeenCacheSize int    `yaml:"seen_cache_size"`
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	// JWTSecret guards the mutating endpoints when set
	JWTSecret string `yaml:"jwt_secret"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// LogsConfig holds the status log buffer configuration
type LogsConfig struct {
	Capacity int `yaml:"capacity"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expandedData), cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Parse duration fields
	if err := parseDurations(cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns a config with workable defaults for everything that has one.
func Default() *Config {
	return &Config{
		Server: ServerConfig{HTTPAddr: ":8080"},
		Store:  StoreConfig{Backend: BackendFile, Path: "./session"},
		Relay:  RelayConfig{ReplyPrefix: "Echo: "},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Logs: LogsConfig{Capacity: 100},
	}
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	// Match ${VAR_NAME} pattern
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}
	if c.Wire.Endpoint == "" {
		return fmt.Errorf("wire.endpoint is required")
	}

	switch c.Store.Backend {
	case BackendFile:
		if c.Store.Path == "" {
			return fmt.Errorf("store.path is required for the file backend")
		}
	case BackendSQLite:
		// Startup-fatal: a relational deployment with no connection string
		// cannot persist the session anywhere.
		if c.Store.Database == "" {
			return fmt.Errorf("store.database is required for the sqlite backend")
		}
	default:
		return fmt.Errorf("store.backend must be %q or %q, got %q", BackendFile, BackendSQLite, c.Store.Backend)
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"settle_delay", cfg.Connect.SettleDelayRaw, &cfg.Connect.SettleDelay},
		{"reconnect_min_delay", cfg.Connect.ReconnectMinDelayRaw, &cfg.Connect.ReconnectMinDelay},
		{"reconnect_max_delay", cfg.Connect.ReconnectMaxDelayRaw, &cfg.Connect.ReconnectMaxDelay},
		{"logged_out_delay", cfg.Connect.LoggedOutDelayRaw, &cfg.Connect.LoggedOutDelay},
		{"reset_delay", cfg.Connect.ResetDelayRaw, &cfg.Connect.ResetDelay},
		{"retry_delay", cfg.Connect.RetryDelayRaw, &cfg.Connect.RetryDelay},
	}

	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("parsing %s %q: %w", f.name, f.raw, err)
		}
		*f.dst = d
	}

	return nil
}
