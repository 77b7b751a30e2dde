package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/lawnchairsociety/statcalc/internal/database"
	"github.com/lawnchairsociety/statcalc/internal/logger"
	"github.com/lawnchairsociety/statcalc/internal/text"
)

// EnvPrefix is prepended to every environment override, e.g. STATCALC_STORE_DRIVER.
const EnvPrefix = "STATCALC_"

// Store drivers.
const (
	DriverJSON     = "json"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config holds the application configuration.
type Config struct {
	Store    StoreConfig   `yaml:"store" envPrefix:"STORE_"`
	Catalog  CatalogConfig `yaml:"catalog" envPrefix:"CATALOG_"`
	Language string        `yaml:"language" env:"LANGUAGE"`
	Server   ServerConfig  `yaml:"server" envPrefix:"SERVER_"`
	Watch    WatchConfig   `yaml:"watch" envPrefix:"WATCH_"`
	Logging  logger.Config `yaml:"logging"`
}

// StoreConfig selects where item and character records live.
type StoreConfig struct {
	// Driver is "json", "sqlite" or "postgres".
	Driver string `yaml:"driver" env:"DRIVER"`

	// JSONPath is the JSON database file (the legacy config.json layout).
	JSONPath string `yaml:"json_path" env:"JSON_PATH"`

	SQLitePath string         `yaml:"sqlite_path" env:"SQLITE_PATH"`
	Postgres   PostgresConfig `yaml:"postgres" envPrefix:"POSTGRES_"`
}

// PostgresConfig holds PostgreSQL connection settings.
type PostgresConfig struct {
	Host            string        `yaml:"host" env:"HOST"`
	Port            int           `yaml:"port" env:"PORT"`
	User            string        `yaml:"user" env:"USER"`
	Password        string        `yaml:"password" env:"PASSWORD"`
	Database        string        `yaml:"database" env:"DATABASE"`
	SSLMode         string        `yaml:"ssl_mode" env:"SSL_MODE"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// CatalogConfig points at an optional stat catalog file.
type CatalogConfig struct {
	// Path to a YAML catalog. Empty uses the built-in catalog.
	Path string `yaml:"path" env:"PATH"`

	// Strict rejects stat names the catalog does not know.
	Strict bool `yaml:"strict" env:"STRICT"`
}

// ServerConfig holds settings for the WebSocket calculator server.
type ServerConfig struct {
	Address     string            `yaml:"address" env:"ADDRESS"`
	WebSocket   WebSocketConfig   `yaml:"websocket" envPrefix:"WEBSOCKET_"`
	Connections ConnectionsConfig `yaml:"connections" envPrefix:"CONNECTIONS_"`
	SaveLimit   SaveLimitConfig   `yaml:"save_limit" envPrefix:"SAVE_LIMIT_"`
}

// SaveLimitConfig throttles save requests per WebSocket connection.
type SaveLimitConfig struct {
	// MaxSaves within Window. 0 disables the limit.
	MaxSaves int           `yaml:"max_saves" env:"MAX_SAVES"`
	Window   time.Duration `yaml:"window" env:"WINDOW"`
}

// ConnectionsConfig holds connection limit settings.
type ConnectionsConfig struct {
	// MaxPerIP is the maximum concurrent connections from a single IP address.
	// 0 means unlimited.
	MaxPerIP int `yaml:"max_per_ip" env:"MAX_PER_IP"`

	// MaxTotal is the maximum total concurrent connections. 0 means unlimited.
	MaxTotal int `yaml:"max_total" env:"MAX_TOTAL"`
}

// WebSocketConfig holds WebSocket-specific settings.
type WebSocketConfig struct {
	// AllowedOrigins is a list of origins allowed to connect.
	// Empty list enforces same-origin policy. "*" allows all origins.
	AllowedOrigins []string `yaml:"allowed_origins" env:"ALLOWED_ORIGINS"`

	// MaxMessageSize is the maximum WebSocket message size in bytes.
	MaxMessageSize int64 `yaml:"max_message_size" env:"MAX_MESSAGE_SIZE"`
}

// WatchConfig controls reloading the JSON store when the file changes on disk.
type WatchConfig struct {
	Enabled  bool          `yaml:"enabled" env:"ENABLED"`
	Debounce time.Duration `yaml:"debounce" env:"DEBOUNCE"`
}

// DefaultConfig returns a Config that reads ./config.json and listens on :8080.
func DefaultConfig() *Config {
	return &Config{
		Store: StoreConfig{
			Driver:     DriverJSON,
			JSONPath:   "config.json",
			SQLitePath: "data/statcalc.db",
			Postgres: PostgresConfig{
				Host:            "localhost",
				Port:            5432,
				User:            "statcalc",
				Database:        "statcalc",
				SSLMode:         "disable",
				MaxOpenConns:    25,
				MaxIdleConns:    5,
				ConnMaxLifetime: 5 * time.Minute,
			},
		},
		Language: "zh-CN",
		Server: ServerConfig{
			Address: ":8080",
			WebSocket: WebSocketConfig{
				AllowedOrigins: []string{}, // Same-origin only by default
				MaxMessageSize: 4096,
			},
			Connections: ConnectionsConfig{
				MaxPerIP: 5,
				MaxTotal: 100,
			},
			SaveLimit: SaveLimitConfig{
				MaxSaves: 10,
				Window:   10 * time.Second,
			},
		},
		Watch: WatchConfig{
			Enabled:  false,
			Debounce: 200 * time.Millisecond,
		},
		Logging: logger.DefaultConfig(),
	}
}

// LoadConfig loads configuration from a YAML file over the defaults, then applies
// environment overrides. A missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// Use defaults if file doesn't exist
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, config); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	if err := config.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// ApplyEnv overrides fields from STATCALC_* variables, then the logging
// block from the plain LOG_* variables.
func (c *Config) ApplyEnv() error {
	if err := env.ParseWithOptions(c, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return logger.ApplyEnv(&c.Logging)
}

// Validate reports settings that cannot work.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case DriverJSON:
		if c.Store.JSONPath == "" {
			return fmt.Errorf("store.json_path is required for the json driver")
		}
	case DriverSQLite:
		if c.Store.SQLitePath == "" {
			return fmt.Errorf("store.sqlite_path is required for the sqlite driver")
		}
	case DriverPostgres:
		if c.Store.Postgres.Host == "" || c.Store.Postgres.Database == "" {
			return fmt.Errorf("store.postgres host and database are required")
		}
	default:
		return fmt.Errorf("unknown store driver %q (want json, sqlite or postgres)", c.Store.Driver)
	}

	if _, err := text.ParseLanguage(c.Language); err != nil {
		return fmt.Errorf("language: %w", err)
	}
	if c.Server.WebSocket.MaxMessageSize <= 0 {
		return fmt.Errorf("server.websocket.max_message_size must be positive")
	}
	if c.Server.SaveLimit.MaxSaves < 0 || c.Server.SaveLimit.Window < 0 {
		return fmt.Errorf("server.save_limit values must not be negative")
	}
	if c.Watch.Debounce < 0 {
		return fmt.Errorf("watch.debounce must not be negative")
	}
	return nil
}

// DatabaseConfig converts the store section into a database.Config for the SQL drivers.
func (s StoreConfig) DatabaseConfig() database.Config {
	return database.Config{
		Driver:     s.Driver,
		SQLitePath: s.SQLitePath,
		Postgres: database.PostgresConfig{
			Host:            s.Postgres.Host,
			Port:            s.Postgres.Port,
			User:            s.Postgres.User,
			Password:        s.Postgres.Password,
			Database:        s.Postgres.Database,
			SSLMode:         s.Postgres.SSLMode,
			MaxOpenConns:    s.Postgres.MaxOpenConns,
			MaxIdleConns:    s.Postgres.MaxIdleConns,
			ConnMaxLifetime: s.Postgres.ConnMaxLifetime,
		},
	}
}

// IsOriginAllowed checks if the given origin is allowed based on the config.
// Returns true if:
// - AllowedOrigins contains "*" (allow all)
// - AllowedOrigins contains the exact origin
// - AllowedOrigins is empty and origin matches the request host (same-origin)
func (c *WebSocketConfig) IsOriginAllowed(origin, requestHost string) bool {
	if len(c.AllowedOrigins) == 0 {
		return isSameOrigin(origin, requestHost)
	}

	for _, allowed := range c.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// isSameOrigin checks if the origin matches the request host.
func isSameOrigin(origin, requestHost string) bool {
	if origin == "" {
		return true // No origin header means a non-browser client
	}

	originHost := origin
	if idx := strings.Index(origin, "://"); idx != -1 {
		originHost = origin[idx+3:]
	}
	originHost = strings.TrimSuffix(originHost, "/")

	return originHost == requestHost
}
