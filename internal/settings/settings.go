// Package settings persists the connection profile and application options.
//
// Values are resolved in this order: DOCADMIN_* environment variables
// (including ones loaded from .env files), the YAML config file, defaults.
package settings

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/jinzhu/copier"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment overrides.
const EnvPrefix = "DOCADMIN"

// Cache backends.
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
	CacheBadger = "badger"
	CacheNone   = "none"
)

var (
	// ErrInvalidConnection is returned when a connection profile is incomplete
	ErrInvalidConnection = errors.New("invalid connection settings")

	// ErrUnknownCacheBackend is returned for an unsupported cache backend name
	ErrUnknownCacheBackend = errors.New("unknown cache backend")
)

// Connection is the persisted database connection profile.
type Connection struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// Address returns host:port.
func (c Connection) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// HasCredentials reports whether a username is configured.
func (c Connection) HasCredentials() bool {
	return c.Username != ""
}

// Validate checks that the profile can be used to connect.
func (c Connection) Validate() error {
	var problems []string
	if strings.TrimSpace(c.Host) == "" {
		problems = append(problems, "host is empty")
	}
	if c.Port <= 0 || c.Port > 65535 {
		problems = append(problems, fmt.Sprintf("port %d out of range", c.Port))
	}
	if strings.TrimSpace(c.Database) == "" {
		problems = append(problems, "database is empty")
	}
	if c.Password != "" && c.Username == "" {
		problems = append(problems, "password set without username")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConnection, strings.Join(problems, ", "))
	}
	return nil
}

// CacheConfig selects the read cache used by the document store.
type CacheConfig struct {
	Backend    string        `mapstructure:"backend"`
	TTL        time.Duration `mapstructure:"ttl"`
	MaxItems   int           `mapstructure:"max_items"`
	RedisAddr  string        `mapstructure:"redis_addr"`
	BadgerPath string        `mapstructure:"badger_path"`
}

// Validate checks the backend name.
func (c CacheConfig) Validate() error {
	switch c.Backend {
	case CacheMemory, CacheRedis, CacheBadger, CacheNone:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownCacheBackend, c.Backend)
	}
}

// Config is the full application configuration.
type Config struct {
	Connection  Connection  `mapstructure:"connection"`
	Collection  string      `mapstructure:"collection"`
	LogLevel    string      `mapstructure:"log_level"`
	Development bool        `mapstructure:"development"`
	Cache       CacheConfig `mapstructure:"cache"`
}

// Clone returns an independent copy of the config.
func (c *Config) Clone() (*Config, error) {
	out := &Config{}
	if err := copier.CopyWithOption(out, c, copier.Option{DeepCopy: true}); err != nil {
		return nil, fmt.Errorf("failed to copy config: %w", err)
	}
	return out, nil
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Connection: Connection{
			Host:     "localhost",
			Port:     27017,
			Database: "test",
		},
		LogLevel: "info",
		Cache: CacheConfig{
			Backend:    CacheMemory,
			TTL:        time.Minute * 5,
			MaxItems:   1000,
			RedisAddr:  "localhost:6379",
			BadgerPath: filepath.Join(os.TempDir(), "docadmin-cache"),
		},
	}
}

// DefaultPath returns $HOME/.docadmin.yaml, or ./.docadmin.yaml without a home directory.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".docadmin.yaml"
	}
	return filepath.Join(home, ".docadmin.yaml")
}

// Store reads and writes the configuration file.
type Store struct {
	v    *viper.Viper
	path string
}

// Open loads .env files and the config file at path. A missing file is not an error.
func Open(path string) (*Store, error) {
	if path == "" {
		path = DefaultPath()
	}

	loadEnvFiles()

	v := viper.New()
	setDefaults(v, Default())
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		if !errors.Is(err, os.ErrNotExist) && !isNotFound(err) {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	return &Store{v: v, path: path}, nil
}

// Path returns the config file location.
func (s *Store) Path() string {
	return s.path
}

// Config returns the resolved configuration.
func (s *Store) Config() (*Config, error) {
	cfg := &Config{}
	if err := s.v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Cache.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Connection returns a copy of the resolved connection profile.
func (s *Store) Connection() (Connection, error) {
	cfg, err := s.Config()
	if err != nil {
		return Connection{}, err
	}
	var out Connection
	if err := copier.Copy(&out, &cfg.Connection); err != nil {
		return Connection{}, fmt.Errorf("failed to copy connection: %w", err)
	}
	return out, nil
}

// SaveConnection validates and persists a connection profile.
// Only the file contents are written, never values that came from the environment.
func (s *Store) SaveConnection(conn Connection) error {
	if err := conn.Validate(); err != nil {
		return err
	}

	file := viper.New()
	file.SetConfigFile(s.path)
	file.SetConfigType("yaml")
	if err := file.ReadInConfig(); err != nil && !errors.Is(err, os.ErrNotExist) && !isNotFound(err) {
		return fmt.Errorf("failed to read config %s: %w", s.path, err)
	}

	file.Set("connection.host", conn.Host)
	file.Set("connection.port", conn.Port)
	file.Set("connection.database", conn.Database)
	file.Set("connection.username", conn.Username)
	file.Set("connection.password", conn.Password)

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := file.WriteConfigAs(s.path); err != nil {
		return fmt.Errorf("failed to write config %s: %w", s.path, err)
	}
	if err := os.Chmod(s.path, 0o600); err != nil {
		return fmt.Errorf("failed to restrict config permissions: %w", err)
	}

	// Make the saved values visible to this process
	for _, key := range []string{"host", "port", "database", "username", "password"} {
		s.v.Set("connection."+key, file.Get("connection."+key))
	}
	return nil
}

func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("connection.host", cfg.Connection.Host)
	v.SetDefault("connection.port", cfg.Connection.Port)
	v.SetDefault("connection.database", cfg.Connection.Database)
	v.SetDefault("connection.username", cfg.Connection.Username)
	v.SetDefault("connection.password", cfg.Connection.Password)
	v.SetDefault("collection", cfg.Collection)
	v.SetDefault("log_level", cfg.LogLevel)
	v.SetDefault("development", cfg.Development)
	v.SetDefault("cache.backend", cfg.Cache.Backend)
	v.SetDefault("cache.ttl", cfg.Cache.TTL)
	v.SetDefault("cache.max_items", cfg.Cache.MaxItems)
	v.SetDefault("cache.redis_addr", cfg.Cache.RedisAddr)
	v.SetDefault("cache.badger_path", cfg.Cache.BadgerPath)
}

// loadEnvFiles loads .env then .env.local; later files do not override earlier ones.
func loadEnvFiles() {
	for _, envFile := range []string{".env", ".env.local"} {
		_ = godotenv.Load(envFile)
	}
}

func isNotFound(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	return errors.As(err, &notFound)
}
