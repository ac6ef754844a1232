// Package config loads runtime settings from an optional YAML file, an
// optional .env file and the process environment, in increasing order of
// precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables that locate the files Load reads.
const (
	EnvConfigFile = "SOUSCHEF_CONFIG"
	EnvDotFile    = "SOUSCHEF_ENV_FILE"
)

// Storage drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// OCR providers.
const (
	OCRNone  = "none"
	OCRGenAI = "genai"
	OCRHTTP  = "http"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Auth     AuthConfig     `yaml:"auth"`
	Database DatabaseConfig `yaml:"database"`
	Remote   RemoteConfig   `yaml:"remote"`
	Sync     SyncConfig     `yaml:"sync"`
	Redis    RedisConfig    `yaml:"redis"`
	OCR      OCRConfig      `yaml:"ocr"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr" env:"SOUSCHEF_ADDR"`
	CORSOrigins     string        `yaml:"cors_origins" env:"SOUSCHEF_CORS_ORIGINS"`
	RateLimit       float64       `yaml:"rate_limit" env:"SOUSCHEF_RATE_LIMIT"`
	RateBurst       int           `yaml:"rate_burst" env:"SOUSCHEF_RATE_BURST"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"SOUSCHEF_READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"SOUSCHEF_WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SOUSCHEF_SHUTDOWN_TIMEOUT"`
	AuditLog        string        `yaml:"audit_log" env:"SOUSCHEF_AUDIT_LOG"`
}

// Origins splits CORSOrigins on commas.
func (s ServerConfig) Origins() []string {
	return splitList(s.CORSOrigins)
}

type AuthConfig struct {
	JWTSecret  string        `yaml:"jwt_secret" env:"SOUSCHEF_JWT_SECRET"`
	Issuer     string        `yaml:"issuer" env:"SOUSCHEF_JWT_ISSUER"`
	TokenTTL   time.Duration `yaml:"token_ttl" env:"SOUSCHEF_TOKEN_TTL"`
	BcryptCost int           `yaml:"bcrypt_cost" env:"SOUSCHEF_BCRYPT_COST"`
}

type DatabaseConfig struct {
	Driver          string        `yaml:"driver" env:"SOUSCHEF_DB_DRIVER"`
	DSN             string        `yaml:"dsn" env:"SOUSCHEF_DB_DSN"`
	MaxOpenConns    int           `yaml:"max_open_conns" env:"SOUSCHEF_DB_MAX_OPEN_CONNS"`
	MaxIdleConns    int           `yaml:"max_idle_conns" env:"SOUSCHEF_DB_MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"SOUSCHEF_DB_CONN_MAX_LIFETIME"`
	AutoMigrate     bool          `yaml:"auto_migrate" env:"SOUSCHEF_DB_AUTO_MIGRATE"`
}

// RemoteConfig points at the Supabase project. With Serve set, requests are
// served from the remote backend directly instead of the local database.
type RemoteConfig struct {
	Enabled bool   `yaml:"enabled" env:"SOUSCHEF_REMOTE_ENABLED"`
	URL     string `yaml:"url" env:"SUPABASE_URL"`
	APIKey  string `yaml:"api_key" env:"SUPABASE_SERVICE_KEY"`
	Bucket  string `yaml:"bucket" env:"SOUSCHEF_REMOTE_BUCKET"`
	UseAuth bool   `yaml:"use_auth" env:"SOUSCHEF_REMOTE_AUTH"`
	Serve   bool   `yaml:"serve" env:"SOUSCHEF_REMOTE_SERVE"`
}

type SyncConfig struct {
	Enabled  bool   `yaml:"enabled" env:"SOUSCHEF_SYNC_ENABLED"`
	Mode     string `yaml:"mode" env:"SOUSCHEF_SYNC_MODE"`
	Schedule string `yaml:"schedule" env:"SOUSCHEF_SYNC_SCHEDULE"`
}

// RedisConfig enables cross-instance change fan-out when Addr is set.
type RedisConfig struct {
	Addr     string `yaml:"addr" env:"SOUSCHEF_REDIS_ADDR"`
	Password string `yaml:"password" env:"SOUSCHEF_REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"SOUSCHEF_REDIS_DB"`
	Channel  string `yaml:"channel" env:"SOUSCHEF_REDIS_CHANNEL"`
}

type OCRConfig struct {
	Provider   string    `yaml:"provider" env:"SOUSCHEF_OCR_PROVIDER"`
	GenAIKey   string    `yaml:"genai_key" env:"GEMINI_API_KEY"`
	GenAIModel string    `yaml:"genai_model" env:"SOUSCHEF_GENAI_MODEL"`
	Endpoint   string    `yaml:"endpoint" env:"SOUSCHEF_OCR_ENDPOINT"`
	APIKey     string    `yaml:"api_key" env:"SOUSCHEF_OCR_API_KEY"`
	Fields     OCRFields `yaml:"fields"`
}

// OCRFields are JSONPath expressions into the HTTP OCR response.
type OCRFields struct {
	Text            string `yaml:"text" env:"SOUSCHEF_OCR_TEXT_PATH"`
	Store           string `yaml:"store" env:"SOUSCHEF_OCR_STORE_PATH"`
	Date            string `yaml:"date" env:"SOUSCHEF_OCR_DATE_PATH"`
	Total           string `yaml:"total" env:"SOUSCHEF_OCR_TOTAL_PATH"`
	Currency        string `yaml:"currency" env:"SOUSCHEF_OCR_CURRENCY_PATH"`
	Lines           string `yaml:"lines" env:"SOUSCHEF_OCR_LINES_PATH"`
	LineDescription string `yaml:"line_description" env:"SOUSCHEF_OCR_LINE_DESCRIPTION_PATH"`
	LineAmount      string `yaml:"line_amount" env:"SOUSCHEF_OCR_LINE_AMOUNT_PATH"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" env:"SOUSCHEF_LOG_LEVEL"`
	Format string `yaml:"format" env:"SOUSCHEF_LOG_FORMAT"`
}

// Default returns a configuration that runs a single local instance on a
// SQLite file.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			CORSOrigins:     "*",
			RateLimit:       10,
			RateBurst:       20,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Auth: AuthConfig{
			Issuer:     "souschef",
			TokenTTL:   24 * time.Hour,
			BcryptCost: 10,
		},
		Database: DatabaseConfig{
			Driver:          DriverSQLite,
			DSN:             "data/souschef.db",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
			AutoMigrate:     true,
		},
		Remote: RemoteConfig{Bucket: "receipts"},
		Sync: SyncConfig{
			Mode:     "merge",
			Schedule: "@every 5m",
		},
		Redis:   RedisConfig{Channel: "souschef:changes"},
		OCR:     OCRConfig{Provider: OCRNone, Fields: OCRFields{Text: "$.text"}},
		Logging: LoggingConfig{Level: "info", Format: "text"},
	}
}

// Load builds the configuration. path names a YAML file; when empty the
// SOUSCHEF_CONFIG variable is consulted and a missing file is not an error.
// A .env file (or SOUSCHEF_ENV_FILE) is loaded first if present, without
// overriding variables already set.
func Load(path string) (*Config, error) {
	envFile := os.Getenv(EnvDotFile)
	if envFile == "" {
		envFile = ".env"
	}
	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	cfg := Default()
	explicit := path != ""
	if !explicit {
		path = os.Getenv(EnvConfigFile)
		explicit = path != ""
	}
	if path != "" {
		if err := cfg.mergeFile(path); err != nil {
			if explicit || !errors.Is(err, os.ErrNotExist) {
				return nil, err
			}
		}
	}

	if err := envdecode.Decode(cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("decode environment: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) normalize() {
	c.Database.Driver = strings.ToLower(strings.TrimSpace(c.Database.Driver))
	switch c.Database.Driver {
	case "sqlite3":
		c.Database.Driver = DriverSQLite
	case "postgresql", "pg":
		c.Database.Driver = DriverPostgres
	}
	c.OCR.Provider = strings.ToLower(strings.TrimSpace(c.OCR.Provider))
	if c.OCR.Provider == "" {
		c.OCR.Provider = OCRNone
	}
	c.Sync.Mode = strings.ToLower(strings.TrimSpace(c.Sync.Mode))
	c.Remote.URL = strings.TrimRight(strings.TrimSpace(c.Remote.URL), "/")
}

// Validate reports the first inconsistent setting.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverMemory, DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("database.driver %q is not one of memory, sqlite, postgres", c.Database.Driver)
	}
	if c.Database.Driver != DriverMemory && strings.TrimSpace(c.Database.DSN) == "" {
		return fmt.Errorf("database.dsn is required for %s", c.Database.Driver)
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("auth.token_ttl must be positive")
	}
	if c.Remote.Enabled && (c.Remote.URL == "" || c.Remote.APIKey == "") {
		return fmt.Errorf("remote.url and remote.api_key are required when the remote backend is enabled")
	}
	if (c.Remote.Serve || c.Remote.UseAuth || c.Sync.Enabled) && !c.Remote.Enabled {
		return fmt.Errorf("remote serving, remote auth and sync need remote.enabled")
	}
	switch c.Sync.Mode {
	case "", "push", "pull", "merge":
	default:
		return fmt.Errorf("sync.mode %q is not one of push, pull, merge", c.Sync.Mode)
	}
	switch c.OCR.Provider {
	case OCRNone:
	case OCRGenAI:
		if c.OCR.GenAIKey == "" {
			return fmt.Errorf("ocr.genai_key is required for the genai provider")
		}
	case OCRHTTP:
		if c.OCR.Endpoint == "" {
			return fmt.Errorf("ocr.endpoint is required for the http provider")
		}
	default:
		return fmt.Errorf("ocr.provider %q is not one of none, genai, http", c.OCR.Provider)
	}
	return nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
