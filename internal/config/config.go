package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

type Config struct {
	AppName  string `envconfig:"APP_NAME" default:"Sandwich Hub API"`
	Env      string `envconfig:"APP_ENV" default:"development"`
	Host     string `envconfig:"HTTP_HOST" default:"0.0.0.0"`
	Port     int    `envconfig:"HTTP_PORT" default:"8000"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"INFO"`

	// DatabaseDriver selects the repository implementation once at startup.
	DatabaseDriver string `envconfig:"DATABASE_DRIVER" default:"postgres"`
	DatabaseURL    string `envconfig:"DATABASE_URL"`
	SQLitePath     string `envconfig:"SQLITE_PATH" default:"sandwich_hub.db"`

	PostgresHost     string `envconfig:"POSTGRES_HOST" default:"localhost"`
	PostgresPort     string `envconfig:"POSTGRES_PORT" default:"5432"`
	PostgresUser     string `envconfig:"POSTGRES_USER" default:"postgres"`
	PostgresPassword string `envconfig:"POSTGRES_PASSWORD" default:"postgres"`
	PostgresDB       string `envconfig:"POSTGRES_DB" default:"sandwich_hub"`

	JWTSecret          string   `envconfig:"JWT_SECRET"`
	AccessTokenMinutes int      `envconfig:"ACCESS_TOKEN_EXPIRE_MINUTES" default:"1440"`
	EncryptKey         string   `envconfig:"ENCRYPTION_KEY"`
	LegacyEncryptKeys  []string `envconfig:"LEGACY_ENCRYPTION_KEYS"`

	CORSOrigins []string `envconfig:"CORS_ORIGINS" default:"http://localhost:3000,http://localhost:5173"`

	MaxMessageLength int `envconfig:"MAX_MESSAGE_LENGTH" default:"5000"`
	MessagePageSize  int `envconfig:"MESSAGE_PAGE_SIZE" default:"1000"`

	CensoredWords []string `envconfig:"CENSORED_WORDS"`
	CensorChar    string   `envconfig:"CENSOR_CHAR" default:"*"`

	// RedisURL enables cross-instance broadcast relay when set.
	RedisURL     string `envconfig:"REDIS_URL"`
	RedisChannel string `envconfig:"REDIS_CHANNEL" default:"sandwich_hub.events"`
}

// Load reads an optional .env file, then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("process env: %w", err)
	}

	for i := range cfg.CORSOrigins {
		cfg.CORSOrigins[i] = strings.TrimSpace(cfg.CORSOrigins[i])
	}
	cfg.DatabaseDriver = strings.ToLower(strings.TrimSpace(cfg.DatabaseDriver))

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if cfg.DatabaseDriver == DriverPostgres && cfg.DatabaseURL == "" {
		cfg.DatabaseURL = cfg.postgresURL()
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	switch c.DatabaseDriver {
	case DriverPostgres, DriverSQLite, DriverMemory:
	default:
		return fmt.Errorf("DATABASE_DRIVER must be one of postgres, sqlite, memory; got %q", c.DatabaseDriver)
	}
	if utf8.RuneCountInString(c.CensorChar) != 1 {
		return fmt.Errorf("CENSOR_CHAR must be a single character")
	}
	if c.MaxMessageLength <= 0 {
		return fmt.Errorf("MAX_MESSAGE_LENGTH must be positive")
	}
	return nil
}

func (c *Config) postgresURL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.PostgresUser, c.PostgresPassword),
		Host:     fmt.Sprintf("%s:%s", c.PostgresHost, c.PostgresPort),
		Path:     c.PostgresDB,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

func (c *Config) HTTPAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// CensorRune returns the replacement rune used by the word censor.
func (c *Config) CensorRune() rune {
	r, _ := utf8.DecodeRuneInString(c.CensorChar)
	return r
}
