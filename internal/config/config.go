package config

import (
	"fmt"
	"strings"
	"time"

	"vibecreator-backend/internal/dify"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Store drivers
const (
	StoreDriverPostgres = "postgres"
	StoreDriverSQLite   = "sqlite"
	StoreDriverRedis    = "redis"
)

// Gateway holds the Dify application settings. Missing values are not a startup
// error: each request reports them as a configuration error instead.
type Gateway struct {
	APIURL     string        `env:"DIFY_API_URL"`
	APIKey     string        `env:"DIFY_API_KEY"`
	ChatAPIURL string        `env:"DIFY_CHAT_API_URL"` // Falls back to APIURL
	ChatAPIKey string        `env:"DIFY_CHAT_API_KEY"`
	User       string        `env:"DIFY_USER" env-default:"vibe-creator-user"`
	Timeout    time.Duration `env:"DIFY_TIMEOUT" env-default:"120s"` // Blocking workflow runs only
}

// AnalysisEndpoint is the workflow application.
func (g Gateway) AnalysisEndpoint() dify.Endpoint {
	return dify.Endpoint{BaseURL: g.APIURL, APIKey: g.APIKey}
}

// ChatEndpoint is the chat application; its URL falls back to the workflow URL.
func (g Gateway) ChatEndpoint() dify.Endpoint {
	url := g.ChatAPIURL
	if strings.TrimSpace(url) == "" {
		url = g.APIURL
	}
	return dify.Endpoint{BaseURL: url, APIKey: g.ChatAPIKey}
}

// Config holds application configuration values loaded from environment variables.
type Config struct {
	HTTPPort       string   `env:"HTTP_PORT" env-default:"8080"`
	Environment    string   `env:"APP_ENV" env-default:"development"`
	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" env-separator:"," env-default:"http://localhost:3000"`

	StoreDriver   string `env:"STORE_DRIVER" env-default:"postgres"`
	DatabaseURL   string `env:"DATABASE_URL"`
	SQLitePath    string `env:"SQLITE_PATH" env-default:"vibecreator.db"`
	RedisAddr     string `env:"REDIS_ADDR" env-default:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" env-default:"0"`

	TokenEncoding string `env:"TOKEN_ENCODING" env-default:"cl100k_base"`

	Gateway Gateway
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// LoadConfig loads configuration from environment variables.
// It looks for a .env file first, then reads the actual environment.
// The returned note is non-empty when no .env file was loaded.
func LoadConfig() (*Config, string, error) {
	var note string
	if err := godotenv.Load(); err != nil {
		note = "could not load .env file, using environment variables only"
	}

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, note, fmt.Errorf("read environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, note, err
	}
	return &cfg, note, nil
}

func (c *Config) validate() error {
	switch c.StoreDriver {
	case StoreDriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL environment variable is not set (STORE_DRIVER=%s)", c.StoreDriver)
		}
	case StoreDriverSQLite, StoreDriverRedis:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q (want postgres, sqlite or redis)", c.StoreDriver)
	}
	return nil
}
