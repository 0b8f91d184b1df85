// Package config loads process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/example/task-tracker/domain/apperr"
	"github.com/joho/godotenv"
)

// Required keys.
const (
	KeyPublicURL  = "AUTH_PUBLIC_URL"
	KeySigningKey = "AUTH_SIGNING_KEY"
)

// Config holds every setting the application reads at startup.
type Config struct {
	PublicURL  string
	SigningKey string

	HTTPAddr           string
	CORSAllowedOrigins string
	CookieSecure       bool

	AuthDBPath       string
	TasksDBPath      string
	TasksDatabaseURL string
	DBDebug          bool
	GoogleClientID   string
	GoogleSecret     string
	RedisAddr        string
	RedisPassword    string
	ProviderTimeout  time.Duration
	StoreTimeout     time.Duration
	AuthRateLimit    int
	Location         *time.Location
	LogLevel         string
	ShutdownTimeout  time.Duration
}

// Load reads an optional .env file from the working directory, then the
// environment. It does not validate; call Validate before starting modules.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function.
func FromEnv(getenv func(string) string) (*Config, error) {
	get := func(key, def string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return def
	}

	cfg := &Config{
		PublicURL:          strings.TrimRight(get(KeyPublicURL, ""), "/"),
		SigningKey:         get(KeySigningKey, ""),
		HTTPAddr:           get("HTTP_ADDR", ":3000"),
		CORSAllowedOrigins: get("CORS_ALLOWED_ORIGINS", ""),
		AuthDBPath:         get("AUTH_DB_PATH", "auth.db"),
		TasksDBPath:        get("TASKS_DB_PATH", "tasks.db"),
		TasksDatabaseURL:   get("TASKS_DATABASE_URL", ""),
		GoogleClientID:     get("GOOGLE_CLIENT_ID", ""),
		GoogleSecret:       get("GOOGLE_CLIENT_SECRET", ""),
		RedisAddr:          get("REDIS_ADDR", ""),
		RedisPassword:      get("REDIS_PASSWORD", ""),
		LogLevel:           strings.ToLower(get("LOG_LEVEL", "info")),
	}

	var err error
	if cfg.CookieSecure, err = parseBool("COOKIE_SECURE", get("COOKIE_SECURE", "false")); err != nil {
		return nil, err
	}
	if cfg.DBDebug, err = parseBool("DB_DEBUG", get("DB_DEBUG", "false")); err != nil {
		return nil, err
	}
	if cfg.ProviderTimeout, err = parseDuration("PROVIDER_TIMEOUT", get("PROVIDER_TIMEOUT", "5s")); err != nil {
		return nil, err
	}
	if cfg.StoreTimeout, err = parseDuration("STORE_TIMEOUT", get("STORE_TIMEOUT", "5s")); err != nil {
		return nil, err
	}
	if cfg.ShutdownTimeout, err = parseDuration("SHUTDOWN_TIMEOUT", get("SHUTDOWN_TIMEOUT", "30s")); err != nil {
		return nil, err
	}

	limit, err := strconv.Atoi(get("AUTH_RATE_LIMIT", "20"))
	if err != nil || limit < 0 {
		return nil, apperr.Configuration(fmt.Sprintf("AUTH_RATE_LIMIT must be a non-negative integer, got %q", getenv("AUTH_RATE_LIMIT")))
	}
	cfg.AuthRateLimit = limit

	loc, err := time.LoadLocation(get("APP_TIMEZONE", "Local"))
	if err != nil {
		return nil, apperr.Configuration(fmt.Sprintf("APP_TIMEZONE is not a known zone: %v", err))
	}
	cfg.Location = loc

	if cfg.LogLevel != "info" && cfg.LogLevel != "error" {
		return nil, apperr.Configuration(fmt.Sprintf("LOG_LEVEL must be info or error, got %q", cfg.LogLevel))
	}

	return cfg, nil
}

// Validate checks the values the application cannot start without.
func (c *Config) Validate() error {
	var missing []string
	if c.PublicURL == "" {
		missing = append(missing, KeyPublicURL)
	}
	if c.SigningKey == "" {
		missing = append(missing, KeySigningKey)
	}
	if len(missing) > 0 {
		return apperr.Configuration("missing required environment variables: " + strings.Join(missing, ", "))
	}
	if !strings.HasPrefix(c.PublicURL, "http://") && !strings.HasPrefix(c.PublicURL, "https://") {
		return apperr.Configuration(KeyPublicURL + " must be an http(s) URL")
	}
	return nil
}

// GoogleEnabled reports whether Google sign-in is configured.
func (c *Config) GoogleEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleSecret != ""
}

func parseBool(key, v string) (bool, error) {
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, apperr.Configuration(fmt.Sprintf("%s must be a boolean, got %q", key, v))
	}
	return b, nil
}

func parseDuration(key, v string) (time.Duration, error) {
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, apperr.Configuration(fmt.Sprintf("%s must be a positive duration, got %q", key, v))
	}
	return d, nil
}
