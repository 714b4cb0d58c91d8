package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const defaultSQLiteDSN = "r2k2.db?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000"

type Config struct {
	DatabaseDriver string
	DatabaseURL    string
	ServerPort     int

	CORSAllowedOrigins []string
	// Walk over byes right after the bracket is generated
	AutoAdvanceByes    bool

	// Empty disables affiliate validation
	AffiliateRosterURL string
	AffiliateCacheTTL  time.Duration

	// Empty keeps the roster cache in memory
	RedisURL string

	LogLevel slog.Level
}

// Load reads the configuration from the environment. A .env file is loaded
// first when present.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}

	cfg := &Config{
		DatabaseDriver:     getEnv("DATABASE_DRIVER", "sqlite3"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		AffiliateRosterURL: strings.TrimSpace(os.Getenv("AFFILIATE_ROSTER_URL")),
		RedisURL:           strings.TrimSpace(os.Getenv("REDIS_URL")),
	}

	switch cfg.DatabaseDriver {
	case "sqlite3":
		if cfg.DatabaseURL == "" {
			cfg.DatabaseURL = defaultSQLiteDSN
		}
	case "postgres":
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL environment variable is not set")
		}
	default:
		return nil, fmt.Errorf("DATABASE_DRIVER must be sqlite3 or postgres, got %q", cfg.DatabaseDriver)
	}

	port, err := strconv.Atoi(getEnv("SERVER_PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT environment variable: %w", err)
	}
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", port)
	}
	cfg.ServerPort = port

	for _, origin := range strings.Split(getEnv("CORS_ALLOWED_ORIGINS", "*"), ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			cfg.CORSAllowedOrigins = append(cfg.CORSAllowedOrigins, origin)
		}
	}

	cfg.AutoAdvanceByes, err = strconv.ParseBool(getEnv("AUTO_ADVANCE_BYES", "false"))
	if err != nil {
		return nil, fmt.Errorf("invalid AUTO_ADVANCE_BYES environment variable: %w", err)
	}

	cfg.AffiliateCacheTTL, err = time.ParseDuration(getEnv("AFFILIATE_CACHE_TTL", "5m"))
	if err != nil {
		return nil, fmt.Errorf("invalid AFFILIATE_CACHE_TTL environment variable: %w", err)
	}
	if cfg.AffiliateCacheTTL <= 0 {
		return nil, fmt.Errorf("AFFILIATE_CACHE_TTL must be positive, got %s", cfg.AffiliateCacheTTL)
	}

	if err := cfg.LogLevel.UnmarshalText([]byte(getEnv("LOG_LEVEL", "info"))); err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL environment variable: %w", err)
	}

	return cfg, nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.ServerPort)
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
