// Package config loads application configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the root application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Auth     AuthConfig
	Chat     ChatConfig
	AI       AIConfig
	Books    BooksConfig
	CORS     CORSConfig
	Logging  LoggingConfig
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DatabaseConfig controls the PostgreSQL connection.
type DatabaseConfig struct {
	Driver          string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// AuthConfig controls token issuance.
type AuthConfig struct {
	Secret     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// ChatConfig holds credentials for the hosted chat provider.
type ChatConfig struct {
	APIKey    string
	APISecret string
	BaseURL   string
	Timeout   time.Duration
}

// AIConfig holds credentials for the generative chat provider.
type AIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// BooksConfig controls the public book catalog adapter.
type BooksConfig struct {
	BaseURL string
	Timeout time.Duration
}

// CORSConfig lists allowed origins. "*" allows all.
type CORSConfig struct {
	AllowedOrigins []string
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string
	Format string
	Output string
}

// Load reads configuration from the environment, applying defaults.
// DATABASE_URL and JWT_SECRET are required.
func Load() (*Config, error) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:         envString("SERVER_HOST", "0.0.0.0"),
			Port:         envInt("SERVER_PORT", 8080),
			ReadTimeout:  envDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout: envDuration("SERVER_WRITE_TIMEOUT", 0),
		},
		Database: DatabaseConfig{
			Driver:          "postgres",
			DSN:             dsn,
			MaxOpenConns:    envInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
		},
		Auth: AuthConfig{
			Secret:     secret,
			AccessTTL:  envDuration("ACCESS_TOKEN_TTL", 5*time.Hour),
			RefreshTTL: envDuration("REFRESH_TOKEN_TTL", 30*24*time.Hour),
		},
		Chat: ChatConfig{
			APIKey:    os.Getenv("STREAM_API_KEY"),
			APISecret: os.Getenv("STREAM_API_SECRET"),
			BaseURL:   envString("STREAM_BASE_URL", "https://chat.stream-io-api.com"),
			Timeout:   envDuration("STREAM_TIMEOUT", 10*time.Second),
		},
		AI: AIConfig{
			APIKey:  os.Getenv("AI_API_KEY"),
			BaseURL: envString("AI_BASE_URL", "https://openrouter.ai/api/v1"),
			Model:   envString("AI_MODEL", "openai/gpt-4o-mini"),
			Timeout: envDuration("AI_TIMEOUT", 60*time.Second),
		},
		Books: BooksConfig{
			BaseURL: envString("BOOKS_API_URL", "https://www.googleapis.com/books/v1"),
			Timeout: envDuration("BOOKS_TIMEOUT", 10*time.Second),
		},
		CORS: CORSConfig{
			AllowedOrigins: envList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		},
		Logging: LoggingConfig{
			Level:  envString("LOG_LEVEL", "info"),
			Format: envString("LOG_FORMAT", "json"),
			Output: envString("LOG_OUTPUT", "stdout"),
		},
	}
	return cfg, nil
}

func envString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func envList(key string, def []string) []string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
