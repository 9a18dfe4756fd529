// Package config handles application configuration.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	App      AppConfig
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Auth     AuthConfig
}

type AppConfig struct {
	Env      string
	LogLevel string
}

// IsDevelopment returns true if the app is running in development mode.
func (a AppConfig) IsDevelopment() bool {
	return a.Env == "development" || a.Env == "dev"
}

func (a AppConfig) IsProduction() bool {
	return a.Env == "production" || a.Env == "prod"
}

type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// Address returns the server address in host:port format.
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig locates the SQLite file. ":memory:" gives a throwaway
// database.
type DatabaseConfig struct {
	Path string
}

// RedisConfig controls the optional read-through document cache.
type RedisConfig struct {
	Enabled   bool
	Host      string
	Port      int
	Password  string
	DB        int
	PoolSize  int
	CacheTTL  time.Duration
	KeyPrefix string
}

// Addr returns the Redis address in host:port format.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type AuthConfig struct {
	JWTSecret string
	TokenTTL  time.Duration
}

// Load reads configuration from environment variables. A .env file in the
// working directory, if present, is loaded first; variables already set in
// the environment win over it.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	cfg := &Config{}
	var err error

	// App config
	cfg.App.Env = getEnvOrDefault("APP_ENV", "development")
	cfg.App.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")

	// Server config
	cfg.Server.Host = getEnvOrDefault("SERVER_HOST", "0.0.0.0")
	if cfg.Server.Port, err = getEnvAsInt("SERVER_PORT", 8080); err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT: %w", err)
	}
	if cfg.Server.ReadTimeout, err = getEnvAsDuration("SERVER_READ_TIMEOUT", 5*time.Second); err != nil {
		return nil, fmt.Errorf("invalid SERVER_READ_TIMEOUT: %w", err)
	}
	if cfg.Server.WriteTimeout, err = getEnvAsDuration("SERVER_WRITE_TIMEOUT", 10*time.Second); err != nil {
		return nil, fmt.Errorf("invalid SERVER_WRITE_TIMEOUT: %w", err)
	}
	if cfg.Server.ShutdownTimeout, err = getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second); err != nil {
		return nil, fmt.Errorf("invalid SERVER_SHUTDOWN_TIMEOUT: %w", err)
	}

	// Database config
	cfg.Database.Path = getEnvOrDefault("DB_PATH", "data/videotube.db")

	// Redis config
	if cfg.Redis.Enabled, err = getEnvAsBool("REDIS_ENABLED", false); err != nil {
		return nil, fmt.Errorf("invalid REDIS_ENABLED: %w", err)
	}
	cfg.Redis.Host = getEnvOrDefault("REDIS_HOST", "localhost")
	if cfg.Redis.Port, err = getEnvAsInt("REDIS_PORT", 6379); err != nil {
		return nil, fmt.Errorf("invalid REDIS_PORT: %w", err)
	}
	cfg.Redis.Password = getEnvOrDefault("REDIS_PASSWORD", "")
	if cfg.Redis.DB, err = getEnvAsInt("REDIS_DB", 0); err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}
	if cfg.Redis.PoolSize, err = getEnvAsInt("REDIS_POOL_SIZE", 10); err != nil {
		return nil, fmt.Errorf("invalid REDIS_POOL_SIZE: %w", err)
	}
	if cfg.Redis.CacheTTL, err = getEnvAsDuration("REDIS_CACHE_TTL", 10*time.Minute); err != nil {
		return nil, fmt.Errorf("invalid REDIS_CACHE_TTL: %w", err)
	}
	cfg.Redis.KeyPrefix = getEnvOrDefault("REDIS_KEY_PREFIX", "videotube:")

	// Auth config
	cfg.Auth.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.Auth.TokenTTL, err = getEnvAsDuration("JWT_TOKEN_TTL", 24*time.Hour); err != nil {
		return nil, fmt.Errorf("invalid JWT_TOKEN_TTL: %w", err)
	}

	return cfg, nil
}

// Validate reports settings the server cannot start without.
func (c *Config) Validate() error {
	if len(c.Auth.JWTSecret) < 16 {
		return errors.New("JWT_SECRET must be set to at least 16 characters")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("SERVER_PORT %d out of range", c.Server.Port)
	}
	if c.Database.Path == "" {
		return errors.New("DB_PATH must not be empty")
	}
	return nil
}

// getEnvOrDefault returns the environment variable value or a default.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) (int, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	return strconv.Atoi(valueStr)
}

func getEnvAsBool(key string, defaultValue bool) (bool, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	return strconv.ParseBool(valueStr)
}

func getEnvAsDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	return time.ParseDuration(valueStr)
}
