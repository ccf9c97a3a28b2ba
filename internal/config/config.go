package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Auth     AuthConfig
	LLM      LLMConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type DatabaseConfig struct {
	URL            string
	MaxConns       int
	MinConns       int
	MigrationsPath string
}

type AuthConfig struct {
	APIKeyHeader        string
	CallerServiceHeader string
}

type LLMConfig struct {
	OpenAIKey      string
	AnthropicKey   string
	GeminiKey      string
	RequestTimeout time.Duration
}

func Load() (*Config, error) {
	port, err := getEnvInt("SERVER_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT: %w", err)
	}

	maxConns, err := getEnvInt("DB_MAX_CONNS", 20)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MAX_CONNS: %w", err)
	}

	minConns, err := getEnvInt("DB_MIN_CONNS", 5)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MIN_CONNS: %w", err)
	}

	timeoutSecs, err := getEnvInt("LLM_REQUEST_TIMEOUT", 120)
	if err != nil {
		return nil, fmt.Errorf("invalid LLM_REQUEST_TIMEOUT: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: port,
		},
		Database: DatabaseConfig{
			URL:            getEnv("DATABASE_URL", ""),
			MaxConns:       maxConns,
			MinConns:       minConns,
			MigrationsPath: getEnv("MIGRATIONS_PATH", "migrations"),
		},
		Auth: AuthConfig{
			APIKeyHeader:        getEnv("API_KEY_HEADER", "X-API-Key"),
			CallerServiceHeader: getEnv("CALLER_SERVICE_HEADER", "X-Caller-Service"),
		},
		LLM: LLMConfig{
			OpenAIKey:      getEnv("OPENAI_API_KEY", ""),
			AnthropicKey:   getEnv("ANTHROPIC_API_KEY", ""),
			GeminiKey:      getEnv("GEMINI_API_KEY", ""),
			RequestTimeout: time.Duration(timeoutSecs) * time.Second,
		},
	}

	return cfg, nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func (c *Config) Validate() error {
	var missing []string
	if c.Database.URL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required env vars: %s", strings.Join(missing, ", "))
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}
