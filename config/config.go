// Package config loads every server setting from the environment in one place.
// A .env file in the working directory is honoured for local development;
// in production real environment variables are used.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config groups the settings by concern.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	JWT       JWTConfig
	Gateway   GatewayConfig
	RateLimit RateLimitConfig
	Log       LogConfig
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Host        string
	Port        int
	CORSOrigins []string
}

// DatabaseConfig points at the SQLite file.
type DatabaseConfig struct {
	Path string // e.g. ./data/pulse.db
}

// JWTConfig controls credential issuance.
type JWTConfig struct {
	Secret     string // keep it secret
	ExpiryDays int
}

// GatewayConfig tunes the push gateway.
type GatewayConfig struct {
	// PresencePush broadcasts user:status when an identity gains its first
	// connection or loses its last one. Off by default: presence is read from
	// GET /api/users/online and pushed only on explicit status reports.
	PresencePush   bool
	SendBufferSize int
}

// RateLimitConfig throttles login attempts per IP.
type RateLimitConfig struct {
	LoginAttempts int
	LoginWindow   time.Duration
}

// LogConfig selects the zerolog level and format.
type LogConfig struct {
	Level string
	JSON  bool
}

// Load builds a Config from the environment. JWT_SECRET is mandatory.
func Load() (*Config, error) {
	// A missing .env is fine.
	_ = godotenv.Load()

	port, err := strconv.Atoi(getEnv("SERVER_PORT", "4003"))
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT: %w", err)
	}

	expiryDays, err := strconv.Atoi(getEnv("JWT_EXPIRY_DAYS", "7"))
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_EXPIRY_DAYS: %w", err)
	}
	if expiryDays <= 0 {
		return nil, fmt.Errorf("invalid JWT_EXPIRY_DAYS: must be positive")
	}

	presencePush, err := strconv.ParseBool(getEnv("PRESENCE_PUSH", "false"))
	if err != nil {
		return nil, fmt.Errorf("invalid PRESENCE_PUSH: %w", err)
	}

	sendBuffer, err := strconv.Atoi(getEnv("WS_SEND_BUFFER", "256"))
	if err != nil {
		return nil, fmt.Errorf("invalid WS_SEND_BUFFER: %w", err)
	}

	loginAttempts, err := strconv.Atoi(getEnv("LOGIN_RATE_LIMIT", "10"))
	if err != nil {
		return nil, fmt.Errorf("invalid LOGIN_RATE_LIMIT: %w", err)
	}

	loginWindow, err := strconv.Atoi(getEnv("LOGIN_RATE_WINDOW_SECONDS", "120"))
	if err != nil {
		return nil, fmt.Errorf("invalid LOGIN_RATE_WINDOW_SECONDS: %w", err)
	}

	logJSON, err := strconv.ParseBool(getEnv("LOG_JSON", "false"))
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_JSON: %w", err)
	}

	jwtSecret := getEnv("JWT_SECRET", "")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable is required")
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:        getEnv("SERVER_HOST", "0.0.0.0"),
			Port:        port,
			CORSOrigins: splitList(getEnv("CORS_ORIGINS", "http://localhost:5173,http://localhost:3000")),
		},
		Database: DatabaseConfig{
			Path: getEnv("DATABASE_PATH", "./data/pulse.db"),
		},
		JWT: JWTConfig{
			Secret:     jwtSecret,
			ExpiryDays: expiryDays,
		},
		Gateway: GatewayConfig{
			PresencePush:   presencePush,
			SendBufferSize: sendBuffer,
		},
		RateLimit: RateLimitConfig{
			LoginAttempts: loginAttempts,
			LoginWindow:   time.Duration(loginWindow) * time.Second,
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
			JSON:  logJSON,
		},
	}

	return cfg, nil
}

// Addr returns the listen address, e.g. "0.0.0.0:4003".
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// TokenTTL is the credential lifetime.
func (c *JWTConfig) TokenTTL() time.Duration {
	return time.Duration(c.ExpiryDays) * 24 * time.Hour
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
