package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Session persistence backends for the client.
const (
	BackendFile   = "file"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Config holds the reference API's runtime configuration sourced from env vars.
type Config struct {
	Port            string
	DatabaseURL     string
	JWTSecret       string
	JWTIssuer       string
	JWTTTL          time.Duration
	CORSOrigins     []string
	RedisAddr       string
	RedisPassword   string
	OTPTTL          time.Duration
	PendingOrderTTL time.Duration
	LogLevel        string
}

// Load reads configuration from the environment and performs minimal validation.
func Load() (Config, error) {
	cfg := Config{
		Port:            fallback(os.Getenv("PORT"), "8080"),
		DatabaseURL:     strings.TrimSpace(os.Getenv("DATABASE_URL")),
		JWTSecret:       strings.TrimSpace(os.Getenv("JWT_SECRET")),
		JWTIssuer:       fallback(os.Getenv("JWT_ISSUER"), "pawmart"),
		JWTTTL:          minutes(os.Getenv("JWT_TTL_MINUTES"), 60),
		CORSOrigins:     parseCSV(fallback(os.Getenv("CORS_ALLOWED_ORIGINS"), "*")),
		RedisAddr:       strings.TrimSpace(os.Getenv("REDIS_ADDR")),
		RedisPassword:   os.Getenv("REDIS_PASSWORD"),
		OTPTTL:          minutes(os.Getenv("OTP_TTL_MINUTES"), 10),
		PendingOrderTTL: minutes(os.Getenv("PENDING_ORDER_TTL_MINUTES"), 24*60),
		LogLevel:        strings.ToLower(fallback(os.Getenv("LOG_LEVEL"), "info")),
	}

	if cfg.DatabaseURL == "" {
		return Config{}, errors.New("DATABASE_URL is required")
	}
	if cfg.JWTSecret == "" {
		return Config{}, errors.New("JWT_SECRET is required")
	}

	return cfg, nil
}

// HTTPAddress returns the host:port pair for the HTTP server to bind to.
func (c Config) HTTPAddress() string {
	return fmt.Sprintf(":%s", c.Port)
}

// ClientConfig configures the embedded client core.
type ClientConfig struct {
	APIBaseURL       string
	APITimeout       time.Duration
	SessionBackend   string
	SessionDir       string
	SessionNamespace string
	RedisAddr        string
	RedisPassword    string
}

// LoadClient reads the client configuration from the environment.
func LoadClient() (ClientConfig, error) {
	cfg := ClientConfig{
		APIBaseURL:       strings.TrimRight(fallback(os.Getenv("API_BASE_URL"), "http://localhost:8080"), "/"),
		SessionBackend:   strings.ToLower(fallback(os.Getenv("SESSION_BACKEND"), BackendFile)),
		SessionDir:       fallback(os.Getenv("SESSION_DIR"), ".pawmart"),
		SessionNamespace: fallback(os.Getenv("SESSION_NAMESPACE"), "pawmart:session"),
		RedisAddr:        strings.TrimSpace(os.Getenv("REDIS_ADDR")),
		RedisPassword:    os.Getenv("REDIS_PASSWORD"),
	}

	seconds := fallback(os.Getenv("API_TIMEOUT_SECONDS"), "15")
	if n, err := strconv.Atoi(seconds); err == nil && n > 0 {
		cfg.APITimeout = time.Duration(n) * time.Second
	} else {
		cfg.APITimeout = 15 * time.Second
	}

	switch cfg.SessionBackend {
	case BackendFile, BackendMemory:
	case BackendRedis:
		if cfg.RedisAddr == "" {
			return ClientConfig{}, errors.New("REDIS_ADDR is required for the redis session backend")
		}
	default:
		return ClientConfig{}, fmt.Errorf("unknown SESSION_BACKEND %q", cfg.SessionBackend)
	}

	return cfg, nil
}

func fallback(value, def string) string {
	if strings.TrimSpace(value) == "" {
		return def
	}
	return strings.TrimSpace(value)
}

// minutes parses a positive minute count, falling back to def.
func minutes(value string, def int) time.Duration {
	if n, err := strconv.Atoi(strings.TrimSpace(value)); err == nil && n > 0 {
		return time.Duration(n) * time.Minute
	}
	return time.Duration(def) * time.Minute
}

func parseCSV(input string) []string {
	parts := strings.Split(input, ",")
	var out []string
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}
