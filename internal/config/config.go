package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration.
// Values are loaded from environment variables with sensible defaults.
type Config struct {
	// Server
	Port     int
	LogLevel string

	// Record store
	SQLitePath      string
	UseRemoteStore  bool
	RemoteStoreURL  string
	RemoteStoreKey  string
	WatchPollPeriod time.Duration

	// Uploads
	UploadDir string

	// HTTP client
	HTTPTimeout time.Duration

	// Resilience
	MaxRetries     int
	InitialBackoff time.Duration

	// Cache
	SessionCacheTTL time.Duration

	// Observability
	OTLPEndpoint string

	// Auth
	JWTSecret string
	TokenTTL  time.Duration

	// Bootstrap admin, created only when the user collection is empty.
	AdminUsername string
	AdminPassword string
}

// Load reads configuration from environment variables with defaults.
func Load() *Config {
	return &Config{
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		SQLitePath:      getEnv("SQLITE_PATH", "data/bookkeeper.db"),
		UseRemoteStore:  getEnv("USE_REMOTE_STORE", "false") == "true",
		RemoteStoreURL:  getEnv("REMOTE_STORE_URL", ""),
		RemoteStoreKey:  getEnv("REMOTE_STORE_KEY", ""),
		WatchPollPeriod: getEnvDuration("WATCH_POLL_PERIOD", 2*time.Second),

		UploadDir: getEnv("UPLOAD_DIR", "data/uploads"),

		HTTPTimeout: getEnvDuration("HTTP_TIMEOUT", 10*time.Second),

		MaxRetries:     getEnvInt("MAX_RETRIES", 3),
		InitialBackoff: getEnvDuration("INITIAL_BACKOFF", 100*time.Millisecond),

		SessionCacheTTL: getEnvDuration("SESSION_CACHE_TTL", 5*time.Minute),

		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),

		JWTSecret: getEnv("JWT_SECRET", "bookkeeper-default-dev-secret-change-me"),
		TokenTTL:  getEnvDuration("TOKEN_TTL", 30*24*time.Hour),

		AdminUsername: getEnv("ADMIN_USERNAME", "admin"),
		AdminPassword: getEnv("ADMIN_PASSWORD", "admin"),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
