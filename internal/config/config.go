package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Auth modes select which identity backend the server talks to.
const (
	AuthModeSupabase = "supabase"
	AuthModeToken    = "token"
)

type Config struct {
	// Server
	Port     string
	Env      string
	LogLevel string

	// Database
	DatabaseURL string

	// Redis
	RedisURL string

	// Identity provider
	AuthMode           string
	SupabaseURL        string
	SupabaseAnonKey    string
	SupabaseServiceKey string

	// Google OAuth (token mode)
	GoogleClientID     string
	GoogleClientSecret string

	// Domain REST backend
	APIBaseURL string

	// Visitor state
	StateSecret         string
	SessionCheckTimeout time.Duration
	SessionIdleTTL      time.Duration

	// Waitlist
	WaitlistRatePerMin int

	// Background jobs
	WorkerCount   int
	MigrationsDir string

	// Public URLs
	FrontendURL string
	PublicURL   string
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	cfg := &Config{
		Port:                getEnvOrDefault("PORT", "8080"),
		Env:                 getEnvOrDefault("ENV", "development"),
		LogLevel:            getEnvOrDefault("LOG_LEVEL", "info"),
		DatabaseURL:         mustGetEnv("DATABASE_URL"),
		RedisURL:            mustGetEnv("REDIS_URL"),
		AuthMode:            getEnvOrDefault("AUTH_MODE", AuthModeSupabase),
		SupabaseURL:         mustGetEnv("SUPABASE_URL"),
		SupabaseAnonKey:     mustGetEnv("SUPABASE_ANON_KEY"),
		SupabaseServiceKey:  getEnvOrDefault("SUPABASE_SERVICE_KEY", ""),
		GoogleClientID:      getEnvOrDefault("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret:  getEnvOrDefault("GOOGLE_CLIENT_SECRET", ""),
		APIBaseURL:          getEnvOrDefault("API_BASE_URL", "http://localhost:5000"),
		StateSecret:         mustGetEnv("STATE_SECRET"),
		SessionCheckTimeout: getEnvAsDurationOrDefault("SESSION_CHECK_TIMEOUT", 5*time.Second),
		SessionIdleTTL:      getEnvAsDurationOrDefault("SESSION_IDLE_TTL", 30*time.Minute),
		WaitlistRatePerMin:  getEnvAsIntOrDefault("WAITLIST_RATE_PER_MIN", 10),
		WorkerCount:         getEnvAsIntOrDefault("WORKER_COUNT", 2),
		MigrationsDir:       getEnvOrDefault("MIGRATIONS_DIR", "migrations"),
		FrontendURL:         getEnvOrDefault("FRONTEND_URL", "http://localhost:5173"),
	}
	cfg.PublicURL = getEnvOrDefault("PUBLIC_URL", "http://localhost:"+cfg.Port)

	if cfg.AuthMode != AuthModeSupabase && cfg.AuthMode != AuthModeToken {
		panic(fmt.Sprintf("AUTH_MODE must be %q or %q, got %q", AuthModeSupabase, AuthModeToken, cfg.AuthMode))
	}
	if cfg.AuthMode == AuthModeToken && cfg.GoogleClientID == "" {
		panic("GOOGLE_CLIENT_ID is required when AUTH_MODE=token")
	}

	return cfg
}

// IsProduction reports whether logs should be JSON and cookies secure.
func (c *Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}

func mustGetEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		panic(fmt.Sprintf("required environment variable %s is not set", key))
	}
	return val
}

func getEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsIntOrDefault(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

// getEnvAsDurationOrDefault accepts Go durations ("5s") or bare milliseconds ("5000").
func getEnvAsDurationOrDefault(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(val); err == nil && d > 0 {
		return d
	}
	if ms, err := strconv.Atoi(val); err == nil && ms > 0 {
		return time.Duration(ms) * time.Millisecond
	}
	return defaultVal
}
