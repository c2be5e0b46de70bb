package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Database   DatabaseConfig
	Server     ServerConfig
	Auth       AuthConfig
	LoginGuard LoginGuardConfig
	Redis      RedisConfig
}

type DatabaseConfig struct {
	URL               string // full connection URL, takes precedence over the parts below
	Host              string
	Port              int
	User              string
	Password          string
	Name              string
	SSLMode           string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
	RunMigrations     bool
}

type ServerConfig struct {
	Port                 string
	Env                  string
	LogLevel             string
	AllowedOrigins       []string
	TrustedProxies       []string
	ReadTimeout          time.Duration
	WriteTimeout         time.Duration
	IdleTimeout          time.Duration
	APIRequestsPerMinute int
}

type AuthConfig struct {
	JWTSecret           string
	AccessTokenExpiry   time.Duration
	TimingDelayBaseMs   int
	TimingDelayRandomMs int
}

// LoginGuardConfig carries the brute-force protection settings plus retention of the attempt log
type LoginGuardConfig struct {
	FailedAttemptsThreshold int
	AttemptWindow           time.Duration
	BlockDuration           time.Duration
	AttemptRetention        time.Duration
	CleanupInterval         time.Duration
}

type RedisConfig struct {
	Addr      string // empty disables the block cache
	Password  string
	DB        int
	Namespace string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	jwtSecret := getEnv("JWT_SECRET", "")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	env := getEnv("ENV", "development")

	cfg := &Config{
		Database: loadDatabaseConfig(),
		Server: ServerConfig{
			Port:                 getEnv("PORT", "8000"),
			Env:                  env,
			LogLevel:             getEnv("LOG_LEVEL", "info"),
			AllowedOrigins:       parseAllowedOrigins(env),
			TrustedProxies:       getEnvAsList("TRUSTED_PROXIES"),
			ReadTimeout:          getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:         getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:          getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			APIRequestsPerMinute: getEnvAsInt("API_REQUESTS_PER_MINUTE", 120),
		},
		Auth: AuthConfig{
			JWTSecret:           jwtSecret,
			AccessTokenExpiry:   getEnvAsDuration("ACCESS_TOKEN_EXPIRY", 24*time.Hour),
			TimingDelayBaseMs:   getEnvAsInt("TIMING_DELAY_BASE_MS", 100),
			TimingDelayRandomMs: getEnvAsInt("TIMING_DELAY_RANDOM_MS", 50),
		},
		LoginGuard: LoginGuardConfig{
			FailedAttemptsThreshold: getEnvAsInt("LOGIN_FAILED_ATTEMPTS_THRESHOLD", 5),
			AttemptWindow:           getEnvAsDuration("LOGIN_ATTEMPT_WINDOW", 1*time.Minute),
			BlockDuration:           getEnvAsDuration("LOGIN_BLOCK_DURATION", 30*time.Minute),
			AttemptRetention:        getEnvAsDuration("LOGIN_ATTEMPT_RETENTION", 30*24*time.Hour),
			CleanupInterval:         getEnvAsDuration("CLEANUP_INTERVAL", 1*time.Hour),
		},
		Redis: RedisConfig{
			Addr:      getEnv("REDIS_ADDR", ""),
			Password:  getEnv("REDIS_PASSWORD", ""),
			DB:        getEnvAsInt("REDIS_DB", 0),
			Namespace: getEnv("REDIS_NAMESPACE", "expense-tracker"),
		},
	}

	if cfg.Database.URL == "" && cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required when DATABASE_URL is not set")
	}

	// Validate JWT secret strength
	if err := validateJWTSecret(jwtSecret, env); err != nil {
		return nil, err
	}

	if err := cfg.LoginGuard.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadDatabase reads only the database settings, for tools that do not need the full config
func LoadDatabase() DatabaseConfig {
	_ = godotenv.Load()
	return loadDatabaseConfig()
}

func loadDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		URL:               getEnv("DATABASE_URL", ""),
		Host:              getEnv("DB_HOST", "localhost"),
		Port:              getEnvAsInt("DB_PORT", 5432),
		User:              getEnv("DB_USER", "expense_user"),
		Password:          getEnv("DB_PASSWORD", ""),
		Name:              getEnv("DB_NAME", "expense_tracker"),
		SSLMode:           getEnv("DB_SSLMODE", "disable"),
		MaxConns:          int32(getEnvAsInt("DB_MAX_CONNS", 25)),
		MinConns:          int32(getEnvAsInt("DB_MIN_CONNS", 5)),
		MaxConnLifetime:   getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
		MaxConnIdleTime:   getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
		HealthCheckPeriod: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", 1*time.Minute),
		RunMigrations:     getEnvAsBool("DB_RUN_MIGRATIONS", true),
	}
}

func (c *LoginGuardConfig) validate() error {
	if c.FailedAttemptsThreshold < 1 {
		return fmt.Errorf("LOGIN_FAILED_ATTEMPTS_THRESHOLD must be at least 1 (got %d)", c.FailedAttemptsThreshold)
	}
	if c.AttemptWindow <= 0 {
		return fmt.Errorf("LOGIN_ATTEMPT_WINDOW must be positive")
	}
	if c.BlockDuration <= 0 {
		return fmt.Errorf("LOGIN_BLOCK_DURATION must be positive")
	}
	if c.CleanupInterval <= 0 {
		return fmt.Errorf("CLEANUP_INTERVAL must be positive")
	}

	// The guard reads back at least window + block duration, plus the quiet gap before
	// the oldest failure it resolves; never prune inside twice that
	if minRetention := 2 * (c.AttemptWindow + c.BlockDuration); c.AttemptRetention < minRetention {
		c.AttemptRetention = minRetention
	}
	return nil
}

// validateJWTSecret enforces minimum security standards for JWT secret
func validateJWTSecret(secret, env string) error {
	// Minimum length based on environment
	minLength := 16 // Development minimum
	if env == "production" {
		minLength = 32 // Production requires stronger secret (256 bits)
	}

	if len(secret) < minLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters in %s environment (got %d)",
			minLength, env, len(secret))
	}

	weakSecrets := []string{
		"secret", "test", "password", "12345", "changeme",
		"admin", "root", "default", "example", "your-secret-key-here",
	}

	secretLower := strings.ToLower(secret)
	for _, weak := range weakSecrets {
		if secretLower == weak {
			return fmt.Errorf("JWT_SECRET cannot be a common weak value")
		}
	}

	return nil
}

func (c *DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultVal
}

func getEnvAsList(key string) []string {
	value := getEnv(key, "")
	if value == "" {
		return []string{}
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseAllowedOrigins(env string) []string {
	if env == "production" {
		return getEnvAsList("ALLOWED_ORIGINS")
	}

	// Development: allow localhost variants
	return []string{
		"http://localhost:3000",
		"http://localhost:8000",
		"http://localhost:5173", // Vite default
		"http://127.0.0.1:3000",
		"http://127.0.0.1:8000",
		"http://127.0.0.1:5173",
	}
}
