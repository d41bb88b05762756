package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Moodle    SourceConfig
	Woo       SourceConfig
	Export    ExportConfig
	JWT       JWTConfig
	Email     EmailConfig
	CORS      CORSConfig
	RateLimit RateLimitConfig
	Vault     VaultConfig
	Scheduler SchedulerConfig
	App       AppConfig
	Log       LogConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Host         string
	Port         string
	TimeoutRead  time.Duration
	TimeoutWrite time.Duration
	TimeoutIdle  time.Duration
}

// DatabaseConfig holds configuration for the application-owned Postgres database
type DatabaseConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// SourceConfig holds connection settings for one of the external, read-only
// MariaDB report sources (Moodle LMS or the WooCommerce/WordPress shop).
type SourceConfig struct {
	Host        string
	Port        string
	User        string
	Password    string
	Name        string
	TablePrefix string
	Timeout     time.Duration
}

// ExportConfig holds export governance settings
type ExportConfig struct {
	RowCap int
}

// JWTConfig holds JWT-related configuration
type JWTConfig struct {
	Secret            string
	Expiration        time.Duration
	RefreshExpiration time.Duration
}

// EmailConfig holds email-related configuration
type EmailConfig struct {
	SMTPHost     string
	SMTPPort     string
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
	LoginURL     string
}

// CORSConfig holds CORS-related configuration
type CORSConfig struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	ExposedHeaders   []string
	AllowCredentials bool
	MaxAge           int
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Enabled  bool
	Requests int
	Duration time.Duration
}

// VaultConfig holds Vault-related configuration. When enabled, the source
// database passwords are read from the KV store instead of the environment.
type VaultConfig struct {
	Address   string
	Token     string
	KVMount   string
	SecretKey string
	Enabled   bool
}

// SchedulerConfig holds the intervals of the background maintenance tasks
type SchedulerConfig struct {
	SessionCleanupInterval  time.Duration
	PendingReminderInterval time.Duration
	EnablePendingReminders  bool
}

// AppConfig holds general application configuration
type AppConfig struct {
	Env                string
	Name               string
	Version            string
	EnableRegistration bool
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	// godotenv doesn't override already-set variables, so order matters
	_ = godotenv.Load(".env")
	_ = godotenv.Load("../.env")

	cfg := &Config{
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "localhost"),
			Port:         getEnv("SERVER_PORT", "8080"),
			TimeoutRead:  getDurationEnv("SERVER_TIMEOUT_READ", 15*time.Second),
			TimeoutWrite: getDurationEnv("SERVER_TIMEOUT_WRITE", 60*time.Second),
			TimeoutIdle:  getDurationEnv("SERVER_TIMEOUT_IDLE", 60*time.Second),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			User:            getEnv("DB_USER", "reporter"),
			Password:        getEnv("DB_PASSWORD", ""),
			Name:            getEnv("DB_NAME", "reporter_db"),
			SSLMode:         getEnv("DB_SSLMODE", "prefer"),
			MaxOpenConns:    getIntEnv("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getIntEnv("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getDurationEnv("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Moodle: SourceConfig{
			Host:        getEnv("MOODLE_DB_HOST", "localhost"),
			Port:        getEnv("MOODLE_DB_PORT", "3306"),
			User:        getEnv("MOODLE_DB_USER", ""),
			Password:    getEnv("MOODLE_DB_PASSWORD", ""),
			Name:        getEnv("MOODLE_DB_NAME", "moodle"),
			TablePrefix: getEnv("MOODLE_TABLE_PREFIX", "mdl"),
			Timeout:     getDurationEnv("MOODLE_DB_TIMEOUT", 60*time.Second),
		},
		Woo: SourceConfig{
			Host:        getEnv("WOO_DB_HOST", "localhost"),
			Port:        getEnv("WOO_DB_PORT", "3306"),
			User:        getEnv("WOO_DB_USER", ""),
			Password:    getEnv("WOO_DB_PASSWORD", ""),
			Name:        getEnv("WOO_DB_NAME", "wordpress"),
			TablePrefix: getEnv("WOO_TABLE_PREFIX", "wp"),
			Timeout:     getDurationEnv("WOO_DB_TIMEOUT", 60*time.Second),
		},
		Export: ExportConfig{
			RowCap: getIntEnv("EXPORT_ROW_CAP", 50000),
		},
		JWT: JWTConfig{
			Secret:            getEnv("JWT_SECRET", ""),
			Expiration:        getDurationEnv("JWT_EXPIRATION", 24*time.Hour),
			RefreshExpiration: getDurationEnv("JWT_REFRESH_EXPIRATION", 168*time.Hour),
		},
		Email: EmailConfig{
			SMTPHost:     getEnv("SMTP_HOST", ""),
			SMTPPort:     getEnv("SMTP_PORT", "587"),
			SMTPUsername: getEnv("SMTP_USERNAME", ""),
			SMTPPassword: getEnv("SMTP_PASSWORD", ""),
			SMTPFrom:     getEnv("SMTP_FROM", "noreply@example.com"),
			LoginURL:     getEnv("LOGIN_URL", "http://localhost:8080/login"),
		},
		CORS: CORSConfig{
			AllowedOrigins:   getSliceEnv("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
			AllowedMethods:   getSliceEnv("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
			AllowedHeaders:   getSliceEnv("CORS_ALLOWED_HEADERS", []string{"Accept", "Authorization", "Content-Type"}),
			ExposedHeaders:   getSliceEnv("CORS_EXPOSED_HEADERS", []string{"Content-Disposition"}),
			AllowCredentials: getBoolEnv("CORS_ALLOW_CREDENTIALS", true),
			MaxAge:           getIntEnv("CORS_MAX_AGE", 300),
		},
		RateLimit: RateLimitConfig{
			Enabled:  getBoolEnv("RATE_LIMIT_ENABLED", true),
			Requests: getIntEnv("RATE_LIMIT_REQUESTS", 100),
			Duration: getDurationEnv("RATE_LIMIT_DURATION", 1*time.Minute),
		},
		Vault: VaultConfig{
			Address:   getEnv("VAULT_ADDR", "http://localhost:8200"),
			Token:     getEnv("VAULT_TOKEN", ""),
			KVMount:   getEnv("VAULT_KV_MOUNT", "secret"),
			SecretKey: getEnv("VAULT_SECRET_PATH", "charter-reporter/sources"),
			Enabled:   getBoolEnv("VAULT_ENABLED", false),
		},
		Scheduler: SchedulerConfig{
			SessionCleanupInterval:  getDurationEnv("SESSION_CLEANUP_INTERVAL", 1*time.Hour),
			PendingReminderInterval: getDurationEnv("PENDING_REMINDER_INTERVAL", 24*time.Hour),
			EnablePendingReminders:  getBoolEnv("ENABLE_PENDING_REMINDERS", true),
		},
		App: AppConfig{
			Env:                getEnv("APP_ENV", "development"),
			Name:               getEnv("APP_NAME", "CharterReporter"),
			Version:            getEnv("APP_VERSION", "1.0.0"),
			EnableRegistration: getBoolEnv("ENABLE_REGISTRATION", true),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}

	// Validate required configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.Database.Password == "" && c.App.Env == "production" {
		return fmt.Errorf("DB_PASSWORD is required in production")
	}
	if c.Export.RowCap <= 0 {
		return fmt.Errorf("EXPORT_ROW_CAP must be positive")
	}
	return nil
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getSliceEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		// Split by comma and trim whitespace
		parts := strings.Split(value, ",")
		var result []string
		for _, v := range parts {
			if trimmed := strings.TrimSpace(v); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultValue
}
