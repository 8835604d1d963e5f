package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the application.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	NewRelic NewRelicConfig
	ECR      ECRConfig
	Split    SplitConfig
	Log      LogConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	CORSOrigins  []string
}

// DatabaseConfig holds PostgreSQL configuration.
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	Enabled  bool
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRelicConfig holds New Relic configuration.
type NewRelicConfig struct {
	AppName    string
	LicenseKey string
	Enabled    bool
}

// ECRConfig holds the vendor terminal API configuration.
type ECRConfig struct {
	BaseURL      string
	APIKey       string
	Timeout      time.Duration
	TerminalID   string
	StationID    string
	CashierID    string
	PrintReceipt bool
}

// SplitConfig holds split payment orchestration settings.
type SplitConfig struct {
	PollInterval    time.Duration
	PollMaxAttempts int
	Retention       time.Duration
	SessionLockTTL  time.Duration
	ProgressStore   string // "redis" or "memory"
}

// LogConfig holds log output configuration. An empty File logs to stdout only.
type LogConfig struct {
	File      string
	MaxSizeMB int
}

// Load loads configuration from environment variables.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8080"),
			ReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 25*time.Minute),
			CORSOrigins:  getListEnv("SERVER_CORS_ORIGINS", []string{"*"}),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "splitpay"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			Enabled:  getBoolEnv("DB_ENABLED", true),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
		},
		NewRelic: NewRelicConfig{
			AppName:    getEnv("NEW_RELIC_APP_NAME", "split-payment-service"),
			LicenseKey: getEnv("NEW_RELIC_LICENSE_KEY", ""),
			Enabled:    getBoolEnv("NEW_RELIC_ENABLED", false),
		},
		ECR: ECRConfig{
			BaseURL:      getEnv("ECR_BASE_URL", "http://localhost:9090/api/v1"),
			APIKey:       getEnv("ECR_API_KEY", ""),
			Timeout:      getDurationEnv("ECR_TIMEOUT", 30*time.Second),
			TerminalID:   getEnv("ECR_TERMINAL_ID", ""),
			StationID:    getEnv("ECR_STATION_ID", ""),
			CashierID:    getEnv("ECR_CASHIER_ID", ""),
			PrintReceipt: getBoolEnv("ECR_PRINT_RECEIPT", true),
		},
		Split: SplitConfig{
			PollInterval:    getDurationEnv("SPLIT_POLL_INTERVAL", 2*time.Second),
			PollMaxAttempts: getIntEnv("SPLIT_POLL_MAX_ATTEMPTS", 60),
			Retention:       getDurationEnv("SPLIT_RETENTION", 24*time.Hour),
			SessionLockTTL:  getDurationEnv("SPLIT_SESSION_LOCK_TTL", 5*time.Minute),
			ProgressStore:   getEnv("PROGRESS_STORE", "redis"),
		},
		Log: LogConfig{
			File:      getEnv("LOG_FILE", ""),
			MaxSizeMB: getIntEnv("LOG_MAX_SIZE_MB", 100),
		},
	}
}

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

func getListEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
