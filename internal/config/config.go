package config

import (
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

type Config struct {
	Server         ServerConfig
	Database       DatabaseConfig
	App            AppConfig
	Admin          AdminConfig
	Redis          RedisConfig
	Reconciliation ReconciliationConfig
	Scheduler      SchedulerConfig
}

type ServerConfig struct {
	Host         string
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type DatabaseConfig struct {
	Driver          string
	Host            string
	Port            string
	Username        string
	Password        string
	DBName          string
	Path            string
	SSLMode         string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

type AppConfig struct {
	Environment string
	LogLevel    string
	JWTSecret   string
}

// AdminConfig seeds the first ADMIN operator. An empty Email skips it.
type AdminConfig struct {
	Name     string
	Email    string
	Password string
}

// RedisConfig is optional. An empty Address keeps run locks in process.
type RedisConfig struct {
	Address  string
	Password string
	DB       int
}

// ReconciliationConfig holds the default matching tolerances and the run lock lease.
type ReconciliationConfig struct {
	AmountTolerance decimal.Decimal
	DayTolerance    int
	LockTTL         time.Duration
}

type SchedulerConfig struct {
	Enabled bool
	Cron    string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "localhost"),
			Port:         getEnv("SERVER_PORT", "8080"),
			ReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			Driver:          getEnv("DB_DRIVER", "mysql"),
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "3306"),
			Username:        getEnv("DB_USERNAME", "root"),
			Password:        getEnv("DB_PASSWORD", ""),
			DBName:          getEnv("DB_NAME", "conciliation_service"),
			Path:            getEnv("DB_PATH", "app.db"),
			SSLMode:         getEnv("DB_SSL_MODE", "disable"),
			MaxIdleConns:    getIntEnv("DB_MAX_IDLE_CONNS", 10),
			MaxOpenConns:    getIntEnv("DB_MAX_OPEN_CONNS", 100),
			ConnMaxLifetime: getDurationEnv("DB_CONN_MAX_LIFETIME", time.Hour),
		},
		App: AppConfig{
			Environment: getEnv("APP_ENV", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
			JWTSecret:   getEnv("JWT_SECRET", "your-secret-key"),
		},
		Admin: AdminConfig{
			Name:     getEnv("ADMIN_NAME", "Administrator"),
			Email:    getEnv("ADMIN_EMAIL", ""),
			Password: getEnv("ADMIN_PASSWORD", ""),
		},
		Redis: RedisConfig{
			Address:  getEnv("REDIS_ADDRESS", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
		},
		Reconciliation: ReconciliationConfig{
			AmountTolerance: getDecimalEnv("RECONCILIATION_AMOUNT_TOLERANCE", decimal.NewFromInt(1)),
			DayTolerance:    getIntEnv("RECONCILIATION_DAY_TOLERANCE", 2),
			LockTTL:         getDurationEnv("RECONCILIATION_LOCK_TTL", 30*time.Second),
		},
		Scheduler: SchedulerConfig{
			Enabled: getBoolEnv("SCHEDULER_ENABLED", false),
			Cron:    getEnv("SCHEDULER_CRON", "0 3 * * *"),
		},
	}
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
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
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

func getDecimalEnv(key string, defaultValue decimal.Decimal) decimal.Decimal {
	if value := os.Getenv(key); value != "" {
		if d, err := decimal.NewFromString(value); err == nil && !d.IsNegative() {
			return d
		}
	}
	return defaultValue
}
