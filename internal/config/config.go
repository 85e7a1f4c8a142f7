package config

import (
	"os"
	"regexp"
	"strconv"
	"time"
)

// Config holds all application configuration, loaded from environment
// variables.
type Config struct {
	Database DatabaseConfig
	Redis    RedisConfig
	Server   ServerConfig
	Worker   WorkerConfig
	Storage  StorageConfig
	Env      string
	LogLevel string
}

type DatabaseConfig struct {
	DSN string
}

type RedisConfig struct {
	Addr          string
	QueueKey      string
	ProcessingKey string
	JobKeyPrefix  string
	JobTTL        time.Duration
}

type ServerConfig struct {
	HTTPAddr        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type WorkerConfig struct {
	Workers        int
	ReaperInterval time.Duration
	ReaperBatch    int
}

type StorageConfig struct {
	UploadDir string
}

func Load() *Config {
	return &Config{
		Database: DatabaseConfig{
			DSN: getEnv("POSTGRES_DSN", ""),
		},
		Redis: RedisConfig{
			Addr:          getEnv("REDIS_ADDR", "localhost:6379"),
			QueueKey:      getEnv("REDIS_QUEUE_KEY", "documents:queue"),
			ProcessingKey: getEnv("REDIS_PROCESSING_KEY", "documents:processing"),
			JobKeyPrefix:  getEnv("REDIS_JOB_KEY_PREFIX", "documents:jobs:"),
			JobTTL:        getEnvAsDuration("JOB_TTL", 24*time.Hour),
		},
		Server: ServerConfig{
			HTTPAddr:        getEnv("HTTP_ADDR", ":8080"),
			ReadTimeout:     getEnvAsDuration("HTTP_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvAsDuration("HTTP_WRITE_TIMEOUT", 30*time.Second),
			ShutdownTimeout: getEnvAsDuration("HTTP_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Worker: WorkerConfig{
			Workers:        getEnvAsInt("WORKERS", 4),
			ReaperInterval: getEnvAsDuration("REAPER_INTERVAL", 30*time.Second),
			ReaperBatch:    getEnvAsInt("REAPER_BATCH", 100),
		},
		Storage: StorageConfig{
			UploadDir: getEnv("FILE_STORAGE_PATH", "./data/uploads"),
		},
		Env:      getEnv("APP_ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", ""),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

var dsnPassword = regexp.MustCompile(`://([^:/?#]+):([^@/]+)@`)

// RedactDSN masks the password in a postgres DSN for startup logs.
func RedactDSN(dsn string) string {
	return dsnPassword.ReplaceAllString(dsn, `://$1:****@`)
}
