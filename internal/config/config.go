package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerHost string
	ServerPort string

	// StorageBackend selects persistence: "postgres" or "file".
	StorageBackend string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// File backend layout root.
	DataDir string

	UploadDir string

	// Editor behaviour
	AutosaveInterval time.Duration
	SaveTimeout      time.Duration
	HistoryLimit     int
	AllowedOrigin    string
	Theme            string
	Locale           string

	// Version writer pool
	VersionWorkers   int
	VersionQueueSize int

	// Version retention
	RetentionSchedule string
	RetentionKeep     int

	// Observability
	JaegerEndpoint string
}

func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		ServerHost: getEnv("SERVER_HOST", "localhost"),
		ServerPort: getEnv("SERVER_PORT", "8080"),

		StorageBackend: getEnv("STORAGE_BACKEND", "file"),

		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", "postgres"),
		DBName:     getEnv("DB_NAME", "sitebuilder"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		DataDir:   getEnv("DATA_DIR", "./data"),
		UploadDir: getEnv("UPLOAD_DIR", "./uploads"),

		AutosaveInterval: getEnvDuration("AUTOSAVE_INTERVAL", 30*time.Second),
		SaveTimeout:      getEnvDuration("SAVE_TIMEOUT", 30*time.Second),
		HistoryLimit:     getEnvInt("HISTORY_LIMIT", 50),
		AllowedOrigin:    getEnv("ALLOWED_ORIGIN", "http://localhost:3000"),
		Theme:            getEnv("EDITOR_THEME", "light"),
		Locale:           getEnv("EDITOR_LOCALE", "en"),

		VersionWorkers:   getEnvInt("VERSION_WORKERS", 2),
		VersionQueueSize: getEnvInt("VERSION_QUEUE_SIZE", 100),

		RetentionSchedule: getEnv("RETENTION_SCHEDULE", "0 3 * * *"),
		RetentionKeep:     getEnvInt("RETENTION_KEEP", 50),

		JaegerEndpoint: getEnv("JAEGER_ENDPOINT", "http://localhost:14268/api/traces"),
	}

	switch cfg.StorageBackend {
	case "postgres", "file":
	default:
		return nil, fmt.Errorf("STORAGE_BACKEND must be postgres or file, got %q", cfg.StorageBackend)
	}

	if cfg.HistoryLimit < 1 {
		return nil, fmt.Errorf("HISTORY_LIMIT must be positive, got %d", cfg.HistoryLimit)
	}

	return cfg, nil
}

func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
