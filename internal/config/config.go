// Package config loads application configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Blob       BlobConfig
	Extraction ExtractionConfig
	Queue      QueueConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// DSN returns a pgx-compatible connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Database, d.SSLMode)
}

// BlobConfig selects where raw statement PDFs are kept.
// Backend is "gcs" or "local".
type BlobConfig struct {
	Backend        string
	GCSBucket      string
	GCSCredentials string
	LocalDir       string
}

// ExtractionConfig configures the LLM extraction provider.
// Provider is one of "gemini", "openrouter", "groq".
type ExtractionConfig struct {
	Provider          string
	APIKey            string
	RequestTimeout    time.Duration
	HeartbeatInterval time.Duration
}

type QueueConfig struct {
	Workers    int
	BufferSize int
}

// Load reads configuration from environment variables. A .env file in the
// working directory is loaded first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: getEnvAsInt("SERVER_PORT", 8080),
		},
		Database: DatabaseConfig{
			Host:     getEnv("POSTGRES_HOST", "localhost"),
			Port:     getEnvAsInt("POSTGRES_PORT", 5432),
			User:     getEnv("POSTGRES_USER", "postgres"),
			Password: getEnv("POSTGRES_PASSWORD", "postgres"),
			Database: getEnv("POSTGRES_DB", "statements"),
			SSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		},
		Blob: BlobConfig{
			Backend:        getEnv("BLOB_BACKEND", "local"),
			GCSBucket:      getEnv("GCS_BUCKET", ""),
			GCSCredentials: getEnv("GCS_CREDENTIALS_FILE", ""),
			LocalDir:       getEnv("BLOB_LOCAL_DIR", "./uploads"),
		},
		Extraction: ExtractionConfig{
			Provider:          getEnv("EXTRACTION_PROVIDER", "gemini"),
			APIKey:            getEnv("EXTRACTION_API_KEY", ""),
			RequestTimeout:    getEnvAsDuration("EXTRACTION_TIMEOUT", 3*time.Minute),
			HeartbeatInterval: getEnvAsDuration("EXTRACTION_HEARTBEAT", 15*time.Second),
		},
		Queue: QueueConfig{
			Workers:    getEnvAsInt("QUEUE_WORKERS", 5),
			BufferSize: getEnvAsInt("QUEUE_BUFFER", 100),
		},
	}

	if cfg.Blob.Backend == "gcs" && cfg.Blob.GCSBucket == "" {
		return nil, errors.New("GCS_BUCKET is required when BLOB_BACKEND=gcs")
	}
	if cfg.Extraction.Provider != "gemini" && cfg.Extraction.APIKey == "" {
		return nil, fmt.Errorf("EXTRACTION_API_KEY is required for provider %q", cfg.Extraction.Provider)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
