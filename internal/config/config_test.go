package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "local", cfg.Blob.Backend)
	assert.Equal(t, "gemini", cfg.Extraction.Provider)
	assert.Equal(t, 3*time.Minute, cfg.Extraction.RequestTimeout)
	assert.Equal(t, 15*time.Second, cfg.Extraction.HeartbeatInterval)
	assert.Equal(t, 5, cfg.Queue.Workers)
}

func TestLoad_GCSRequiresBucket(t *testing.T) {
	t.Setenv("BLOB_BACKEND", "gcs")
	t.Setenv("GCS_BUCKET", "")

	_, err := Load()
	assert.Error(t, err)

	t.Setenv("GCS_BUCKET", "my-bucket")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "my-bucket", cfg.Blob.GCSBucket)
}

func TestLoad_NonGeminiRequiresAPIKey(t *testing.T) {
	t.Setenv("EXTRACTION_PROVIDER", "groq")
	t.Setenv("EXTRACTION_API_KEY", "")

	_, err := Load()
	assert.Error(t, err)

	t.Setenv("EXTRACTION_API_KEY", "gsk_test")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "groq", cfg.Extraction.Provider)
}

func TestDatabaseDSN(t *testing.T) {
	d := DatabaseConfig{
		Host:     "db",
		Port:     5433,
		User:     "app",
		Password: "secret",
		Database: "statements",
		SSLMode:  "disable",
	}
	assert.Equal(t, "postgres://app:secret@db:5433/statements?sslmode=disable", d.DSN())
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("SOME_STRING", "value")
	t.Setenv("SOME_INT", "42")
	t.Setenv("SOME_BAD_INT", "forty-two")
	t.Setenv("SOME_DURATION", "90s")

	assert.Equal(t, "value", getEnv("SOME_STRING", "fallback"))
	assert.Equal(t, "fallback", getEnv("SOME_MISSING", "fallback"))
	assert.Equal(t, 42, getEnvAsInt("SOME_INT", 7))
	assert.Equal(t, 7, getEnvAsInt("SOME_BAD_INT", 7))
	assert.Equal(t, 90*time.Second, getEnvAsDuration("SOME_DURATION", time.Minute))
	assert.Equal(t, time.Minute, getEnvAsDuration("SOME_MISSING", time.Minute))
}
