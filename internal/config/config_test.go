package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv unsets every variable Config reads so host settings do not leak in.
func clearEnv(t *testing.T) {
	for _, k := range []string{
		"PORT", "FRONTEND_URL", "API_BASE_URL", "UPLOAD_DIR", "MAX_UPLOAD_BYTES", "CORS_ORIGINS",
		"STORAGE_BACKEND", "MANIFEST_BACKEND", "DATABASE_URL",
		"S3_ACCESS_KEY", "S3_SECRET_KEY", "S3_BUCKET", "S3_REGION", "S3_BASE_ENDPOINT",
		"EMAIL_HOST", "EMAIL_PORT", "EMAIL_USER", "EMAIL_PASS", "EMAIL_FROM", "EMAIL_TIMEOUT_SECONDS",
		"METRICS_PORT", "PROBE_ADDR", "THUMBNAIL_WIDTH", "THUMBNAIL_WORKERS", "DEV_MODE", "TRACING_ENABLED",
	} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "3001", cfg.Port)
	assert.Equal(t, ":3001", cfg.Addr())
	assert.Equal(t, "http://localhost:3000", cfg.FrontendURL)
	assert.Equal(t, "uploads", cfg.UploadDir)
	assert.Equal(t, int64(512<<20), cfg.MaxUploadBytes)
	assert.Equal(t, BackendFilesystem, cfg.StorageBackend)
	assert.Equal(t, BackendFilesystem, cfg.ManifestBackend)
	assert.Equal(t, "smtp.gmail.com", cfg.EmailHost)
	assert.Equal(t, 587, cfg.EmailPort)
	assert.Equal(t, 15*time.Second, cfg.EmailTimeout())
	assert.Equal(t, []string{"*"}, cfg.CORSAllowedOrigins())
	assert.False(t, cfg.DevMode)
}

func TestLoadFromEnvFile(t *testing.T) {
	clearEnv(t)

	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte(
		"PORT=8080\n"+
			"FRONTEND_URL=https://share.example.com\n"+
			"EMAIL_USER=sender@example.com\n"+
			"EMAIL_PASS=app-password\n"+
			"CORS_ORIGINS=https://a.example.com, https://b.example.com\n"+
			"DEV_MODE=true\n",
	), 0o600))

	// Real environment wins over the file.
	t.Setenv("PORT", "9999")

	cfg, err := Load(envFile)
	require.NoError(t, err)

	assert.Equal(t, "9999", cfg.Port)
	assert.Equal(t, "https://share.example.com", cfg.FrontendURL)
	assert.Equal(t, "sender@example.com", cfg.EmailFrom, "sender defaults to EMAIL_USER")
	assert.Equal(t, "app-password", cfg.EmailPass)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.CORSAllowedOrigins())
	assert.True(t, cfg.DevMode)
}

func TestValidate(t *testing.T) {
	clearEnv(t)

	t.Setenv("STORAGE_BACKEND", "ftp")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("STORAGE_BACKEND", BackendS3)
	_, err = Load()
	assert.ErrorContains(t, err, "S3_BUCKET")

	t.Setenv("S3_BUCKET", "weshare")
	t.Setenv("MANIFEST_BACKEND", BackendPostgres)
	_, err = Load()
	assert.ErrorContains(t, err, "DATABASE_URL")

	t.Setenv("DATABASE_URL", "postgres://localhost/weshare")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "weshare", cfg.S3Bucket)
}
