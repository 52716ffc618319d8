// Package config loads server settings from the environment, optionally
// seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	env "github.com/Netflix/go-env"
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/joho/godotenv"
)

const (
	BackendFilesystem = "filesystem"
	BackendS3         = "s3"
	BackendPostgres   = "postgres"
)

// Config holds runtime settings for the WeShare server.
//
// FrontendURL is the public base of share links (<FrontendURL>/download/<id>).
// APIBaseURL prefixes per-file download URLs in listings; empty means
// root-relative URLs.
type Config struct {
	Port           string `env:"PORT,default=3001"`
	FrontendURL    string `env:"FRONTEND_URL,default=http://localhost:3000"`
	APIBaseURL     string `env:"API_BASE_URL"`
	UploadDir      string `env:"UPLOAD_DIR,default=uploads"`
	MaxUploadBytes int64  `env:"MAX_UPLOAD_BYTES,default=536870912"`
	CORSOrigins    string `env:"CORS_ORIGINS,default=*"`

	StorageBackend  string `env:"STORAGE_BACKEND,default=filesystem"`
	ManifestBackend string `env:"MANIFEST_BACKEND,default=filesystem"`
	DatabaseURL     string `env:"DATABASE_URL"`

	S3AccessKey    string `env:"S3_ACCESS_KEY"`
	S3SecretKey    string `env:"S3_SECRET_KEY"`
	S3Bucket       string `env:"S3_BUCKET"`
	S3Region       string `env:"S3_REGION,default=us-east-1"`
	S3BaseEndpoint string `env:"S3_BASE_ENDPOINT"`

	EmailHost           string `env:"EMAIL_HOST,default=smtp.gmail.com"`
	EmailPort           int    `env:"EMAIL_PORT,default=587"`
	EmailUser           string `env:"EMAIL_USER"`
	EmailPass           string `env:"EMAIL_PASS"`
	EmailFrom           string `env:"EMAIL_FROM"`
	EmailTimeoutSeconds int    `env:"EMAIL_TIMEOUT_SECONDS,default=15"`

	MetricsPort string `env:"METRICS_PORT,default=9090"`
	ProbeAddr   string `env:"PROBE_ADDR,default=:50051"`

	ThumbnailWidth   int `env:"THUMBNAIL_WIDTH,default=320"`
	ThumbnailWorkers int `env:"THUMBNAIL_WORKERS,default=2"`

	DevMode        bool `env:"DEV_MODE,default=false"`
	TracingEnabled bool `env:"TRACING_ENABLED,default=false"`
}

// Load reads envFiles (missing files are ignored) into the process
// environment without overriding it, then decodes and validates Config.
func Load(envFiles ...string) (*Config, error) {
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	cfg := &Config{}
	if _, err := env.UnmarshalFromEnviron(cfg); err != nil {
		return nil, fmt.Errorf("decode environment: %w", err)
	}

	if cfg.EmailFrom == "" {
		cfg.EmailFrom = cfg.EmailUser
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	err := validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required),
		validation.Field(&c.FrontendURL, validation.Required),
		validation.Field(&c.UploadDir, validation.Required),
		validation.Field(&c.MaxUploadBytes, validation.Min(int64(1))),
		validation.Field(&c.StorageBackend, validation.In(BackendFilesystem, BackendS3)),
		validation.Field(&c.ManifestBackend, validation.In(BackendFilesystem, BackendPostgres)),
		validation.Field(&c.EmailPort, validation.Min(1), validation.Max(65535)),
		validation.Field(&c.ThumbnailWidth, validation.Min(1)),
		validation.Field(&c.ThumbnailWorkers, validation.Min(0)),
	)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	if c.StorageBackend == BackendS3 && c.S3Bucket == "" {
		return errors.New("invalid config: S3_BUCKET is required for the s3 storage backend")
	}
	if c.ManifestBackend == BackendPostgres && c.DatabaseURL == "" {
		return errors.New("invalid config: DATABASE_URL is required for the postgres manifest backend")
	}
	return nil
}

// Addr is the HTTP listen address.
func (c *Config) Addr() string {
	if strings.Contains(c.Port, ":") {
		return c.Port
	}
	return ":" + c.Port
}

// EmailTimeout bounds one SMTP dial-and-send.
func (c *Config) EmailTimeout() time.Duration {
	return time.Duration(c.EmailTimeoutSeconds) * time.Second
}

// CORSAllowedOrigins splits CORS_ORIGINS on commas.
func (c *Config) CORSAllowedOrigins() []string {
	var origins []string
	for _, o := range strings.Split(c.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}
