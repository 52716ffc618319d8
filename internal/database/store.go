package database

import (
	"context"
	"errors"

	"github.com/PaulBabatuyi/WeShare/internal/models"
)

var (
	ErrNotFound = errors.New("manifest not found")
	ErrExists   = errors.New("manifest already exists")
)

// ManifestStore is the durable id -> manifest mapping. Manifests are write-once.
type ManifestStore interface {
	CreateManifest(ctx context.Context, m *models.Manifest) error
	GetManifest(ctx context.Context, id string) (*models.Manifest, error)
}
