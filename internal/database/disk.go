package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PaulBabatuyi/WeShare/internal/models"
	"github.com/spf13/afero"
)

// DiskStore keeps one JSON document per upload, <dir>/<id>.json.
type DiskStore struct {
	fs  afero.Fs
	dir string
}

// diskManifest is the stored document. JSON strings cannot carry invalid
// UTF-8, so such names are also kept as raw bytes (base64 in the file).
type diskManifest struct {
	ID        string     `json:"id"`
	CreatedAt time.Time  `json:"createdAt"`
	Files     []diskFile `json:"files"`
}

type diskFile struct {
	models.FileRecord
	RawName []byte `json:"rawName,omitempty"`
}

func toDisk(m *models.Manifest) diskManifest {
	dm := diskManifest{ID: m.ID, CreatedAt: m.CreatedAt, Files: make([]diskFile, len(m.Files))}
	for i, f := range m.Files {
		dm.Files[i].FileRecord = f
		if !utf8.ValidString(f.OriginalName) {
			dm.Files[i].RawName = []byte(f.OriginalName)
		}
	}
	return dm
}

func (dm diskManifest) manifest() *models.Manifest {
	m := &models.Manifest{ID: dm.ID, CreatedAt: dm.CreatedAt, Files: make([]models.FileRecord, len(dm.Files))}
	for i, f := range dm.Files {
		m.Files[i] = f.FileRecord
		if f.RawName != nil {
			m.Files[i].OriginalName = string(f.RawName)
		}
	}
	return m
}

func NewDiskStore(fs afero.Fs, dir string) (*DiskStore, error) {
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create manifest dir: %w", err)
	}
	return &DiskStore{fs: fs, dir: dir}, nil
}

func (d *DiskStore) path(id string) (string, error) {
	if id == "" || strings.ContainsAny(id, `/\.`) {
		return "", ErrNotFound
	}
	return filepath.Join(d.dir, id+".json"), nil
}

func (d *DiskStore) CreateManifest(ctx context.Context, m *models.Manifest) error {
	p, err := d.path(m.ID)
	if err != nil {
		return fmt.Errorf("manifest id %q: %w", m.ID, err)
	}

	data, err := json.Marshal(toDisk(m))
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}

	f, err := d.fs.OpenFile(p, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if errors.Is(err, os.ErrExist) {
		return ErrExists
	}
	if err != nil {
		return fmt.Errorf("create manifest: %w", err)
	}

	_, err = f.Write(data)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = d.fs.Remove(p)
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

func (d *DiskStore) GetManifest(ctx context.Context, id string) (*models.Manifest, error) {
	p, err := d.path(id)
	if err != nil {
		return nil, err
	}

	data, err := afero.ReadFile(d.fs, p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var dm diskManifest
	if err := json.Unmarshal(data, &dm); err != nil {
		return nil, fmt.Errorf("decode manifest %s: %w", id, err)
	}
	return dm.manifest(), nil
}
