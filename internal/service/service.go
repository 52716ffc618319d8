package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/PaulBabatuyi/WeShare/internal/database"
	"github.com/PaulBabatuyi/WeShare/internal/models"
	"github.com/PaulBabatuyi/WeShare/internal/storage"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Thumbnailer receives image files once their manifest is persisted.
type Thumbnailer interface {
	Enqueue(file models.FileRecord) bool
}

type UploadService struct {
	storage   storage.Storage
	manifests database.ManifestStore
	thumbs    Thumbnailer
	linkBase  string

	logger *zap.Logger
	tracer trace.Tracer
	newID  func() string
	now    func() time.Time
}

type Option func(*UploadService)

func WithThumbnailer(t Thumbnailer) Option {
	return func(s *UploadService) { s.thumbs = t }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *UploadService) { s.logger = l }
}

// WithIDGenerator replaces uuid.NewString. Generated ids must be canonical UUIDs.
func WithIDGenerator(f func() string) Option {
	return func(s *UploadService) { s.newID = f }
}

// NewUploadService builds the service. linkBase is the public frontend URL
// that share links point at.
func NewUploadService(store storage.Storage, manifests database.ManifestStore, linkBase string, opts ...Option) *UploadService {
	s := &UploadService{
		storage:   store,
		manifests: manifests,
		linkBase:  strings.TrimRight(linkBase, "/"),
		logger:    zap.NewNop(),
		tracer:    otel.Tracer("github.com/PaulBabatuyi/WeShare/internal/service"),
		newID:     uuid.NewString,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FileInput is one file of an upload request.
type FileInput struct {
	Name    string
	Content io.Reader
}

type UploadResult struct {
	ID   string `json:"id"`
	Link string `json:"link"`
}

// ShareLink is the frontend download page of an upload.
func (s *UploadService) ShareLink(id string) string {
	return s.linkBase + "/download/" + url.PathEscape(id)
}

// CreateUpload stores files in order and persists their manifest.
func (s *UploadService) CreateUpload(ctx context.Context, files []FileInput) (*UploadResult, error) {
	if len(files) == 0 {
		return nil, ErrNoFiles
	}

	u := s.Begin(ctx)
	for _, f := range files {
		if err := u.Add(f.Name, f.Content); err != nil {
			u.Abort()
			return nil, err
		}
	}
	return u.Commit()
}

// Upload accumulates the files of one upload. The manifest is written by
// Commit, after every blob; an Upload is not safe for concurrent use.
type Upload struct {
	s     *UploadService
	ctx   context.Context
	span  trace.Span
	id    string
	files []models.FileRecord
	bytes int64
	done  bool
}

// Begin starts an upload. Nothing is persisted until Add is called.
func (s *UploadService) Begin(ctx context.Context) *Upload {
	id := s.newID()
	ctx, span := s.tracer.Start(ctx, "UploadService.CreateUpload",
		trace.WithAttributes(attribute.String("upload.id", id)))
	return &Upload{s: s, ctx: ctx, span: span, id: id}
}

func (u *Upload) ID() string {
	return u.id
}

// Add sniffs and writes one file under a generated key.
func (u *Upload) Add(name string, r io.Reader) error {
	if u.done {
		return ErrUploadClosed
	}

	index := len(u.files)
	key := StorageKey(u.id, index, name)

	body, contentType, err := sniffContentType(r)
	if err != nil {
		return fmt.Errorf("%w: file %d: %w", ErrStorage, index, err)
	}

	n, err := u.s.storage.Put(u.ctx, key, body)
	if err != nil {
		return fmt.Errorf("%w: write file %d: %w", ErrStorage, index, err)
	}

	u.files = append(u.files, models.FileRecord{
		OriginalName: name,
		StorageKey:   key,
		ContentType:  contentType,
		Size:         n,
	})
	u.bytes += n
	return nil
}

// Files reports how many files were written so far.
func (u *Upload) Files() int {
	return len(u.files)
}

// Bytes reports how many bytes were written so far.
func (u *Upload) Bytes() int64 {
	return u.bytes
}

// Commit persists the manifest. With no files it fails with ErrNoFiles and
// nothing is written.
func (u *Upload) Commit() (*UploadResult, error) {
	if u.done {
		return nil, ErrUploadClosed
	}
	u.done = true
	defer u.span.End()

	if len(u.files) == 0 {
		u.span.SetStatus(codes.Error, ErrNoFiles.Error())
		return nil, ErrNoFiles
	}

	m := &models.Manifest{
		ID:        u.id,
		CreatedAt: u.s.now().UTC(),
		Files:     u.files,
	}
	if err := u.s.manifests.CreateManifest(u.ctx, m); err != nil {
		u.rollback()
		u.span.RecordError(err)
		u.span.SetStatus(codes.Error, "write manifest")
		return nil, fmt.Errorf("%w: write manifest: %w", ErrStorage, err)
	}

	if u.s.thumbs != nil {
		for _, f := range u.files {
			if f.FileType() == models.FileTypeImage {
				u.s.thumbs.Enqueue(f)
			}
		}
	}

	u.span.SetAttributes(
		attribute.Int("upload.files", len(u.files)),
		attribute.Int64("upload.bytes", u.bytes),
	)
	u.s.logger.Info("upload created",
		zap.String("upload_id", u.id),
		zap.Int("files", len(u.files)),
		zap.Int64("bytes", u.bytes),
	)

	return &UploadResult{ID: u.id, Link: u.s.ShareLink(u.id)}, nil
}

// Abort deletes the blobs written so far. It is a no-op after Commit.
func (u *Upload) Abort() {
	if u.done {
		return
	}
	u.done = true
	u.rollback()
	u.span.SetStatus(codes.Error, "aborted")
	u.span.End()
}

func (u *Upload) rollback() {
	// The request context may already be canceled.
	ctx := context.WithoutCancel(u.ctx)
	for _, f := range u.files {
		if err := u.s.storage.Delete(ctx, f.StorageKey); err != nil && !errors.Is(err, storage.ErrNotFound) {
			u.s.logger.Warn("failed to delete blob of aborted upload",
				zap.String("upload_id", u.id),
				zap.String("key", f.StorageKey),
				zap.Error(err),
			)
		}
	}
	u.files = nil
	u.bytes = 0
}

// GetUpload returns the files of an upload in submission order.
func (s *UploadService) GetUpload(ctx context.Context, id string) ([]models.FileRecord, error) {
	ctx, span := s.tracer.Start(ctx, "UploadService.GetUpload",
		trace.WithAttributes(attribute.String("upload.id", id)))
	defer span.End()

	m, err := s.manifest(ctx, id)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return slices.Clone(m.Files), nil
}

// OpenFile returns the record and content of one file of an upload.
func (s *UploadService) OpenFile(ctx context.Context, id string, index int) (models.FileRecord, io.ReadCloser, error) {
	f, err := s.file(ctx, id, index)
	if err != nil {
		return models.FileRecord{}, nil, err
	}
	rc, err := s.open(ctx, f.StorageKey)
	if err != nil {
		return models.FileRecord{}, nil, err
	}
	return f, rc, nil
}

// OpenThumbnail returns the generated preview of an image file.
func (s *UploadService) OpenThumbnail(ctx context.Context, id string, index int) (io.ReadCloser, error) {
	f, err := s.file(ctx, id, index)
	if err != nil {
		return nil, err
	}
	if f.FileType() != models.FileTypeImage {
		return nil, ErrNotFound
	}
	return s.open(ctx, f.ThumbnailKey())
}

func (s *UploadService) manifest(ctx context.Context, id string) (*models.Manifest, error) {
	if !validUploadID(id) {
		return nil, ErrNotFound
	}
	m, err := s.manifests.GetManifest(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read manifest: %w", ErrStorage, err)
	}
	return m, nil
}

func (s *UploadService) file(ctx context.Context, id string, index int) (models.FileRecord, error) {
	m, err := s.manifest(ctx, id)
	if err != nil {
		return models.FileRecord{}, err
	}
	if index < 0 || index >= len(m.Files) {
		return models.FileRecord{}, ErrNotFound
	}
	return m.Files[index], nil
}

func (s *UploadService) open(ctx context.Context, key string) (io.ReadCloser, error) {
	rc, err := s.storage.Get(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", ErrStorage, key, err)
	}
	return rc, nil
}
