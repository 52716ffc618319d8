package worker

import (
	"context"
	"sync"
	"time"

	"github.com/PaulBabatuyi/WeShare/internal/models"
	"github.com/PaulBabatuyi/WeShare/internal/storage"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

type WorkerConfig struct {
	Storage     storage.Storage
	Logger      *zap.Logger
	MaxWidth    int
	Concurrency int64
	QueueSize   int
	JobTimeout  time.Duration
}

// ProcessingWorker generates thumbnails for uploaded images in the background.
type ProcessingWorker struct {
	config *WorkerConfig
	proc   *ImageProcessor
	jobs   chan models.FileRecord
	sem    *semaphore.Weighted

	mu      sync.RWMutex
	stopped bool
	wg      sync.WaitGroup
}

func NewProcessingWorker(config *WorkerConfig) *ProcessingWorker {
	if config.MaxWidth <= 0 {
		config.MaxWidth = 320
	}
	if config.Concurrency <= 0 {
		config.Concurrency = 2
	}
	if config.QueueSize <= 0 {
		config.QueueSize = 128
	}
	if config.JobTimeout == 0 {
		config.JobTimeout = 30 * time.Second
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	return &ProcessingWorker{
		config: config,
		proc:   NewImageProcessor(config.Storage, config.MaxWidth),
		jobs:   make(chan models.FileRecord, config.QueueSize),
		sem:    semaphore.NewWeighted(config.Concurrency),
	}
}

// Enqueue schedules f without blocking. It reports false when the queue is
// full or the worker has stopped.
func (pw *ProcessingWorker) Enqueue(f models.FileRecord) bool {
	pw.mu.RLock()
	defer pw.mu.RUnlock()
	if pw.stopped {
		return false
	}

	select {
	case pw.jobs <- f:
		return true
	default:
		pw.config.Logger.Warn("thumbnail queue full, skipping", zap.String("key", f.StorageKey))
		return false
	}
}

// Start runs the dispatch loop until ctx is done or Stop is called.
func (pw *ProcessingWorker) Start(ctx context.Context) {
	pw.wg.Add(1)
	go pw.run(ctx)
	pw.config.Logger.Info("thumbnail worker started", zap.Int64("concurrency", pw.config.Concurrency))
}

// Stop drains queued jobs and waits for running ones.
func (pw *ProcessingWorker) Stop() {
	pw.mu.Lock()
	if pw.stopped {
		pw.mu.Unlock()
		return
	}
	pw.stopped = true
	close(pw.jobs)
	pw.mu.Unlock()

	pw.wg.Wait()
	pw.config.Logger.Info("thumbnail worker stopped")
}

func (pw *ProcessingWorker) run(ctx context.Context) {
	defer pw.wg.Done()

	for f := range pw.jobs {
		// Acquire only fails once ctx is done; remaining jobs are dropped.
		if err := pw.sem.Acquire(ctx, 1); err != nil {
			continue
		}
		pw.wg.Add(1)
		go func(f models.FileRecord) {
			defer pw.wg.Done()
			defer pw.sem.Release(1)
			pw.process(ctx, f)
		}(f)
	}
}

func (pw *ProcessingWorker) process(ctx context.Context, f models.FileRecord) {
	ctx, cancel := context.WithTimeout(ctx, pw.config.JobTimeout)
	defer cancel()

	width, height, err := pw.proc.ProcessImage(ctx, f)
	if err != nil {
		pw.config.Logger.Warn("thumbnail generation failed",
			zap.String("key", f.StorageKey),
			zap.Error(err),
		)
		return
	}

	pw.config.Logger.Debug("thumbnail generated",
		zap.String("key", f.StorageKey),
		zap.Int("width", width),
		zap.Int("height", height),
	)
}
