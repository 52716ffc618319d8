// Package app wires configuration, storage, services and servers together.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/PaulBabatuyi/WeShare/internal/config"
	"github.com/PaulBabatuyi/WeShare/internal/database"
	"github.com/PaulBabatuyi/WeShare/internal/notify"
	"github.com/PaulBabatuyi/WeShare/internal/observability"
	"github.com/PaulBabatuyi/WeShare/internal/probe"
	"github.com/PaulBabatuyi/WeShare/internal/server"
	"github.com/PaulBabatuyi/WeShare/internal/service"
	"github.com/PaulBabatuyi/WeShare/internal/storage"
	"github.com/PaulBabatuyi/WeShare/internal/worker"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/afero"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 15 * time.Second

type App struct {
	cfg     *config.Config
	logger  *zap.Logger
	api     *http.Server
	metrics *http.Server
	probe   *probe.Server
	worker  *worker.ProcessingWorker
	tracer  *trace.TracerProvider
	closers []func() error
}

// New builds every component from cfg. Close must be called if Run is not.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	a := &App{cfg: cfg, logger: logger}

	if cfg.TracingEnabled {
		tp, err := observability.InitTracerProvider(ctx, logger)
		if err != nil {
			return nil, fmt.Errorf("init tracing: %w", err)
		}
		a.tracer = tp
	}

	mc, err := observability.InitMetrics(prometheus.DefaultRegisterer, prometheus.DefaultGatherer)
	if err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	blobs, err := a.blobStorage(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	manifests, err := a.manifestStore(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	opts := []service.Option{service.WithLogger(logger)}
	if cfg.ThumbnailWorkers > 0 {
		a.worker = worker.NewProcessingWorker(&worker.WorkerConfig{
			Storage:     blobs,
			Logger:      logger,
			MaxWidth:    cfg.ThumbnailWidth,
			Concurrency: int64(cfg.ThumbnailWorkers),
		})
		opts = append(opts, service.WithThumbnailer(a.worker))
	}
	uploads := service.NewUploadService(blobs, manifests, cfg.FrontendURL, opts...)

	sender, err := notify.NewSMTPSender(notify.SMTPConfig{
		Host:     cfg.EmailHost,
		Port:     cfg.EmailPort,
		Username: cfg.EmailUser,
		Password: cfg.EmailPass,
		Timeout:  cfg.EmailTimeout(),
	})
	if err != nil {
		a.Close()
		return nil, err
	}

	handlers := server.NewHandlers(server.HandlersConfig{
		Uploads:        uploads,
		Notifier:       notify.NewNotifier(sender, cfg.EmailFrom, logger),
		Observer:       mc,
		Logger:         logger,
		APIBaseURL:     cfg.APIBaseURL,
		MaxUploadBytes: cfg.MaxUploadBytes,
	})

	a.api = &http.Server{
		Addr: cfg.Addr(),
		Handler: server.NewRouter(handlers, server.RouterConfig{
			Logger:         logger,
			Metrics:        mc,
			AllowedOrigins: cfg.CORSAllowedOrigins(),
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	a.metrics = observability.NewMetricsServer(":"+cfg.MetricsPort, mc)
	a.probe = probe.NewServer(logger, mc.GetServerMetrics())

	return a, nil
}

func (a *App) blobStorage(ctx context.Context) (storage.Storage, error) {
	switch a.cfg.StorageBackend {
	case config.BackendS3:
		s, err := storage.NewS3Storage(ctx, storage.S3Config{
			AccessKey:    a.cfg.S3AccessKey,
			SecretKey:    a.cfg.S3SecretKey,
			Bucket:       a.cfg.S3Bucket,
			Region:       a.cfg.S3Region,
			BaseEndpoint: a.cfg.S3BaseEndpoint,
		})
		if err != nil {
			return nil, fmt.Errorf("init s3 storage: %w", err)
		}
		a.logger.Info("using s3 blob storage", zap.String("bucket", a.cfg.S3Bucket))
		return s, nil
	default:
		s, err := storage.NewFilesystemStorage(afero.NewOsFs(), a.cfg.UploadDir)
		if err != nil {
			return nil, fmt.Errorf("init filesystem storage: %w", err)
		}
		a.logger.Info("using filesystem blob storage", zap.String("dir", a.cfg.UploadDir))
		return s, nil
	}
}

func (a *App) manifestStore(ctx context.Context) (database.ManifestStore, error) {
	switch a.cfg.ManifestBackend {
	case config.BackendPostgres:
		db, err := database.NewPostgresDB(ctx, a.cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("init postgres: %w", err)
		}
		a.closers = append(a.closers, db.Close)
		a.logger.Info("using postgres manifest store")
		return db, nil
	default:
		dir := filepath.Join(a.cfg.UploadDir, "manifests")
		s, err := database.NewDiskStore(afero.NewOsFs(), dir)
		if err != nil {
			return nil, fmt.Errorf("init manifest dir: %w", err)
		}
		a.logger.Info("using disk manifest store", zap.String("dir", dir))
		return s, nil
	}
}

// Run serves the API, metrics and health probe until ctx is canceled or one
// of them fails, then shuts everything down.
func (a *App) Run(ctx context.Context) error {
	defer a.Close()

	if a.worker != nil {
		a.worker.Start(ctx)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info("api listening", zap.String("addr", a.api.Addr))
		if err := a.api.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("api server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		a.logger.Info("metrics listening", zap.String("addr", a.metrics.Addr))
		if err := a.metrics.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		if err := a.probe.Run(gctx, a.cfg.ProbeAddr); err != nil {
			return fmt.Errorf("health probe: %w", err)
		}
		return nil
	})

	a.probe.SetServing(true)

	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("shutting down")
		a.probe.SetServing(false)

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		return errors.Join(
			a.api.Shutdown(shutdownCtx),
			a.metrics.Shutdown(shutdownCtx),
		)
	})

	return g.Wait()
}

// Close stops background work and releases stores. It is safe to call twice.
func (a *App) Close() {
	if a.worker != nil {
		a.worker.Stop()
	}

	for _, c := range a.closers {
		if err := c(); err != nil {
			a.logger.Warn("close failed", zap.Error(err))
		}
	}
	a.closers = nil

	if a.tracer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		observability.ShutdownTracerProvider(ctx, a.tracer, a.logger)
		a.tracer = nil
	}
}
