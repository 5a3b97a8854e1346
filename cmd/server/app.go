package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"github.com/welldanyogia/webrana-cms-backend/internal/api/handlers"
	"github.com/welldanyogia/webrana-cms-backend/internal/attachment"
	"github.com/welldanyogia/webrana-cms-backend/internal/config"
	"github.com/welldanyogia/webrana-cms-backend/internal/content"
	"github.com/welldanyogia/webrana-cms-backend/internal/database"
	"github.com/welldanyogia/webrana-cms-backend/internal/events"
	"github.com/welldanyogia/webrana-cms-backend/internal/lock"
	"github.com/welldanyogia/webrana-cms-backend/internal/logger"
	"github.com/welldanyogia/webrana-cms-backend/internal/repository"
	"github.com/welldanyogia/webrana-cms-backend/internal/retention"
	"github.com/welldanyogia/webrana-cms-backend/internal/storage"
	"gorm.io/gorm"
)

// app holds the wired dependencies shared by the serve and sweep commands
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	security *logger.SecurityLogger

	db        *gorm.DB
	redis     *redis.Client
	store     storage.FileStorage
	repo      repository.AttachmentRepository
	hub       *events.Hub
	service   attachment.Service
	rewriter  *content.Rewriter
	scheduler *retention.Scheduler
}

func newApp(ctx context.Context, cfg *config.Config, log *slog.Logger) (*app, error) {
	a := &app{
		cfg:      cfg,
		logger:   log,
		security: logger.NewSecurityLogger(log),
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	a.db = db

	if a.store, err = newStorage(ctx, cfg, log); err != nil {
		a.Close()
		return nil, err
	}

	var locker lock.Locker = lock.NewMemoryLocker()
	if cfg.RedisAddr != "" {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := a.redis.Ping(ctx).Err(); err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		locker = lock.NewRedisLocker(a.redis, lock.RedisConfig{Prefix: "webrana-cms:lock:"}, log)
	}

	a.repo = repository.NewAttachmentRepository(db)
	a.hub = events.NewHub(log)
	a.service = attachment.NewService(
		a.repo,
		a.store,
		locker,
		attachment.NewLayout(cfg.PublicURLPrefix, cfg.TempDir),
		attachment.Config{
			MaxUploadSize: cfg.MaxUploadSize,
			ImageReencode: cfg.ImageReencode,
			JPEGQuality:   cfg.JPEGQuality,
			LockTimeout:   cfg.OwnerLockTimeout,
		},
		log,
		attachment.WithNotifier(a.hub),
	)
	a.rewriter = content.NewRewriter(a.service, content.Config{MaxContentSize: cfg.MaxContentSize}, log)
	a.scheduler = retention.NewScheduler(a.repo, a.store, retention.Config{
		Interval:          cfg.CleanupInterval,
		RunAt:             cfg.CleanupRunAt,
		TempRetention:     cfg.TempRetention,
		EditorRetention:   cfg.EditorRetention,
		OrphanGracePeriod: cfg.OrphanGracePeriod,
		MovingStaleAfter:  cfg.MovingStaleAfter,
		BatchSize:         cfg.CleanupBatchSize,
		SweepTimeout:      cfg.CleanupTimeout,
		TempDir:           cfg.TempDir,
	}, log)

	return a, nil
}

func newStorage(ctx context.Context, cfg *config.Config, log *slog.Logger) (storage.FileStorage, error) {
	switch cfg.StorageDriver {
	case config.StorageMinIO:
		return storage.NewMinIOStorage(ctx, storage.MinIOConfig{
			Endpoint:  cfg.MinIOEndpoint,
			AccessKey: cfg.MinIOAccessKey,
			SecretKey: cfg.MinIOSecretKey,
			Bucket:    cfg.MinIOBucket,
			Region:    cfg.MinIORegion,
			UseSSL:    cfg.MinIOUseSSL,
		}, log)
	default:
		return storage.NewLocalStorage(cfg.AttachmentStoragePath)
	}
}

// healthChecks returns the dependency checks reported by /health
func (a *app) healthChecks() map[string]handlers.Checker {
	checks := map[string]handlers.Checker{
		"storage": func(ctx context.Context) error {
			_, err := a.store.Exists(ctx, ".healthcheck")
			return err
		},
	}
	if a.redis != nil {
		checks["redis"] = func(ctx context.Context) error {
			return a.redis.Ping(ctx).Err()
		}
	}
	return checks
}

// Close releases the database and Redis connections
func (a *app) Close() error {
	var errs []error
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	if a.db != nil {
		errs = append(errs, database.Close(a.db))
	}
	return errors.Join(errs...)
}
