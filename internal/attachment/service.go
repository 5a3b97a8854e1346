// Package attachment implements upload intake, association to owners and
// the delete paths of the attachment lifecycle.
package attachment

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	apperrors "github.com/welldanyogia/webrana-cms-backend/internal/errors"
	"github.com/welldanyogia/webrana-cms-backend/internal/lock"
	"github.com/welldanyogia/webrana-cms-backend/internal/models"
	"github.com/welldanyogia/webrana-cms-backend/internal/observability"
	"github.com/welldanyogia/webrana-cms-backend/internal/repository"
	"github.com/welldanyogia/webrana-cms-backend/internal/storage"
	"github.com/welldanyogia/webrana-cms-backend/internal/validator"
	"go.opentelemetry.io/otel/attribute"
)

// Config holds configuration for the attachment service
type Config struct {
	MaxUploadSize int64
	ImageReencode bool
	JPEGQuality   int
	// LockTimeout bounds the wait for the per-owner primary lock
	LockTimeout time.Duration
}

// UploadRequest is one file handed to UploadTemp
type UploadRequest struct {
	Content      []byte
	FileName     string
	ContentType  string
	RelationType string
}

// AssociateOptions selects the flags applied while associating
type AssociateOptions struct {
	IsFeatured     bool
	IsContentImage bool
}

// Service defines the attachment lifecycle operations
type Service interface {
	// UploadTemp validates and stores a file as a temporary attachment
	UploadTemp(ctx context.Context, req UploadRequest) (*models.Attachment, error)

	// AssociateAttachments moves attachments into the owner's area.
	// It returns false only when none of ids resolved to a live row.
	AssociateAttachments(ctx context.Context, ids []uint, owner models.Owner, opts AssociateOptions) (bool, error)

	// GetByEntity lists an owner's attachments, primary first
	GetByEntity(ctx context.Context, owner models.Owner) ([]models.Attachment, error)

	GetByID(ctx context.Context, id uint) (*models.Attachment, error)

	// Open reads the file of an attachment by id
	Open(ctx context.Context, id uint) (*models.Attachment, io.ReadCloser, error)

	// OpenPath reads the file stored at a canonical relative path
	OpenPath(ctx context.Context, filePath string) (*models.Attachment, io.ReadCloser, error)

	// Delete removes the file and soft-deletes the row
	Delete(ctx context.Context, id uint) error

	// DeleteFiles deletes every attachment of an owner and returns how many were removed
	DeleteFiles(ctx context.Context, owner models.Owner) (int, error)

	FindTemporaryByFileName(ctx context.Context, fileName string) (*models.Attachment, error)
	FindByFilePath(ctx context.Context, filePath string) (*models.Attachment, error)

	Layout() Layout
}

// Option customizes a service
type Option func(*service)

// WithNotifier publishes lifecycle events to n
func WithNotifier(n Notifier) Option {
	return func(s *service) {
		if n != nil {
			s.notifier = n
		}
	}
}

// WithClock replaces time.Now, for tests
func WithClock(now func() time.Time) Option {
	return func(s *service) {
		s.now = now
	}
}

// service implements Service
type service struct {
	repo     repository.AttachmentRepository
	storage  storage.FileStorage
	locker   lock.Locker
	layout   Layout
	config   Config
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time
}

// NewService creates a new attachment Service
func NewService(
	repo repository.AttachmentRepository,
	fileStorage storage.FileStorage,
	locker lock.Locker,
	layout Layout,
	config Config,
	logger *slog.Logger,
	opts ...Option,
) Service {
	if config.JPEGQuality <= 0 || config.JPEGQuality > 100 {
		config.JPEGQuality = 85
	}
	if config.LockTimeout <= 0 {
		config.LockTimeout = 10 * time.Second
	}
	if layout.PlaceholderPrefix == "" {
		layout.PlaceholderPrefix = DefaultPlaceholderPrefix
	}

	s := &service{
		repo:     repo,
		storage:  fileStorage,
		locker:   locker,
		layout:   layout,
		config:   config,
		notifier: nopNotifier{},
		logger:   logger.With(slog.String("component", "attachments")),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *service) Layout() Layout {
	return s.layout
}

// UploadTemp writes the file first and the row second. A failed insert
// removes the file again; anything left behind is an orphan for the
// retention sweep.
func (s *service) UploadTemp(ctx context.Context, req UploadRequest) (*models.Attachment, error) {
	ctx, span := observability.StartSpan(ctx, "upload_temp",
		attribute.String("upload.file_name", req.FileName),
		attribute.Int("upload.size", len(req.Content)),
	)
	defer span.End()

	relationType := strings.TrimSpace(req.RelationType)
	if relationType == "" {
		relationType = "image"
	}
	if err := validator.ValidateRelationType(relationType); err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	upload, err := validator.ValidateUpload(req.FileName, req.ContentType, req.Content, s.config.MaxUploadSize)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	data, ext, contentType := req.Content, upload.Extension, upload.ContentType
	if s.config.ImageReencode && rasterTypes[contentType] {
		encoded, err := reencode(data, s.config.JPEGQuality)
		if err != nil {
			// Sniffing accepted the bytes, so store them as sent
			s.logger.Warn("image re-encode failed, storing original",
				slog.String("file_name", upload.FileName),
				slog.String("error", err.Error()))
		} else {
			data, ext, contentType = encoded.data, encoded.ext, encoded.contentType
		}
	}

	now := s.now()
	filePath := s.layout.TempPath(now, ext)
	if err := s.storage.Save(ctx, filePath, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		ioErr := apperrors.NewIOError("failed to store uploaded file", err)
		observability.RecordError(span, ioErr)
		return nil, ioErr
	}

	att := &models.Attachment{
		FilePath:         filePath,
		URL:              s.layout.URL(filePath),
		OriginalFileName: upload.FileName,
		FileSize:         int64(len(data)),
		ContentType:      contentType,
		RelationType:     relationType,
		IsTemporary:      true,
		State:            models.StateTemporary,
		CreatedDate:      now,
		ModifiedDate:     now,
	}
	if err := s.repo.Create(ctx, att); err != nil {
		if rmErr := s.storage.Delete(context.WithoutCancel(ctx), filePath); rmErr != nil {
			s.logger.Warn("failed to remove file of unrecorded upload",
				slog.String("file_path", filePath),
				slog.String("error", rmErr.Error()))
		}
		observability.RecordError(span, err)
		return nil, fmt.Errorf("failed to record attachment: %w", err)
	}

	span.SetAttributes(observability.AttachmentAttributes(att)...)
	s.logger.Info("temporary attachment uploaded",
		slog.Uint64("attachment_id", uint64(att.ID)),
		slog.String("file_path", att.FilePath),
		slog.Int64("size", att.FileSize))
	return att, nil
}

// GetByEntity lists an owner's attachments
func (s *service) GetByEntity(ctx context.Context, owner models.Owner) ([]models.Attachment, error) {
	if err := validateOwner(owner); err != nil {
		return nil, err
	}
	return s.repo.ListByOwner(ctx, owner)
}

// GetByID retrieves a live attachment
func (s *service) GetByID(ctx context.Context, id uint) (*models.Attachment, error) {
	att, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "attachment %d not found", id)
	}
	return att, nil
}

// FindTemporaryByFileName finds a temporary attachment by stored file name
func (s *service) FindTemporaryByFileName(ctx context.Context, fileName string) (*models.Attachment, error) {
	att, err := s.repo.FindTemporaryByFileName(ctx, fileName)
	if err != nil {
		return nil, notFound(err, "no temporary attachment named %q", fileName)
	}
	return att, nil
}

// FindByFilePath finds the live attachment stored at filePath
func (s *service) FindByFilePath(ctx context.Context, filePath string) (*models.Attachment, error) {
	att, err := s.repo.GetByFilePath(ctx, filePath)
	if err != nil {
		return nil, notFound(err, "no attachment at %q", filePath)
	}
	return att, nil
}

// Open reads the file of an attachment by id
func (s *service) Open(ctx context.Context, id uint) (*models.Attachment, io.ReadCloser, error) {
	att, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return s.open(ctx, att)
}

// OpenPath reads a file by canonical path. Only paths recorded on a live row are served.
func (s *service) OpenPath(ctx context.Context, filePath string) (*models.Attachment, io.ReadCloser, error) {
	clean, err := storage.CleanPath(filePath)
	if err != nil {
		appErr := apperrors.NewValidationError("invalid file path")
		appErr.Cause = err
		return nil, nil, appErr
	}
	att, err := s.FindByFilePath(ctx, clean)
	if err != nil {
		return nil, nil, err
	}
	return s.open(ctx, att)
}

func (s *service) open(ctx context.Context, att *models.Attachment) (*models.Attachment, io.ReadCloser, error) {
	rc, err := s.storage.Open(ctx, att.FilePath)
	if err != nil {
		if errors.Is(err, storage.ErrFileNotFound) {
			s.logger.Warn("attachment file missing",
				slog.Uint64("attachment_id", uint64(att.ID)),
				slog.String("file_path", att.FilePath))
			return nil, nil, apperrors.NewNotFoundError("file of attachment %d not found", att.ID)
		}
		return nil, nil, apperrors.NewIOError("failed to open attachment file", err)
	}
	return att, rc, nil
}

// Delete removes the file and soft-deletes the row
func (s *service) Delete(ctx context.Context, id uint) error {
	ctx, span := observability.StartSpan(ctx, "delete", attribute.Int64("attachment.id", int64(id)))
	defer span.End()

	att, err := s.GetByID(ctx, id)
	if err != nil {
		observability.RecordError(span, err)
		return err
	}
	if err := s.remove(ctx, att); err != nil {
		observability.RecordError(span, err)
		return err
	}
	return nil
}

// DeleteFiles deletes every attachment of owner. Failures do not stop the
// batch; they are joined into the returned error.
func (s *service) DeleteFiles(ctx context.Context, owner models.Owner) (int, error) {
	ctx, span := observability.StartSpan(ctx, "delete_files", observability.OwnerAttributes(owner)...)
	defer span.End()

	if err := validateOwner(owner); err != nil {
		return 0, err
	}
	attachments, err := s.repo.ListByOwner(ctx, owner)
	if err != nil {
		observability.RecordError(span, err)
		return 0, err
	}

	var errs []error
	deleted := 0
	for i := range attachments {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := s.remove(ctx, &attachments[i]); err != nil {
			if apperrors.IsNotFound(err) {
				continue
			}
			if errors.Is(err, errMoveInProgress) {
				s.logger.Warn("attachment is being moved, skipping delete",
					slog.Uint64("attachment_id", uint64(attachments[i].ID)),
					slog.String("owner", owner.Key()))
				continue
			}
			s.logger.Error("failed to delete attachment",
				slog.Uint64("attachment_id", uint64(attachments[i].ID)),
				slog.String("file_path", attachments[i].FilePath),
				slog.String("owner", owner.Key()),
				slog.String("error", err.Error()))
			errs = append(errs, err)
			continue
		}
		deleted++
	}

	s.logger.Info("owner attachments deleted",
		slog.String("owner", owner.Key()),
		slog.Int("deleted", deleted),
		slog.Int("failed", len(errs)))

	err = errors.Join(errs...)
	observability.RecordError(span, err)
	return deleted, err
}

// remove claims the row by moving it to the in-flight state, deletes the
// file, then soft-deletes the row. A failed file delete restores the state.
func (s *service) remove(ctx context.Context, att *models.Attachment) error {
	if att.State == models.StateMoving {
		return errInFlight(att.ID)
	}
	claimed, err := s.repo.CompareAndSwap(ctx, att.ID,
		repository.Guard{State: att.State},
		map[string]any{"state": models.StateMoving, "pending_path": ""})
	if err != nil {
		return err
	}
	if !claimed {
		if _, err := s.repo.GetByID(ctx, att.ID); errors.Is(err, repository.ErrNotFound) {
			return apperrors.NewNotFoundError("attachment %d not found", att.ID)
		}
		return apperrors.NewConflictError("attachment %d changed concurrently", att.ID)
	}

	if err := s.storage.Delete(ctx, att.FilePath); err != nil {
		if _, rbErr := s.repo.CompareAndSwap(context.WithoutCancel(ctx), att.ID,
			repository.Guard{State: models.StateMoving},
			map[string]any{"state": att.State}); rbErr != nil {
			s.logger.Error("failed to restore attachment state",
				slog.Uint64("attachment_id", uint64(att.ID)),
				slog.String("error", rbErr.Error()))
		}
		return apperrors.NewIOError("failed to delete attachment file", err)
	}

	if _, err := s.repo.SoftDeleteIf(context.WithoutCancel(ctx), att.ID,
		repository.Guard{State: models.StateMoving}); err != nil {
		return err
	}

	if owner, ok := att.Owner(); ok {
		s.notifier.Publish(Event{
			Type:         EventDeleted,
			Owner:        owner,
			AttachmentID: att.ID,
			FilePath:     att.FilePath,
			Timestamp:    s.now(),
		})
	}
	s.logger.Info("attachment deleted",
		slog.Uint64("attachment_id", uint64(att.ID)),
		slog.String("file_path", att.FilePath))
	return nil
}

// errMoveInProgress marks rows another request holds in the moving state
var errMoveInProgress = errors.New("move in progress, retry later")

func errInFlight(id uint) error {
	return &apperrors.AppError{
		Err:     apperrors.ErrConflict,
		Cause:   errMoveInProgress,
		Message: fmt.Sprintf("attachment %d", id),
		Code:    apperrors.CodeConflict,
	}
}

func validateOwner(owner models.Owner) error {
	if !owner.Type.Valid() {
		return apperrors.NewValidationError("unknown owner type %q", owner.Type)
	}
	if owner.ID == 0 {
		return apperrors.NewValidationError("owner id must be positive")
	}
	return nil
}

// notFound gives repository misses a message naming the missing thing
func notFound(err error, format string, args ...any) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NewNotFoundError(format, args...)
	}
	return err
}
