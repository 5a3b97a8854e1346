package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/welldanyogia/webrana-cms-backend/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// setPrimaryAttempts bounds the retry loop when a concurrent writer wins
// the primary unique index.
const setPrimaryAttempts = 3

// Guard is the precondition a conditional write re-checks at mutation time.
// Zero-valued fields are not checked. Soft-deleted rows never match.
type Guard struct {
	State     models.AttachmentState
	Temporary *bool
	Owner     *models.Owner
}

// TemporaryFilter selects expired temporary rows for the retention sweep
type TemporaryFilter struct {
	CreatedBefore        time.Time
	RelationTypes        []string
	ExcludeRelationTypes []string
	AfterID              uint
	Limit                int
}

// AttachmentRepository defines the interface for attachment data access
type AttachmentRepository interface {
	Create(ctx context.Context, attachment *models.Attachment) error
	GetByID(ctx context.Context, id uint) (*models.Attachment, error)
	GetByFilePath(ctx context.Context, filePath string) (*models.Attachment, error)
	FindTemporaryByFileName(ctx context.Context, fileName string) (*models.Attachment, error)
	ListByOwner(ctx context.Context, owner models.Owner) ([]models.Attachment, error)
	CountByOwner(ctx context.Context, owner models.Owner) (int64, error)
	ListExpiredTemporary(ctx context.Context, filter TemporaryFilter) ([]models.Attachment, error)
	ListStaleMoving(ctx context.Context, modifiedBefore time.Time, limit int) ([]models.Attachment, error)
	ExistingFilePaths(ctx context.Context, paths []string) (map[string]bool, error)
	CompareAndSwap(ctx context.Context, id uint, guard Guard, updates map[string]any) (bool, error)
	SoftDeleteIf(ctx context.Context, id uint, guard Guard) (bool, error)
	SetPrimary(ctx context.Context, owner models.Owner, id uint) error
}

// attachmentRepository implements AttachmentRepository using GORM
type attachmentRepository struct {
	db *gorm.DB
}

// NewAttachmentRepository creates a new AttachmentRepository instance
func NewAttachmentRepository(db *gorm.DB) AttachmentRepository {
	return &attachmentRepository{db: db}
}

// Bool returns a pointer to b, for Guard.Temporary
func Bool(b bool) *bool {
	return &b
}

func ownerScope(owner models.Owner) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("object_type = ? AND object_id = ?", string(owner.Type), owner.ID)
	}
}

func (g Guard) scope(db *gorm.DB) *gorm.DB {
	if g.State != "" {
		db = db.Where("state = ?", g.State)
	}
	if g.Temporary != nil {
		db = db.Where("is_temporary = ?", *g.Temporary)
	}
	if g.Owner != nil {
		db = db.Scopes(ownerScope(*g.Owner))
	}
	return db
}

// Create creates a new attachment record
func (r *attachmentRepository) Create(ctx context.Context, attachment *models.Attachment) error {
	result := r.db.WithContext(ctx).Create(attachment)
	if result.Error != nil {
		if isDuplicateKeyError(result.Error) {
			return ErrDuplicateEntry
		}
		return fmt.Errorf("failed to create attachment: %w", result.Error)
	}
	return nil
}

// GetByID retrieves a non-deleted attachment by its ID
func (r *attachmentRepository) GetByID(ctx context.Context, id uint) (*models.Attachment, error) {
	var attachment models.Attachment
	result := r.db.WithContext(ctx).First(&attachment, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get attachment by ID: %w", result.Error)
	}
	return &attachment, nil
}

// GetByFilePath retrieves the non-deleted attachment stored at filePath
func (r *attachmentRepository) GetByFilePath(ctx context.Context, filePath string) (*models.Attachment, error) {
	var attachment models.Attachment
	result := r.db.WithContext(ctx).Where("file_path = ?", filePath).First(&attachment)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get attachment by path: %w", result.Error)
	}
	return &attachment, nil
}

// FindTemporaryByFileName finds a temporary attachment by the base name of its stored file
func (r *attachmentRepository) FindTemporaryByFileName(ctx context.Context, fileName string) (*models.Attachment, error) {
	var attachment models.Attachment
	result := r.db.WithContext(ctx).
		Where("is_temporary = ? AND state = ?", true, models.StateTemporary).
		Where("file_path LIKE ?", "%/"+fileName).
		Order("id").
		First(&attachment)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find temporary attachment: %w", result.Error)
	}
	return &attachment, nil
}

// ListByOwner retrieves the attachments of an owner, primary first, then display order
func (r *attachmentRepository) ListByOwner(ctx context.Context, owner models.Owner) ([]models.Attachment, error) {
	var attachments []models.Attachment
	result := r.db.WithContext(ctx).
		Scopes(ownerScope(owner)).
		Order("is_primary DESC, order_index ASC, id ASC").
		Find(&attachments)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list attachments: %w", result.Error)
	}
	return attachments, nil
}

// CountByOwner counts the attachments of an owner
func (r *attachmentRepository) CountByOwner(ctx context.Context, owner models.Owner) (int64, error) {
	var count int64
	result := r.db.WithContext(ctx).Model(&models.Attachment{}).Scopes(ownerScope(owner)).Count(&count)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to count attachments: %w", result.Error)
	}
	return count, nil
}

// ListExpiredTemporary selects temporary rows created before the cutoff, ordered by ID.
// The result is a snapshot; callers must re-check through SoftDeleteIf before mutating.
func (r *attachmentRepository) ListExpiredTemporary(ctx context.Context, filter TemporaryFilter) ([]models.Attachment, error) {
	query := r.db.WithContext(ctx).
		Where("is_temporary = ? AND state = ?", true, models.StateTemporary).
		Where("created_date < ?", filter.CreatedBefore)
	if len(filter.RelationTypes) > 0 {
		query = query.Where("relation_type IN ?", filter.RelationTypes)
	}
	if len(filter.ExcludeRelationTypes) > 0 {
		query = query.Where("relation_type NOT IN ?", filter.ExcludeRelationTypes)
	}
	if filter.AfterID > 0 {
		query = query.Where("id > ?", filter.AfterID)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var attachments []models.Attachment
	if err := query.Order("id ASC").Find(&attachments).Error; err != nil {
		return nil, fmt.Errorf("failed to list expired attachments: %w", err)
	}
	return attachments, nil
}

// ListStaleMoving selects rows left in the moving state since before the cutoff
func (r *attachmentRepository) ListStaleMoving(ctx context.Context, modifiedBefore time.Time, limit int) ([]models.Attachment, error) {
	query := r.db.WithContext(ctx).
		Where("state = ? AND modified_date < ?", models.StateMoving, modifiedBefore).
		Order("id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var attachments []models.Attachment
	if err := query.Find(&attachments).Error; err != nil {
		return nil, fmt.Errorf("failed to list moving attachments: %w", err)
	}
	return attachments, nil
}

// ExistingFilePaths reports which of paths are referenced by a non-deleted row,
// either as the stored path or as the target of an in-flight move.
func (r *attachmentRepository) ExistingFilePaths(ctx context.Context, paths []string) (map[string]bool, error) {
	existing := make(map[string]bool, len(paths))
	if len(paths) == 0 {
		return existing, nil
	}

	var rows []models.Attachment
	result := r.db.WithContext(ctx).
		Select("file_path", "pending_path").
		Where("file_path IN ? OR pending_path IN ?", paths, paths).
		Find(&rows)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to check file paths: %w", result.Error)
	}

	for _, row := range rows {
		existing[row.FilePath] = true
		if row.PendingPath != "" {
			existing[row.PendingPath] = true
		}
	}
	return existing, nil
}

// CompareAndSwap applies updates to the row only if it still satisfies guard.
// It returns true when exactly that row was changed.
func (r *attachmentRepository) CompareAndSwap(ctx context.Context, id uint, guard Guard, updates map[string]any) (bool, error) {
	if len(updates) == 0 {
		return false, ErrInvalidInput
	}

	result := r.db.WithContext(ctx).
		Model(&models.Attachment{}).
		Where("id = ?", id).
		Scopes(guard.scope).
		Updates(updates)
	if result.Error != nil {
		if isDuplicateKeyError(result.Error) {
			return false, ErrDuplicateEntry
		}
		return false, fmt.Errorf("failed to update attachment: %w", result.Error)
	}
	return result.RowsAffected == 1, nil
}

// SoftDeleteIf soft-deletes the row only if it still satisfies guard.
// Deleted rows are excluded by the default scope, so deletion is never undone.
func (r *attachmentRepository) SoftDeleteIf(ctx context.Context, id uint, guard Guard) (bool, error) {
	result := r.db.WithContext(ctx).
		Where("id = ?", id).
		Scopes(guard.scope).
		Delete(&models.Attachment{})
	if result.Error != nil {
		return false, fmt.Errorf("failed to delete attachment: %w", result.Error)
	}
	return result.RowsAffected == 1, nil
}

// SetPrimary makes id the only primary attachment of owner.
// The owner group is row-locked for the duration of the clear-then-set, and
// the set is the same guarded update CompareAndSwap performs.
func (r *attachmentRepository) SetPrimary(ctx context.Context, owner models.Owner, id uint) error {
	var err error
	for attempt := 0; attempt < setPrimaryAttempts; attempt++ {
		err = r.setPrimaryOnce(ctx, owner, id)
		switch {
		case err == nil, errors.Is(err, ErrNotFound):
			return err
		case !errors.Is(err, ErrDuplicateEntry) && !isDuplicateKeyError(err):
			return fmt.Errorf("failed to set primary: %w", err)
		}
	}
	return ErrDuplicateEntry
}

func (r *attachmentRepository) setPrimaryOnce(ctx context.Context, owner models.Owner, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var locked []uint
		if err := tx.Model(&models.Attachment{}).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Scopes(ownerScope(owner)).
			Pluck("id", &locked).Error; err != nil {
			return fmt.Errorf("failed to lock owner group: %w", err)
		}

		if err := tx.Model(&models.Attachment{}).
			Scopes(ownerScope(owner)).
			Where("is_primary = ? AND id <> ?", true, id).
			Update("is_primary", false).Error; err != nil {
			return fmt.Errorf("failed to clear primary: %w", err)
		}

		txRepo := &attachmentRepository{db: tx}
		set, err := txRepo.CompareAndSwap(ctx, id,
			Guard{State: models.StateAssociated, Owner: &owner},
			map[string]any{"is_primary": true})
		if err != nil {
			return err
		}
		if !set {
			return ErrNotFound
		}
		return nil
	})
}
