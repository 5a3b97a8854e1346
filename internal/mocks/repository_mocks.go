// Package mocks provides testify mocks of the service interfaces.
package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/welldanyogia/webrana-cms-backend/internal/models"
	"github.com/welldanyogia/webrana-cms-backend/internal/repository"
)

// MockAttachmentRepository implements repository.AttachmentRepository
type MockAttachmentRepository struct {
	mock.Mock
}

// Create creates a new attachment
func (m *MockAttachmentRepository) Create(ctx context.Context, attachment *models.Attachment) error {
	args := m.Called(ctx, attachment)
	return args.Error(0)
}

// GetByID retrieves an attachment by its ID
func (m *MockAttachmentRepository) GetByID(ctx context.Context, id uint) (*models.Attachment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Attachment), args.Error(1)
}

// GetByFilePath retrieves an attachment by its stored path
func (m *MockAttachmentRepository) GetByFilePath(ctx context.Context, filePath string) (*models.Attachment, error) {
	args := m.Called(ctx, filePath)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Attachment), args.Error(1)
}

// FindTemporaryByFileName finds a temporary attachment by file name
func (m *MockAttachmentRepository) FindTemporaryByFileName(ctx context.Context, fileName string) (*models.Attachment, error) {
	args := m.Called(ctx, fileName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Attachment), args.Error(1)
}

// ListByOwner lists the attachments of an owner
func (m *MockAttachmentRepository) ListByOwner(ctx context.Context, owner models.Owner) ([]models.Attachment, error) {
	args := m.Called(ctx, owner)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Attachment), args.Error(1)
}

// CountByOwner counts the attachments of an owner
func (m *MockAttachmentRepository) CountByOwner(ctx context.Context, owner models.Owner) (int64, error) {
	args := m.Called(ctx, owner)
	return args.Get(0).(int64), args.Error(1)
}

// ListExpiredTemporary lists expired temporary attachments
func (m *MockAttachmentRepository) ListExpiredTemporary(ctx context.Context, filter repository.TemporaryFilter) ([]models.Attachment, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Attachment), args.Error(1)
}

// ListStaleMoving lists attachments stuck in the moving state
func (m *MockAttachmentRepository) ListStaleMoving(ctx context.Context, modifiedBefore time.Time, limit int) ([]models.Attachment, error) {
	args := m.Called(ctx, modifiedBefore, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Attachment), args.Error(1)
}

// ExistingFilePaths reports which paths are referenced by a row
func (m *MockAttachmentRepository) ExistingFilePaths(ctx context.Context, paths []string) (map[string]bool, error) {
	args := m.Called(ctx, paths)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]bool), args.Error(1)
}

// CompareAndSwap applies a guarded update
func (m *MockAttachmentRepository) CompareAndSwap(ctx context.Context, id uint, guard repository.Guard, updates map[string]any) (bool, error) {
	args := m.Called(ctx, id, guard, updates)
	return args.Bool(0), args.Error(1)
}

// SoftDeleteIf applies a guarded soft delete
func (m *MockAttachmentRepository) SoftDeleteIf(ctx context.Context, id uint, guard repository.Guard) (bool, error) {
	args := m.Called(ctx, id, guard)
	return args.Bool(0), args.Error(1)
}

// SetPrimary sets the primary attachment of an owner
func (m *MockAttachmentRepository) SetPrimary(ctx context.Context, owner models.Owner, id uint) error {
	args := m.Called(ctx, owner, id)
	return args.Error(0)
}
