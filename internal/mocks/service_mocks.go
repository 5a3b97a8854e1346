package mocks

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"
	"github.com/welldanyogia/webrana-cms-backend/internal/attachment"
	"github.com/welldanyogia/webrana-cms-backend/internal/models"
)

// MockAttachmentService implements attachment.Service
type MockAttachmentService struct {
	mock.Mock
}

// UploadTemp stores a temporary attachment
func (m *MockAttachmentService) UploadTemp(ctx context.Context, req attachment.UploadRequest) (*models.Attachment, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Attachment), args.Error(1)
}

// AssociateAttachments associates attachments to an owner
func (m *MockAttachmentService) AssociateAttachments(ctx context.Context, ids []uint, owner models.Owner, opts attachment.AssociateOptions) (bool, error) {
	args := m.Called(ctx, ids, owner, opts)
	return args.Bool(0), args.Error(1)
}

// GetByEntity lists an owner's attachments
func (m *MockAttachmentService) GetByEntity(ctx context.Context, owner models.Owner) ([]models.Attachment, error) {
	args := m.Called(ctx, owner)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Attachment), args.Error(1)
}

// GetByID retrieves an attachment
func (m *MockAttachmentService) GetByID(ctx context.Context, id uint) (*models.Attachment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Attachment), args.Error(1)
}

// Open reads an attachment's file by id
func (m *MockAttachmentService) Open(ctx context.Context, id uint) (*models.Attachment, io.ReadCloser, error) {
	args := m.Called(ctx, id)
	return readResult(args)
}

// OpenPath reads an attachment's file by path
func (m *MockAttachmentService) OpenPath(ctx context.Context, filePath string) (*models.Attachment, io.ReadCloser, error) {
	args := m.Called(ctx, filePath)
	return readResult(args)
}

func readResult(args mock.Arguments) (*models.Attachment, io.ReadCloser, error) {
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(*models.Attachment), args.Get(1).(io.ReadCloser), args.Error(2)
}

// Delete deletes an attachment
func (m *MockAttachmentService) Delete(ctx context.Context, id uint) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// DeleteFiles deletes an owner's attachments
func (m *MockAttachmentService) DeleteFiles(ctx context.Context, owner models.Owner) (int, error) {
	args := m.Called(ctx, owner)
	return args.Int(0), args.Error(1)
}

// FindTemporaryByFileName finds a temporary attachment by file name
func (m *MockAttachmentService) FindTemporaryByFileName(ctx context.Context, fileName string) (*models.Attachment, error) {
	args := m.Called(ctx, fileName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Attachment), args.Error(1)
}

// FindByFilePath finds an attachment by path
func (m *MockAttachmentService) FindByFilePath(ctx context.Context, filePath string) (*models.Attachment, error) {
	args := m.Called(ctx, filePath)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Attachment), args.Error(1)
}

// Layout returns the storage layout
func (m *MockAttachmentService) Layout() attachment.Layout {
	args := m.Called()
	return args.Get(0).(attachment.Layout)
}

// MockContentProcessor implements content.Processor
type MockContentProcessor struct {
	mock.Mock
}

// ProcessContent rewrites a body for an owner
func (m *MockContentProcessor) ProcessContent(ctx context.Context, body string, owner models.Owner) (string, []models.Attachment, error) {
	args := m.Called(ctx, body, owner)
	var entries []models.Attachment
	if args.Get(1) != nil {
		entries = args.Get(1).([]models.Attachment)
	}
	return args.String(0), entries, args.Error(2)
}

// ReconstructContent turns canonical references into placeholders
func (m *MockContentProcessor) ReconstructContent(ctx context.Context, body string) (string, error) {
	args := m.Called(ctx, body)
	return args.String(0), args.Error(1)
}

// ExtractAttachmentIDs returns the marker ids of a body
func (m *MockContentProcessor) ExtractAttachmentIDs(body string) []uint {
	args := m.Called(body)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]uint)
}

// DeleteFiles deletes an owner's attachments
func (m *MockContentProcessor) DeleteFiles(ctx context.Context, owner models.Owner) (int, error) {
	args := m.Called(ctx, owner)
	return args.Int(0), args.Error(1)
}
