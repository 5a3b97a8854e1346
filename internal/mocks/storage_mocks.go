package mocks

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"
	"github.com/welldanyogia/webrana-cms-backend/internal/storage"
)

// MockFileStorage implements storage.FileStorage
type MockFileStorage struct {
	mock.Mock
}

// Save stores content at filePath
func (m *MockFileStorage) Save(ctx context.Context, filePath string, content io.Reader, size int64, contentType string) error {
	args := m.Called(ctx, filePath, content, size, contentType)
	return args.Error(0)
}

// Open reads a stored file
func (m *MockFileStorage) Open(ctx context.Context, filePath string) (io.ReadCloser, error) {
	args := m.Called(ctx, filePath)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(io.ReadCloser), args.Error(1)
}

// Move renames a stored file
func (m *MockFileStorage) Move(ctx context.Context, src, dst string) error {
	args := m.Called(ctx, src, dst)
	return args.Error(0)
}

// Delete removes a stored file
func (m *MockFileStorage) Delete(ctx context.Context, filePath string) error {
	args := m.Called(ctx, filePath)
	return args.Error(0)
}

// Exists checks whether a file exists
func (m *MockFileStorage) Exists(ctx context.Context, filePath string) (bool, error) {
	args := m.Called(ctx, filePath)
	return args.Bool(0), args.Error(1)
}

// Walk visits stored files under prefix
func (m *MockFileStorage) Walk(ctx context.Context, prefix string, fn storage.WalkFunc) error {
	args := m.Called(ctx, prefix, fn)
	return args.Error(0)
}
