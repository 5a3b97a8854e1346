package storage

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
	"time"
)

// Storage errors
var (
	ErrPathTraversal = errors.New("path traversal detected")
	ErrFileNotFound  = errors.New("file not found")
)

// FileInfo describes a stored file
type FileInfo struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// WalkFunc is called for every file under a walked prefix
type WalkFunc func(info FileInfo) error

// FileStorage defines the interface for file storage operations.
// Paths are slash-separated and relative to the storage root.
type FileStorage interface {
	Save(ctx context.Context, filePath string, content io.Reader, size int64, contentType string) error
	Open(ctx context.Context, filePath string) (io.ReadCloser, error)
	Move(ctx context.Context, src, dst string) error
	// Delete removes a file; a missing file is not an error
	Delete(ctx context.Context, filePath string) error
	Exists(ctx context.Context, filePath string) (bool, error)
	// Walk visits every file under prefix; a missing prefix visits nothing
	Walk(ctx context.Context, prefix string, fn WalkFunc) error
}

// CleanPath normalizes a relative storage path and rejects anything that
// could escape the storage root.
func CleanPath(filePath string) (string, error) {
	if filePath == "" {
		return "", ErrPathTraversal
	}
	slashed := strings.ReplaceAll(filePath, "\\", "/")

	// Prevent absolute paths, including drive letters
	if strings.HasPrefix(slashed, "/") || (len(slashed) > 1 && slashed[1] == ':') {
		return "", ErrPathTraversal
	}

	// Prevent path traversal
	for _, part := range strings.Split(slashed, "/") {
		if part == ".." {
			return "", ErrPathTraversal
		}
	}

	clean := path.Clean(slashed)
	if clean == "." {
		return "", ErrPathTraversal
	}
	return clean, nil
}

// ctxReader stops a copy once the context is done
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (r *ctxReader) Read(p []byte) (int, error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	return r.r.Read(p)
}
