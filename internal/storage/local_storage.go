package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/spf13/afero"
)

// localStorage implements FileStorage on an afero filesystem rooted at the storage base
type localStorage struct {
	fs afero.Fs
}

// NewLocalStorage creates a FileStorage rooted at basePath on the OS filesystem
func NewLocalStorage(basePath string) (FileStorage, error) {
	osFs := afero.NewOsFs()
	// Ensure base directory exists
	if err := osFs.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &localStorage{fs: afero.NewBasePathFs(osFs, basePath)}, nil
}

// NewStorageWithFs creates a FileStorage over an existing afero filesystem
func NewStorageWithFs(fsys afero.Fs) FileStorage {
	return &localStorage{fs: fsys}
}

// Save writes content to filePath, creating parent directories.
// A partially written file is removed.
func (s *localStorage) Save(ctx context.Context, filePath string, content io.Reader, _ int64, _ string) error {
	clean, err := CleanPath(filePath)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := s.fs.MkdirAll(path.Dir(clean), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := s.fs.OpenFile(clean, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}

	if _, err := io.Copy(file, &ctxReader{ctx: ctx, r: content}); err != nil {
		file.Close()
		s.fs.Remove(clean)
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := file.Close(); err != nil {
		s.fs.Remove(clean)
		return fmt.Errorf("failed to close file: %w", err)
	}
	return nil
}

// Open retrieves a file by its path
func (s *localStorage) Open(ctx context.Context, filePath string) (io.ReadCloser, error) {
	clean, err := CleanPath(filePath)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	file, err := s.fs.Open(clean)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrFileNotFound
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return file, nil
}

// Move renames src to dst, creating the destination directory
func (s *localStorage) Move(ctx context.Context, src, dst string) error {
	cleanSrc, err := CleanPath(src)
	if err != nil {
		return err
	}
	cleanDst, err := CleanPath(dst)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if _, err := s.fs.Stat(cleanSrc); err != nil {
		if os.IsNotExist(err) {
			return ErrFileNotFound
		}
		return fmt.Errorf("failed to stat file: %w", err)
	}
	if err := s.fs.MkdirAll(path.Dir(cleanDst), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := s.fs.Rename(cleanSrc, cleanDst); err != nil {
		return fmt.Errorf("failed to move file: %w", err)
	}
	return nil
}

// Delete removes a file by its path
func (s *localStorage) Delete(ctx context.Context, filePath string) error {
	clean, err := CleanPath(filePath)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := s.fs.Remove(clean); err != nil {
		if os.IsNotExist(err) {
			// File already doesn't exist, not an error
			return nil
		}
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// Exists reports whether a file is present at filePath
func (s *localStorage) Exists(ctx context.Context, filePath string) (bool, error) {
	clean, err := CleanPath(filePath)
	if err != nil {
		return false, err
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	exists, err := afero.Exists(s.fs, clean)
	if err != nil {
		return false, fmt.Errorf("failed to stat file: %w", err)
	}
	return exists, nil
}

// Walk visits every regular file under prefix
func (s *localStorage) Walk(ctx context.Context, prefix string, fn WalkFunc) error {
	root, err := CleanPath(prefix)
	if err != nil {
		return err
	}

	err = afero.Walk(s.fs, root, func(p string, info fs.FileInfo, walkErr error) error {
		if walkErr != nil {
			if os.IsNotExist(walkErr) && p == root {
				return filepath.SkipDir
			}
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		return fn(FileInfo{
			Path:    filepath.ToSlash(p),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	})
	if errors.Is(err, filepath.SkipDir) {
		return nil
	}
	return err
}
