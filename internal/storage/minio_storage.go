package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinIOConfig holds object store connection settings
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
}

// minioStorage implements FileStorage on an S3-compatible bucket
type minioStorage struct {
	client *minio.Client
	bucket string
	logger *slog.Logger
}

// NewMinIOStorage connects to the object store and ensures the bucket exists
func NewMinIOStorage(ctx context.Context, cfg MinIOConfig, logger *slog.Logger) (FileStorage, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	s := &minioStorage{client: client, bucket: cfg.Bucket, logger: logger}
	if err := s.ensureBucket(ctx, cfg.Region); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *minioStorage) ensureBucket(ctx context.Context, region string) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if exists {
		return nil
	}

	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: region}); err != nil {
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	s.logger.Info("bucket created successfully", "bucket", s.bucket)
	return nil
}

func isNoSuchKey(err error) bool {
	code := minio.ToErrorResponse(err).Code
	return code == "NoSuchKey" || code == "NotFound"
}

// Save uploads content as an object
func (s *minioStorage) Save(ctx context.Context, filePath string, content io.Reader, size int64, contentType string) error {
	key, err := CleanPath(filePath)
	if err != nil {
		return err
	}

	if _, err := s.client.PutObject(ctx, s.bucket, key, content, size, minio.PutObjectOptions{
		ContentType: contentType,
	}); err != nil {
		return fmt.Errorf("failed to upload file: %w", err)
	}
	return nil
}

// Open downloads an object
func (s *minioStorage) Open(ctx context.Context, filePath string) (io.ReadCloser, error) {
	key, err := CleanPath(filePath)
	if err != nil {
		return nil, err
	}

	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to download file: %w", err)
	}
	// GetObject is lazy; Stat surfaces a missing key
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		if isNoSuchKey(err) {
			return nil, ErrFileNotFound
		}
		return nil, fmt.Errorf("failed to download file: %w", err)
	}
	return obj, nil
}

// Move copies src to dst server-side and removes src
func (s *minioStorage) Move(ctx context.Context, src, dst string) error {
	srcKey, err := CleanPath(src)
	if err != nil {
		return err
	}
	dstKey, err := CleanPath(dst)
	if err != nil {
		return err
	}

	_, err = s.client.CopyObject(ctx,
		minio.CopyDestOptions{Bucket: s.bucket, Object: dstKey},
		minio.CopySrcOptions{Bucket: s.bucket, Object: srcKey},
	)
	if err != nil {
		if isNoSuchKey(err) {
			return ErrFileNotFound
		}
		return fmt.Errorf("failed to copy file: %w", err)
	}

	if err := s.client.RemoveObject(ctx, s.bucket, srcKey, minio.RemoveObjectOptions{}); err != nil {
		// The copy is in place; the source becomes an orphan for the temp sweep
		s.logger.Warn("failed to remove moved source object", "file_path", srcKey, "error", err)
	}
	return nil
}

// Delete removes an object; S3 treats a missing key as success
func (s *minioStorage) Delete(ctx context.Context, filePath string) error {
	key, err := CleanPath(filePath)
	if err != nil {
		return err
	}

	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		if isNoSuchKey(err) {
			return nil
		}
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// Exists checks whether an object is present
func (s *minioStorage) Exists(ctx context.Context, filePath string) (bool, error) {
	key, err := CleanPath(filePath)
	if err != nil {
		return false, err
	}

	if _, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{}); err != nil {
		if isNoSuchKey(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check file existence: %w", err)
	}
	return true, nil
}

// Walk lists every object under prefix
func (s *minioStorage) Walk(ctx context.Context, prefix string, fn WalkFunc) error {
	root, err := CleanPath(prefix)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	for object := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    strings.TrimSuffix(root, "/") + "/",
		Recursive: true,
	}) {
		if object.Err != nil {
			return fmt.Errorf("failed to list files: %w", object.Err)
		}
		if strings.HasSuffix(object.Key, "/") {
			continue
		}
		if err := fn(FileInfo{
			Path:    object.Key,
			Size:    object.Size,
			ModTime: object.LastModified,
		}); err != nil {
			return err
		}
	}
	return ctx.Err()
}
