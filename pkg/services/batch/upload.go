package batch

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"receipt-scan/pkg/config"
)

// Uploader copies batch output to a MinIO bucket
type Uploader struct {
	client *minio.Client
	bucket string
}

// NewUploader creates a MinIO client from configuration
func NewUploader(cfg config.MinIOConfig) (*Uploader, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.Secure,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}
	return &Uploader{client: client, bucket: cfg.Bucket}, nil
}

// Upload puts the file at path into the bucket and returns its object name
func (u *Uploader) Upload(ctx context.Context, path string) (string, error) {
	if err := u.ensureBucket(ctx); err != nil {
		return "", err
	}
	name := objectName(path)
	_, err := u.client.FPutObject(ctx, u.bucket, name, path, minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return "", fmt.Errorf("failed to put object to MinIO: %w", err)
	}
	return name, nil
}

func (u *Uploader) ensureBucket(ctx context.Context) error {
	found, err := u.client.BucketExists(ctx, u.bucket)
	if err != nil {
		return fmt.Errorf("failed to check if bucket '%s' exists: %w", u.bucket, err)
	}
	if found {
		return nil
	}
	if err := u.client.MakeBucket(ctx, u.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed to create bucket '%s': %w", u.bucket, err)
	}
	return nil
}

// objectName keeps the file stem readable and adds a uuid so runs never collide
func objectName(path string) string {
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	return fmt.Sprintf("%s-%s%s", strings.TrimSuffix(base, ext), uuid.New().String(), ext)
}
