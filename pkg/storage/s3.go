package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/angelmondragon/licensedesk/pkg/config"
	"github.com/angelmondragon/licensedesk/pkg/logger"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type objectAPI interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error
}

// S3Store writes blobs to an S3-compatible bucket.
type S3Store struct {
	api     objectAPI
	bucket  string
	baseURL string
}

// NewS3 connects to the configured endpoint and checks the bucket exists.
func NewS3(ctx context.Context, cfg config.StorageConfig, logg *logger.Logger) (*S3Store, error) {
	client, err := minio.New(cfg.S3Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.S3AccessKey, cfg.S3SecretKey, ""),
		Secure: cfg.S3UseSSL,
		Region: cfg.S3Region,
	})
	if err != nil {
		return nil, fmt.Errorf("creating s3 client: %w", err)
	}

	store := &S3Store{
		api:     client,
		bucket:  cfg.S3Bucket,
		baseURL: publicBaseURL(cfg),
	}
	if err := store.Ping(ctx); err != nil {
		return nil, err
	}
	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{"endpoint": cfg.S3Endpoint, "bucket": cfg.S3Bucket}), "s3 blob store ready")
	}
	return store, nil
}

func publicBaseURL(cfg config.StorageConfig) string {
	if base := strings.TrimRight(cfg.S3PublicBaseURL, "/"); base != "" {
		return base
	}
	scheme := "http"
	if cfg.S3UseSSL {
		scheme = "https"
	}
	return scheme + "://" + cfg.S3Endpoint
}

func (s *S3Store) Put(ctx context.Context, obj Object) (string, error) {
	if !validKey(obj.Key) {
		return "", ErrInvalidKey
	}
	if obj.Body == nil {
		return "", fmt.Errorf("object body is required")
	}
	size := obj.Size
	if size <= 0 {
		size = -1
	}
	_, err := s.api.PutObject(ctx, s.bucket, obj.Key, obj.Body, size, minio.PutObjectOptions{
		ContentType: obj.ContentType,
	})
	if err != nil {
		return "", fmt.Errorf("put %s/%s: %w", s.bucket, obj.Key, err)
	}
	return s.baseURL + "/" + url.PathEscape(s.bucket) + "/" + url.PathEscape(obj.Key), nil
}

func (s *S3Store) Delete(ctx context.Context, key string) error {
	if !validKey(key) {
		return ErrInvalidKey
	}
	return s.api.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
}

func (s *S3Store) Ping(ctx context.Context) error {
	exists, err := s.api.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("checking bucket %s: %w", s.bucket, err)
	}
	if !exists {
		return fmt.Errorf("bucket %s does not exist", s.bucket)
	}
	return nil
}
