package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/teamvault/backend/internal/config"
	"github.com/teamvault/backend/pkg/logger"
)

// S3Client targets AWS S3 through the same wire client. With no static keys
// configured it falls back to IAM instance credentials.
type S3Client struct {
	client         *minio.Client
	bucket         string
	endpoint       string
	publicEndpoint string
	useSSL         bool
}

func NewS3Client(cfg config.StorageConfig) (*S3Client, error) {
	var creds *credentials.Credentials

	if cfg.AccessKey == "" {
		creds = credentials.NewIAM("")
	} else {
		creds = credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, "")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  creds,
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, err
	}

	return &S3Client{
		client:         client,
		bucket:         cfg.Bucket,
		endpoint:       cfg.Endpoint,
		publicEndpoint: cfg.PublicEndpoint,
		useSSL:         cfg.UseSSL,
	}, nil
}

func (s *S3Client) Upload(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) error {
	_, err := s.client.PutObject(ctx, s.bucket, objectName, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		logger.Error("storage_upload_failed", err, map[string]interface{}{
			"object_name":  objectName,
			"size":         size,
			"content_type": contentType,
			"bucket":       s.bucket,
		})
	}
	return err
}

func (s *S3Client) Download(ctx context.Context, objectName string) (*minio.Object, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, objectName, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	if _, err := obj.Stat(); err != nil {
		return nil, err
	}
	return obj, nil
}

func (s *S3Client) Remove(ctx context.Context, objectName string) error {
	if _, err := s.client.StatObject(ctx, s.bucket, objectName, minio.StatObjectOptions{}); err != nil {
		if resp := minio.ToErrorResponse(err); resp.Code == "NoSuchKey" || resp.Code == "NotFound" {
			return ErrObjectMissing
		}
		return err
	}

	err := s.client.RemoveObject(ctx, s.bucket, objectName, minio.RemoveObjectOptions{})
	if err != nil {
		logger.Error("storage_delete_failed", err, map[string]interface{}{
			"object_name": objectName,
			"bucket":      s.bucket,
		})
	}
	return err
}

func (s *S3Client) PresignedGetURL(ctx context.Context, objectName string, expiry time.Duration) (string, error) {
	urlValue, err := s.client.PresignedGetObject(ctx, s.bucket, objectName, expiry, nil)
	if err != nil {
		return "", err
	}
	return urlValue.String(), nil
}

func (s *S3Client) ObjectURL(objectName string) string {
	scheme := "http"
	if s.useSSL {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/%s/%s", scheme, s.publicEndpoint, s.bucket, objectName)
}

func (s *S3Client) Bucket() string {
	return s.bucket
}

func (s *S3Client) Endpoints() []string {
	return []string{s.endpoint, s.publicEndpoint}
}

func (s *S3Client) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed creating bucket %s: %w", s.bucket, err)
	}
	return nil
}
