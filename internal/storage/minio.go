package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/teamvault/backend/internal/config"
	"github.com/teamvault/backend/pkg/logger"
)

// ErrObjectMissing reports that a delete targeted a key the store no longer
// holds. Callers treat it as success: deleting something already absent is
// not an error.
var ErrObjectMissing = errors.New("object missing from store")

// ObjectRemover is the slice of the object store the batch deleter consumes.
// A missing target must surface as ErrObjectMissing.
type ObjectRemover interface {
	Remove(ctx context.Context, key string) error
}

type MinIOClient struct {
	client         *minio.Client
	bucket         string
	endpoint       string
	publicEndpoint string
	useSSL         bool
}

func NewMinIOClient(cfg config.StorageConfig) (*MinIOClient, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, err
	}

	return &MinIOClient{
		client:         client,
		bucket:         cfg.Bucket,
		endpoint:       cfg.Endpoint,
		publicEndpoint: cfg.PublicEndpoint,
		useSSL:         cfg.UseSSL,
	}, nil
}

func (m *MinIOClient) Upload(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) error {
	_, err := m.client.PutObject(ctx, m.bucket, objectName, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		logger.Error("storage_upload_failed", err, map[string]interface{}{
			"object_name":  objectName,
			"size":         size,
			"content_type": contentType,
			"bucket":       m.bucket,
		})
	} else {
		logger.Info("storage_upload_success", map[string]interface{}{
			"object_name":  objectName,
			"size":         size,
			"content_type": contentType,
			"bucket":       m.bucket,
		})
	}
	return err
}

func (m *MinIOClient) Download(ctx context.Context, objectName string) (*minio.Object, error) {
	obj, err := m.client.GetObject(ctx, m.bucket, objectName, minio.GetObjectOptions{})
	if err != nil {
		logger.Error("storage_download_failed", err, map[string]interface{}{
			"object_name": objectName,
			"bucket":      m.bucket,
		})
		return nil, err
	}
	if _, err := obj.Stat(); err != nil {
		logger.Error("storage_download_stat_failed", err, map[string]interface{}{
			"object_name": objectName,
			"bucket":      m.bucket,
		})
		return nil, err
	}
	return obj, nil
}

// Remove deletes a single object. MinIO acknowledges deletes of absent keys,
// so the key's existence is checked first to give callers the distinct
// missing-object signal the idempotence rules rely on.
func (m *MinIOClient) Remove(ctx context.Context, objectName string) error {
	if _, err := m.client.StatObject(ctx, m.bucket, objectName, minio.StatObjectOptions{}); err != nil {
		if resp := minio.ToErrorResponse(err); resp.Code == "NoSuchKey" || resp.Code == "NotFound" {
			return ErrObjectMissing
		}
		return err
	}

	err := m.client.RemoveObject(ctx, m.bucket, objectName, minio.RemoveObjectOptions{})
	if err != nil {
		logger.Error("storage_delete_failed", err, map[string]interface{}{
			"object_name": objectName,
			"bucket":      m.bucket,
		})
		return err
	}
	logger.Info("storage_delete_success", map[string]interface{}{
		"object_name": objectName,
		"bucket":      m.bucket,
	})
	return nil
}

func (m *MinIOClient) PresignedGetURL(ctx context.Context, objectName string, expiry time.Duration) (string, error) {
	urlValue, err := m.client.PresignedGetObject(ctx, m.bucket, objectName, expiry, nil)
	if err != nil {
		return "", err
	}
	return urlValue.String(), nil
}

// ObjectURL builds the path-style locator recorded on File rows at upload
// time. The key resolver maps it back to the object key at deletion time.
func (m *MinIOClient) ObjectURL(objectName string) string {
	scheme := "http"
	if m.useSSL {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/%s/%s", scheme, m.publicEndpoint, m.bucket, objectName)
}

func (m *MinIOClient) Bucket() string {
	return m.bucket
}

func (m *MinIOClient) Endpoints() []string {
	return []string{m.endpoint, m.publicEndpoint}
}

func (m *MinIOClient) EnsureBucket(ctx context.Context) error {
	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	if err := m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed creating bucket %s: %w", m.bucket, err)
	}
	return nil
}
