package storage

import (
	"context"
	"io"
	"time"

	"github.com/minio/minio-go/v7"
)

// ObjectStore is what the upload/download handlers need from a storage
// backend. Both the MinIO and S3 clients satisfy it.
type ObjectStore interface {
	ObjectRemover
	Upload(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) error
	Download(ctx context.Context, objectName string) (*minio.Object, error)
	PresignedGetURL(ctx context.Context, objectName string, expiry time.Duration) (string, error)
	ObjectURL(objectName string) string
	Bucket() string
	Endpoints() []string
	EnsureBucket(ctx context.Context) error
}
