// Package storage moves document payloads between the facade and worker
// processes. Large byte buffers never travel through the task queue; they
// are staged in object storage and referenced by ID.
package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/feichai0017/attachment-extractor/pkg/logger"
	"github.com/feichai0017/attachment-extractor/pkg/storage/minio"
	"github.com/feichai0017/attachment-extractor/pkg/storage/s3"
)

// StorageType selects a backend.
type StorageType string

const (
	StorageTypeS3    StorageType = "s3"
	StorageTypeMinio StorageType = "minio"
)

// Storage stages payload bytes for workers.
type Storage interface {
	// Store writes the payload and returns its object ID.
	Store(ctx context.Context, reader io.Reader, objectID string) (string, error)
	// Get streams a stored payload.
	Get(ctx context.Context, objectID string) (io.ReadCloser, error)
	// Delete removes a payload once the worker round-trip completes.
	Delete(ctx context.Context, objectID string) error
	// CleanupBefore removes payloads abandoned by failed round-trips.
	CleanupBefore(ctx context.Context, threshold time.Time) error
}

// NewStorage is the backend factory.
func NewStorage(storageType StorageType, log logger.Logger) (Storage, error) {
	switch storageType {
	case StorageTypeS3:
		return s3.GetClient(log)
	case StorageTypeMinio:
		return minio.GetClient(log)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", storageType)
	}
}
