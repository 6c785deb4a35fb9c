// Package minio implements payload staging on a MinIO bucket.
package minio

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	cfg "github.com/feichai0017/attachment-extractor/config"
	"github.com/feichai0017/attachment-extractor/pkg/logger"
)

type MinioStorage struct {
	client     *minio.Client
	bucketName string
	logger     logger.Logger
}

// Store uploads a document payload under objectID.
func (m *MinioStorage) Store(ctx context.Context, reader io.Reader, objectID string) (string, error) {
	_, err := m.client.PutObject(ctx, m.bucketName, objectID, reader, -1, minio.PutObjectOptions{
		ContentType: "application/octet-stream",
	})
	if err != nil {
		m.logger.Error("Failed to stage payload to MinIO",
			logger.String("bucket", m.bucketName),
			logger.String("objectId", objectID),
			logger.Error(err),
		)
		return "", fmt.Errorf("failed to store payload: %w", err)
	}
	return objectID, nil
}

// Get streams a staged payload.
func (m *MinioStorage) Get(ctx context.Context, objectID string) (io.ReadCloser, error) {
	obj, err := m.client.GetObject(ctx, m.bucketName, objectID, minio.GetObjectOptions{})
	if err != nil {
		m.logger.Error("Failed to get payload from MinIO",
			logger.String("bucket", m.bucketName),
			logger.String("objectId", objectID),
			logger.Error(err),
		)
		return nil, fmt.Errorf("failed to get payload: %w", err)
	}
	return obj, nil
}

// Delete removes a staged payload.
func (m *MinioStorage) Delete(ctx context.Context, objectID string) error {
	if err := m.client.RemoveObject(ctx, m.bucketName, objectID, minio.RemoveObjectOptions{}); err != nil {
		m.logger.Error("Failed to delete payload from MinIO",
			logger.String("bucket", m.bucketName),
			logger.String("objectId", objectID),
			logger.Error(err),
		)
		return fmt.Errorf("failed to delete payload: %w", err)
	}
	return nil
}

// CleanupBefore removes payloads left behind by failed worker round-trips.
func (m *MinioStorage) CleanupBefore(ctx context.Context, threshold time.Time) error {
	objectCh := m.client.ListObjects(ctx, m.bucketName, minio.ListObjectsOptions{})
	for obj := range objectCh {
		if obj.Err != nil {
			m.logger.Error("Error listing staged payloads",
				logger.String("bucket", m.bucketName),
				logger.Error(obj.Err),
			)
			continue
		}
		if obj.LastModified.Before(threshold) {
			if err := m.Delete(ctx, obj.Key); err != nil {
				continue
			}
			m.logger.Info("Deleted abandoned payload",
				logger.String("objectId", obj.Key),
				logger.Time("lastModified", obj.LastModified),
			)
		}
	}
	return nil
}

func NewMinioStorage(log logger.Logger) (*MinioStorage, error) {
	minioConfig := cfg.GetMinioConfig()
	client, err := minio.New(minioConfig.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(minioConfig.AccessKey, minioConfig.SecretKey, ""),
		Secure: minioConfig.UseSSL,
		Region: minioConfig.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	exists, err := client.BucketExists(context.Background(), minioConfig.BucketName)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if !exists {
		err = client.MakeBucket(context.Background(), minioConfig.BucketName, minio.MakeBucketOptions{
			Region: minioConfig.Region,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return &MinioStorage{
		client:     client,
		bucketName: minioConfig.BucketName,
		logger:     log,
	}, nil
}

func GetClient(log logger.Logger) (*MinioStorage, error) {
	return NewMinioStorage(log)
}
