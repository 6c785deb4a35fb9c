// Package s3 implements payload staging on an S3 bucket.
package s3

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	cfg "github.com/feichai0017/attachment-extractor/config"
	"github.com/feichai0017/attachment-extractor/pkg/logger"
)

type S3Storage struct {
	client     *s3.Client
	bucketName string
	region     string
	logger     logger.Logger
}

// Store uploads a document payload under objectID.
func (s *S3Storage) Store(ctx context.Context, reader io.Reader, objectID string) (string, error) {
	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(objectID),
		Body:   reader,
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		s.logger.Error("Failed to stage payload to S3",
			logger.String("bucket", s.bucketName),
			logger.String("objectId", objectID),
			logger.Error(err),
		)
		return "", fmt.Errorf("failed to store payload: %w", err)
	}
	return objectID, nil
}

// Get streams a staged payload.
func (s *S3Storage) Get(ctx context.Context, objectID string) (io.ReadCloser, error) {
	input := &s3.GetObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(objectID),
	}
	result, err := s.client.GetObject(ctx, input)
	if err != nil {
		s.logger.Error("Failed to get payload from S3",
			logger.String("bucket", s.bucketName),
			logger.String("objectId", objectID),
			logger.Error(err),
		)
		return nil, fmt.Errorf("failed to get payload: %w", err)
	}
	return result.Body, nil
}

// Delete removes a staged payload.
func (s *S3Storage) Delete(ctx context.Context, objectID string) error {
	input := &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(objectID),
	}
	if _, err := s.client.DeleteObject(ctx, input); err != nil {
		s.logger.Error("Failed to delete payload from S3",
			logger.String("bucket", s.bucketName),
			logger.String("objectId", objectID),
			logger.Error(err),
		)
		return fmt.Errorf("failed to delete payload: %w", err)
	}
	return nil
}

// CleanupBefore removes payloads left behind by failed worker round-trips.
func (s *S3Storage) CleanupBefore(ctx context.Context, threshold time.Time) error {
	input := &s3.ListObjectsV2Input{Bucket: aws.String(s.bucketName)}
	paginator := s3.NewListObjectsV2Paginator(s.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			s.logger.Error("Failed to list staged payloads",
				logger.String("bucket", s.bucketName),
				logger.Error(err),
			)
			return fmt.Errorf("failed to list objects: %w", err)
		}
		for _, obj := range page.Contents {
			if obj.LastModified.Before(threshold) {
				if err := s.Delete(ctx, *obj.Key); err != nil {
					continue
				}
				s.logger.Info("Deleted abandoned payload",
					logger.String("objectId", *obj.Key),
					logger.Time("lastModified", *obj.LastModified),
				)
			}
		}
	}
	return nil
}

func NewS3Storage(log logger.Logger) (*S3Storage, error) {
	s3Config := cfg.GetS3Config()

	awsCfg, err := config.LoadDefaultConfig(context.TODO(),
		config.WithRegion(s3Config.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			s3Config.AccessKey,
			s3Config.SecretKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg)
	if _, err = client.HeadBucket(context.Background(), &s3.HeadBucketInput{
		Bucket: aws.String(s3Config.BucketName),
	}); err != nil {
		return nil, fmt.Errorf("failed to verify bucket existence: %w", err)
	}

	return &S3Storage{
		client:     client,
		bucketName: s3Config.BucketName,
		region:     s3Config.Region,
		logger:     log,
	}, nil
}

func GetClient(log logger.Logger) (*S3Storage, error) {
	return NewS3Storage(log)
}
