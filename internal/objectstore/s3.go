package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/book-expert/voicebatch/internal/core"
)

const contentTypeWAV = "audio/wav"

// S3ObjectStore stores objects in an S3 bucket under an optional key prefix.
type S3ObjectStore struct {
	client s3iface.S3API
	bucket string
	prefix string
}

// NewS3 wraps an existing S3 client.
func NewS3(client s3iface.S3API, bucket, prefix string) *S3ObjectStore {
	return &S3ObjectStore{client: client, bucket: bucket, prefix: prefix}
}

// NewS3ForRegion creates a client from the default credential chain.
func NewS3ForRegion(region, bucket, prefix string) (*S3ObjectStore, error) {
	sess, err := session.NewSession(&aws.Config{Region: aws.String(region)})
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	return NewS3(s3.New(sess), bucket, prefix), nil
}

func (s *S3ObjectStore) objectKey(key string) string {
	if s.prefix == "" {
		return key
	}

	return path.Join(s.prefix, key)
}

// Upload stores data under the prefixed key.
func (s *S3ObjectStore) Upload(ctx context.Context, key string, data []byte) error {
	objectKey := s.objectKey(key)

	_, err := s.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(objectKey),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentTypeWAV),
	})
	if err != nil {
		return fmt.Errorf("failed to upload object '%s' to bucket '%s': %w", objectKey, s.bucket, err)
	}

	return nil
}

// Download fetches the prefixed key. A missing key matches core.ErrNotFound.
func (s *S3ObjectStore) Download(ctx context.Context, key string) ([]byte, error) {
	objectKey := s.objectKey(key)

	output, err := s.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		var awsErr awserr.Error
		if errors.As(err, &awsErr) && awsErr.Code() == s3.ErrCodeNoSuchKey {
			return nil, fmt.Errorf("%w: object '%s' in bucket '%s'", core.ErrNotFound, objectKey, s.bucket)
		}

		return nil, fmt.Errorf("failed to get object '%s' from bucket '%s': %w", objectKey, s.bucket, err)
	}
	defer output.Body.Close()

	data, err := io.ReadAll(output.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read object '%s': %w", objectKey, err)
	}

	return data, nil
}
