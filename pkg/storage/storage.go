package storage

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Bucket is the media upload gateway consumed by the profile, chat and
// story handlers. Implementations are injected so tests can substitute
// a fake instead of a live object store.
type Bucket interface {
	// Upload stores the content under key and returns its public URL.
	Upload(ctx context.Context, key string, content []byte, contentType string) (string, error)
	// Remove deletes the object; removing a missing object is not an error.
	Remove(ctx context.Context, key string) error
}

type BucketConfig struct {
	Endpoint        string
	AccessKeyID     string
	AccessKeySecret string
	BucketName      string
	PublicURL       string
}

// s3API is the slice of the S3 client the bucket uses; tests substitute
// a stub.
type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Bucket talks to an S3-compatible object store.
type S3Bucket struct {
	client s3API
	config BucketConfig
}

func NewS3Bucket(cfg BucketConfig) (*S3Bucket, error) {
	if cfg.Endpoint == "" || cfg.AccessKeyID == "" || cfg.AccessKeySecret == "" || cfg.BucketName == "" {
		return nil, fmt.Errorf("missing required storage configuration parameters")
	}

	resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
		return aws.Endpoint{URL: cfg.Endpoint}, nil
	})

	awsCfg, err := awsconfig.LoadDefaultConfig(context.TODO(),
		awsconfig.WithEndpointResolverWithOptions(resolver),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.AccessKeySecret,
			"",
		)),
		awsconfig.WithRetryer(func() aws.Retryer {
			return aws.NopRetryer{}
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = true
	})

	return &S3Bucket{client: client, config: cfg}, nil
}

// Upload stores content under key. The store rejects overwrites of an
// existing name; on that error the stale object is removed and the
// upload retried once. Any other error propagates.
func (b *S3Bucket) Upload(ctx context.Context, key string, content []byte, contentType string) (string, error) {
	err := b.put(ctx, key, content, contentType)
	if err != nil && isDuplicateName(err) {
		if err := b.Remove(ctx, key); err != nil {
			return "", fmt.Errorf("failed to replace duplicate object %s: %w", key, err)
		}
		err = b.put(ctx, key, content, contentType)
	}
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/%s", b.config.PublicURL, key), nil
}

func (b *S3Bucket) put(ctx context.Context, key string, content []byte, contentType string) error {
	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(b.config.BucketName),
		Key:         aws.String(key),
		Body:        bytes.NewReader(content),
		ContentType: aws.String(contentType),
		IfNoneMatch: aws.String("*"),
	})
	if err != nil {
		return fmt.Errorf("failed to upload object %s: %w", key, err)
	}
	return nil
}

func (b *S3Bucket) Remove(ctx context.Context, key string) error {
	_, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.config.BucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object %s: %w", key, err)
	}
	return nil
}

// isDuplicateName reports whether the error is the store's rejection of
// an upload whose name already exists.
func isDuplicateName(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "PreconditionFailed") ||
		strings.Contains(msg, "Duplicate") ||
		strings.Contains(msg, "already exists")
}
