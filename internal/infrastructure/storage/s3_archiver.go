// Package storage provides object storage implementations for payload archival.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/erp/catalog-monitor/internal/infrastructure/catalogapi"
	infraconfig "github.com/erp/catalog-monitor/internal/infrastructure/config"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Ensure S3PayloadArchiver implements PayloadArchiver
var _ catalogapi.PayloadArchiver = (*S3PayloadArchiver)(nil)

// S3PayloadArchiver stores raw catalog API response payloads in an
// S3-compatible bucket, one object per successful request. It is compatible
// with any S3-compatible storage (AWS S3, MinIO, RustFS, etc.)
type S3PayloadArchiver struct {
	client *s3.Client
	bucket string
	prefix string
	logger *zap.Logger
	now    func() time.Time
}

// S3PayloadArchiverOption is a functional option for configuring S3PayloadArchiver
type S3PayloadArchiverOption func(*S3PayloadArchiver)

// WithLogger sets a custom logger for S3PayloadArchiver
func WithLogger(logger *zap.Logger) S3PayloadArchiverOption {
	return func(a *S3PayloadArchiver) {
		a.logger = logger.Named("archive")
	}
}

// NewS3PayloadArchiver creates a new S3PayloadArchiver from configuration
func NewS3PayloadArchiver(cfg *infraconfig.ArchiveConfig, opts ...S3PayloadArchiverOption) (*S3PayloadArchiver, error) {
	if cfg == nil {
		return nil, errors.New("archive configuration is required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("archive bucket is required")
	}
	if cfg.AccessKey == "" {
		return nil, errors.New("archive access key is required")
	}
	if cfg.SecretKey == "" {
		return nil, errors.New("archive secret key is required")
	}

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"", // session token (not used for static credentials)
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			// S3-compatible stores usually require path-style addressing
			o.UsePathStyle = true
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	archiver := &S3PayloadArchiver{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(archiver)
	}
	return archiver, nil
}

// EnsureBucket creates the bucket if it doesn't exist.
// Call this during application startup to ensure the bucket is ready.
func (a *S3PayloadArchiver) EnsureBucket(ctx context.Context) error {
	_, err := a.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(a.bucket),
	})
	if err == nil {
		return nil
	}

	_, err = a.client.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(a.bucket),
	})
	if err != nil {
		var owned *types.BucketAlreadyOwnedByYou
		var exists *types.BucketAlreadyExists
		if errors.As(err, &owned) || errors.As(err, &exists) {
			return nil
		}
		return fmt.Errorf("failed to create bucket %s: %w", a.bucket, err)
	}

	a.logger.Info("archive bucket created", zap.String("bucket", a.bucket))
	return nil
}

// Archive stores one raw response payload. The object key is derived from
// the operation and the request time so payloads are browsable by day.
func (a *S3PayloadArchiver) Archive(ctx context.Context, operation string, payload []byte) error {
	key := a.objectKey(operation, a.now())

	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(payload),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to archive payload: %w", err)
	}

	a.logger.Debug("payload archived",
		zap.String("key", key),
		zap.Int("bytes", len(payload)),
	)
	return nil
}

// objectKey builds the archive key: [prefix/]operation/YYYY-MM-DD/HHMMSS-<id>.json
func (a *S3PayloadArchiver) objectKey(operation string, at time.Time) string {
	at = at.UTC()
	key := fmt.Sprintf("%s/%s/%s-%s.json",
		operation,
		at.Format("2006-01-02"),
		at.Format("150405"),
		uuid.NewString()[:8],
	)
	if a.prefix != "" {
		key = a.prefix + "/" + key
	}
	return key
}

// GetBucket returns the configured bucket name
func (a *S3PayloadArchiver) GetBucket() string {
	return a.bucket
}
