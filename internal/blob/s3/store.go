// Package s3 stores receipt files in an S3-compatible bucket (AWS S3 or MinIO).
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/erazemk/nycklar/internal/blob"
)

var _ blob.Store = (*Store)(nil)

// Store implements blob.Store on a single bucket. Keys map to object keys
// under Prefix.
type Store struct {
	client *s3.Client
	bucket string
	prefix string
}

// Config holds construction parameters.
type Config struct {
	Bucket          string
	Region          string
	Prefix          string
	Endpoint        string // optional, e.g. a MinIO URL
	AccessKeyID     string // optional, falls back to the default credential chain
	SecretAccessKey string
	PathStyle       bool
}

// Environment variables read by ConfigFromEnv:
//
//	NYCKLAR_BLOB_S3_BUCKET      (required)
//	NYCKLAR_BLOB_S3_REGION      (default eu-north-1)
//	NYCKLAR_BLOB_S3_PREFIX      (default receipts/)
//	NYCKLAR_BLOB_S3_ENDPOINT
//	NYCKLAR_BLOB_S3_PATH_STYLE  true|false
//	NYCKLAR_BLOB_S3_ACCESS_KEY_ID / NYCKLAR_BLOB_S3_SECRET_ACCESS_KEY

// ConfigFromEnv builds a Config from the process environment.
func ConfigFromEnv() (Config, error) {
	cfg := Config{
		Bucket:          os.Getenv("NYCKLAR_BLOB_S3_BUCKET"),
		Region:          os.Getenv("NYCKLAR_BLOB_S3_REGION"),
		Prefix:          os.Getenv("NYCKLAR_BLOB_S3_PREFIX"),
		Endpoint:        os.Getenv("NYCKLAR_BLOB_S3_ENDPOINT"),
		AccessKeyID:     os.Getenv("NYCKLAR_BLOB_S3_ACCESS_KEY_ID"),
		SecretAccessKey: os.Getenv("NYCKLAR_BLOB_S3_SECRET_ACCESS_KEY"),
		PathStyle:       strings.EqualFold(os.Getenv("NYCKLAR_BLOB_S3_PATH_STYLE"), "true"),
	}
	if cfg.Bucket == "" {
		return Config{}, fmt.Errorf("NYCKLAR_BLOB_S3_BUCKET required for s3 driver")
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "receipts/"
	}
	return cfg, nil
}

// New creates an S3 store.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket required")
	}
	region := cfg.Region
	if region == "" {
		region = "eu-north-1"
	}

	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		// S3-compatible servers do not all accept the newer checksum headers.
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
	})

	return &Store{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

func (s *Store) objectKey(key string) string {
	return s.prefix + key
}

// Put uploads data under key, replacing any existing object.
func (s *Store) Put(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(s.objectKey(key)),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("uploading %s: %w", key, err)
	}
	return nil
}

// Get downloads the object under key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, string, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, "", blob.ErrNotFound
		}
		return nil, "", fmt.Errorf("downloading %s: %w", key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, "", fmt.Errorf("reading %s: %w", key, err)
	}
	return data, aws.ToString(out.ContentType), nil
}

// Delete removes the object under key. S3 treats missing keys as deleted.
func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		return fmt.Errorf("deleting %s: %w", key, err)
	}
	return nil
}
