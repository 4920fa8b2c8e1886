package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinIOConfig holds object store connection settings.
type MinIOConfig struct {
	EndpointURL     string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	Region          string
	UseSSL          bool
}

// MinIO stores uploads in an S3-compatible bucket.
type MinIO struct {
	client *minio.Client
	bucket string
}

// NewMinIO connects to the object store and makes sure the bucket exists.
func NewMinIO(ctx context.Context, cfg MinIOConfig) (*MinIO, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("minio: bucket is required")
	}
	if cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" {
		return nil, fmt.Errorf("minio: credentials are required")
	}

	u, err := url.Parse(cfg.EndpointURL)
	if err != nil {
		return nil, fmt.Errorf("minio: invalid endpoint URL: %w", err)
	}
	endpoint := u.Host
	if endpoint == "" {
		endpoint = cfg.EndpointURL
	}
	useSSL := cfg.UseSSL
	if u.Scheme == "https" {
		useSSL = true
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: useSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("minio: create client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("minio: check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, fmt.Errorf("minio: create bucket: %w", err)
		}
	}

	return &MinIO{client: client, bucket: cfg.Bucket}, nil
}

// Put uploads r and returns an s3:// reference.
func (m *MinIO) Put(ctx context.Context, name string, r io.Reader, size int64) (string, error) {
	key := uploadKey(name)
	if size <= 0 {
		size = -1
	}
	_, err := m.client.PutObject(ctx, m.bucket, key, r, size, minio.PutObjectOptions{
		ContentType: "application/xml",
	})
	if err != nil {
		return "", fmt.Errorf("upload object %s: %w", key, err)
	}
	return "s3://" + m.bucket + "/" + key, nil
}

// Open streams the object named by ref. A bare key is read from the
// configured bucket.
func (m *MinIO) Open(ctx context.Context, ref string) (io.ReadCloser, error) {
	bucket, key, err := m.parseRef(ref)
	if err != nil {
		return nil, err
	}
	obj, err := m.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("open file %s: %w", ref, err)
	}
	// GetObject is lazy; Stat surfaces a missing object here instead of on first Read.
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		return nil, fmt.Errorf("open file %s: %w", ref, err)
	}
	return obj, nil
}

func (m *MinIO) parseRef(ref string) (bucket, key string, err error) {
	return ParseObjectRef(ref, m.bucket)
}

// ParseObjectRef splits "s3://bucket/key" into its parts. A reference without
// the scheme is a key in defaultBucket.
func ParseObjectRef(ref, defaultBucket string) (bucket, key string, err error) {
	if ref == "" {
		return "", "", fmt.Errorf("open file: no file provided")
	}
	if !strings.HasPrefix(ref, "s3://") {
		return defaultBucket, strings.TrimPrefix(ref, "/"), nil
	}
	rest := strings.TrimPrefix(ref, "s3://")
	bucket, key, ok := strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", fmt.Errorf("open file %s: malformed object reference", ref)
	}
	return bucket, key, nil
}
