package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/everycheese/everycheese/internal/config"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

var ErrNotConfigured = errors.New("minio endpoint not configured")

// Photos are immutable once written; every upload gets a fresh key.
const photoCacheControl = "public, max-age=31536000, immutable"

// PhotoBucket keeps cheese photos in one MinIO bucket and hands out
// short-lived GET links to them.
type PhotoBucket struct {
	mc     *minio.Client
	bucket string
}

// OpenPhotoBucket connects to cfg.Endpoint and creates the bucket when it
// does not exist yet.
func OpenPhotoBucket(ctx context.Context, cfg config.MinIOConfig) (*PhotoBucket, error) {
	switch {
	case cfg.Endpoint == "":
		return nil, ErrNotConfigured
	case cfg.Bucket == "":
		return nil, errors.New("minio bucket name is empty")
	}
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}
	b := &PhotoBucket{mc: mc, bucket: cfg.Bucket}
	if err := b.ensure(ctx, cfg.Region); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *PhotoBucket) ensure(ctx context.Context, region string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	ok, err := b.mc.BucketExists(ctx, b.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", b.bucket, err)
	}
	if ok {
		return nil
	}
	if err := b.mc.MakeBucket(ctx, b.bucket, minio.MakeBucketOptions{Region: region}); err != nil {
		return fmt.Errorf("create bucket %s: %w", b.bucket, err)
	}
	return nil
}

// PutPhoto stores size bytes from r under key.
func (b *PhotoBucket) PutPhoto(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	opts := minio.PutObjectOptions{ContentType: contentType, CacheControl: photoCacheControl}
	if _, err := b.mc.PutObject(ctx, b.bucket, key, r, size, opts); err != nil {
		return fmt.Errorf("put photo %s: %w", key, err)
	}
	return nil
}

// PhotoURL signs a GET link to key that stays valid for ttl.
func (b *PhotoBucket) PhotoURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	u, err := b.mc.PresignedGetObject(ctx, b.bucket, key, ttl, nil)
	if err != nil {
		return "", fmt.Errorf("presign photo %s: %w", key, err)
	}
	return u.String(), nil
}

// Ready reports whether the bucket answers.
func (b *PhotoBucket) Ready(ctx context.Context) error {
	_, err := b.mc.BucketExists(ctx, b.bucket)
	return err
}
