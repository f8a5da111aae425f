package storage

import (
	"context"
	"testing"
	"time"

	"github.com/everycheese/everycheese/internal/config"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// offlineBucket fixes the region so signing never needs the server.
func offlineBucket(t *testing.T) *PhotoBucket {
	t.Helper()
	mc, err := minio.New("localhost:9000", &minio.Options{
		Creds:  credentials.NewStaticV4("access", "secret", ""),
		Region: "us-east-1",
	})
	require.NoError(t, err)
	return &PhotoBucket{mc: mc, bucket: "photos"}
}

func TestOpenPhotoBucket_Config(t *testing.T) {
	_, err := OpenPhotoBucket(context.Background(), config.MinIOConfig{Bucket: "everycheese"})
	require.ErrorIs(t, err, ErrNotConfigured)

	_, err = OpenPhotoBucket(context.Background(), config.MinIOConfig{Endpoint: "localhost:9000"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotConfigured)
}

func TestPhotoURL(t *testing.T) {
	b := offlineBucket(t)
	u, err := b.PhotoURL(context.Background(), "cheeses/brie/1.jpg", time.Minute)
	require.NoError(t, err)
	assert.Contains(t, u, "http://localhost:9000/photos/cheeses/brie/1.jpg")
	assert.Contains(t, u, "X-Amz-Expires=60")
	assert.Contains(t, u, "X-Amz-Signature=")
}
