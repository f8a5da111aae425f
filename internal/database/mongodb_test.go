package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestConnectMongo_BadURI(t *testing.T) {
	_, err := ConnectMongo(context.Background(), "not-a-mongo-uri", time.Second)
	require.Error(t, err)
	require.Contains(t, err.Error(), "mongo connect")
}

func TestConnectMongoWithRetry_GivesUp(t *testing.T) {
	start := time.Now()
	_, err := ConnectMongoWithRetry(context.Background(), "not-a-mongo-uri", time.Second, 3, time.Millisecond)
	require.Error(t, err)
	require.Contains(t, err.Error(), "giving up after 3 attempts")
	require.Less(t, time.Since(start), 5*time.Second)
}

func TestConnectMongoWithRetry_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := ConnectMongoWithRetry(ctx, "not-a-mongo-uri", time.Second, 3, time.Hour)
	require.ErrorIs(t, err, context.Canceled)
}
