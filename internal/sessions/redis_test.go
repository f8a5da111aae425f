package sessions

import (
	"context"
	"testing"
	"time"

	mr "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisStore(t *testing.T) (*RedisStore, *mr.Miniredis) {
	t.Helper()
	m := mr.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: m.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisStore(rdb, ""), m
}

func TestRedisStore_RoundTrip(t *testing.T) {
	st, m := newRedisStore(t)
	ctx := context.Background()
	created := time.Now().UTC().Truncate(time.Millisecond)
	s := &Session{Token: "t1", Sub: "sub-1", CreatedAt: created, ExpiresAt: created.Add(time.Hour)}

	require.NoError(t, st.Put(ctx, s))
	assert.Equal(t, "sub-1", m.HGet(defaultRedisPrefix+"t1", "sub"))
	assert.InDelta(t, time.Hour.Seconds(), m.TTL(defaultRedisPrefix+"t1").Seconds(), 5)

	got, err := st.Get(ctx, "t1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "sub-1", got.Sub)
	assert.True(t, created.Equal(got.CreatedAt))
	assert.True(t, s.ExpiresAt.Equal(got.ExpiresAt))

	require.NoError(t, st.Delete(ctx, "t1"))
	got, err = st.Get(ctx, "t1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisStore_KeyExpires(t *testing.T) {
	st, m := newRedisStore(t)
	ctx := context.Background()
	now := time.Now().UTC()
	require.NoError(t, st.Put(ctx, &Session{Token: "t2", Sub: "sub-2", CreatedAt: now, ExpiresAt: now.Add(2 * time.Second)}))

	m.FastForward(3 * time.Second)
	got, err := st.Get(ctx, "t2")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisStore_RejectsExpired(t *testing.T) {
	st, m := newRedisStore(t)
	now := time.Now().UTC()
	err := st.Put(context.Background(), &Session{Token: "old", Sub: "s", CreatedAt: now.Add(-time.Hour), ExpiresAt: now.Add(-time.Minute)})
	require.ErrorIs(t, err, ErrExpired)
	assert.False(t, m.Exists(defaultRedisPrefix+"old"))
}

func TestService_WithRedisStore(t *testing.T) {
	st, _ := newRedisStore(t)
	svc := NewService(st)
	ctx := context.Background()

	token, err := svc.Start(ctx, "sub-3", time.Hour)
	require.NoError(t, err)
	sess, err := svc.Resolve(ctx, token)
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, token, sess.Token)
	assert.Equal(t, "sub-3", sess.Sub)
}
