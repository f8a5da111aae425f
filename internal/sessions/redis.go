package sessions

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "everycheese:session:"

// RedisStore keeps each session as a hash under <prefix><token>. The key
// expires at the session's ExpiresAt.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisStore returns a Redis store. An empty prefix selects
// "everycheese:session:".
func NewRedisStore(rdb *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisStore{rdb: rdb, prefix: prefix}
}

func (r *RedisStore) key(token string) string { return r.prefix + token }

func (r *RedisStore) Put(ctx context.Context, s *Session) error {
	if s.Expired(time.Now()) {
		return ErrExpired
	}
	key := r.key(s.Token)
	_, err := r.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, key,
			"sub", s.Sub,
			"createdAt", s.CreatedAt.UnixMilli(),
			"expiresAt", s.ExpiresAt.UnixMilli(),
		)
		p.PExpireAt(ctx, key, s.ExpiresAt)
		return nil
	})
	return err
}

func (r *RedisStore) Get(ctx context.Context, token string) (*Session, error) {
	fields, err := r.rdb.HGetAll(ctx, r.key(token)).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, nil
	}
	created, err := strconv.ParseInt(fields["createdAt"], 10, 64)
	if err != nil {
		return nil, err
	}
	expires, err := strconv.ParseInt(fields["expiresAt"], 10, 64)
	if err != nil {
		return nil, err
	}
	return &Session{
		Token:     token,
		Sub:       fields["sub"],
		CreatedAt: time.UnixMilli(created).UTC(),
		ExpiresAt: time.UnixMilli(expires).UTC(),
	}, nil
}

func (r *RedisStore) Delete(ctx context.Context, token string) error {
	return r.rdb.Del(ctx, r.key(token)).Err()
}
