package sessions

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/redis/go-redis/v9"
)

const revokedPrefix = "everycheese:revoked:"

var revoked *redis.Client

// SetBlacklistClient sets the Redis client that records revoked access
// tokens. nil turns revocation off.
func SetBlacklistClient(c *redis.Client) {
	revoked = c
}

// Entries are keyed by the token's SHA-256 so bearer tokens never sit in
// Redis in the clear.
func revokedKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return revokedPrefix + hex.EncodeToString(sum[:])
}

// BlacklistAccessToken revokes token for ttl, normally the time left before
// it expires on its own. Without a client, or with ttl <= 0, it does nothing.
func BlacklistAccessToken(ctx context.Context, token string, ttl time.Duration) error {
	if revoked == nil || ttl <= 0 {
		return nil
	}
	return revoked.SetNX(ctx, revokedKey(token), time.Now().Unix(), ttl).Err()
}

// IsAccessTokenBlacklisted reports whether token was revoked.
func IsAccessTokenBlacklisted(ctx context.Context, token string) (bool, error) {
	if revoked == nil {
		return false, nil
	}
	n, err := revoked.Exists(ctx, revokedKey(token)).Result()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
