package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	UserKeyPrefix   = "user:%d"
	APIKeyKeyPrefix = "apikey:%s"
)

const (
	UserTTL   = 5 * time.Minute
	APIKeyTTL = 2 * time.Minute
)

func UserKey(userID uint) string {
	return fmt.Sprintf(UserKeyPrefix, userID)
}

// APIKeyKey caches a credential lookup by its secret value.
func APIKeyKey(value string) string {
	return fmt.Sprintf(APIKeyKeyPrefix, value)
}

// Aside implements the cache-aside pattern: on a hit, dest is populated from
// the cached JSON; on a miss, load fills dest and the result is cached with
// the given TTL. Cache failures fall through to the loader.
func Aside(ctx context.Context, key string, dest any, ttl time.Duration, load func() error) error {
	if client == nil {
		return load()
	}

	raw, err := client.Get(ctx, key).Result()
	if err == nil {
		if jsonErr := json.Unmarshal([]byte(raw), dest); jsonErr == nil {
			return nil
		}
		// Corrupt entry; drop it and reload.
		client.Del(ctx, key)
	} else if err != redis.Nil {
		return load()
	}

	if err := load(); err != nil {
		return err
	}

	if encoded, err := json.Marshal(dest); err == nil {
		client.Set(ctx, key, encoded, ttl)
	}
	return nil
}

func Invalidate(ctx context.Context, key string) {
	if client != nil {
		client.Del(ctx, key)
	}
}

func InvalidateUser(ctx context.Context, userID uint) {
	Invalidate(ctx, UserKey(userID))
}

func InvalidateAPIKey(ctx context.Context, value string) {
	Invalidate(ctx, APIKeyKey(value))
}
