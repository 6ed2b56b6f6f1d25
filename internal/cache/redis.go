package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	platredis "glassbank/internal/platform/redis"
)

// Redis is the shared cache for multi-node deployments. Entries are stored as
// a JSON envelope so CreatedAt survives the round trip.
type Redis struct {
	client *platredis.Client
	prefix string
}

// NewRedis wraps the platform Redis client. prefix namespaces keys so several
// environments can share one instance.
func NewRedis(client *platredis.Client, prefix string) *Redis {
	return &Redis{client: client, prefix: prefix}
}

func (r *Redis) key(key string) string {
	if r.prefix == "" {
		return key
	}
	return r.prefix + ":" + key
}

func (r *Redis) Get(ctx context.Context, key string) (Entry, bool, error) {
	raw, err := r.client.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("redis get %s: %w", key, err)
	}
	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		// A corrupt envelope is treated as a miss; the next Set overwrites it.
		return Entry{}, false, nil
	}
	return entry, true, nil
}

func (r *Redis) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal cache value: %w", err)
	}
	envelope, err := json.Marshal(Entry{Data: data, CreatedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("marshal cache envelope: %w", err)
	}
	if err := r.client.Set(ctx, r.key(key), envelope, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	prefixed := make([]string, len(keys))
	for i, k := range keys {
		prefixed[i] = r.key(k)
	}
	if err := r.client.Del(ctx, prefixed...).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
