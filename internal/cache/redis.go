package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/seekly/seekly/internal/config"
	"github.com/seekly/seekly/internal/errors"
)

// RedisL2 is the Redis-backed warm tier. Entries are stored as JSON under a
// key prefix and expire through Redis TTLs; tags map to Redis sets so
// tag-based invalidation stays O(tagged keys), not O(keyspace).
type RedisL2 struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

var _ ExactTier = (*RedisL2)(nil)

// NewRedisL2 connects to Redis and verifies the connection.
func NewRedisL2(ctx context.Context, cfg config.RedisConfig, now func() time.Time) (*RedisL2, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, errors.ErrCodeBackendUnavailable, "redis ping").
			WithContext("addr", cfg.Addr)
	}
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "seekly:cache:"
	}
	if now == nil {
		now = time.Now
	}
	return &RedisL2{client: client, prefix: prefix, now: now}, nil
}

func (c *RedisL2) entryKey(key string) string { return c.prefix + "entry:" + key }
func (c *RedisL2) tagKey(tag string) string   { return c.prefix + "tag:" + tag }

// Get fetches and refreshes the entry. A malformed payload is purged and
// surfaced as a cache corruption error; the caller treats it as a miss.
func (c *RedisL2) Get(ctx context.Context, key string) (*Entry, bool, error) {
	data, err := c.client.Get(ctx, c.entryKey(key)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, errors.ErrCodeBackendUnavailable, "redis get")
	}

	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		_ = c.client.Del(ctx, c.entryKey(key)).Err()
		return nil, false, errors.Wrap(err, errors.ErrCodeCacheCorrupt, "malformed cache entry").
			WithContext("key", key)
	}

	e.RecordAccess(c.now())
	if updated, err := json.Marshal(&e); err == nil {
		// Keep the original expiry; only the bookkeeping changed.
		_ = c.client.Set(ctx, c.entryKey(key), updated, redis.KeepTTL).Err()
	}
	return &e, true, nil
}

// Set stores the entry under its TTL and registers its tags.
func (c *RedisL2) Set(ctx context.Context, e *Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "marshal cache entry")
	}
	if err := c.client.Set(ctx, c.entryKey(e.Key), data, e.TTL).Err(); err != nil {
		return errors.Wrap(err, errors.ErrCodeBackendUnavailable, "redis set")
	}
	for _, tag := range e.Tags {
		if err := c.client.SAdd(ctx, c.tagKey(tag), e.Key).Err(); err != nil {
			return errors.Wrap(err, errors.ErrCodeBackendUnavailable, "redis tag add")
		}
	}
	return nil
}

// Delete removes the key, reporting whether it existed.
func (c *RedisL2) Delete(ctx context.Context, key string) (bool, error) {
	n, err := c.client.Del(ctx, c.entryKey(key)).Result()
	if err != nil {
		return false, errors.Wrap(err, errors.ErrCodeBackendUnavailable, "redis del")
	}
	return n > 0, nil
}

// InvalidateByTags removes all keys registered under any of the tags.
func (c *RedisL2) InvalidateByTags(ctx context.Context, tags []string) (int, error) {
	removed := 0
	seen := make(map[string]struct{})
	for _, tag := range tags {
		keys, err := c.client.SMembers(ctx, c.tagKey(tag)).Result()
		if err != nil {
			return removed, errors.Wrap(err, errors.ErrCodeBackendUnavailable, "redis tag members")
		}
		for _, key := range keys {
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			n, err := c.client.Del(ctx, c.entryKey(key)).Result()
			if err != nil {
				return removed, errors.Wrap(err, errors.ErrCodeBackendUnavailable, "redis del")
			}
			removed += int(n)
		}
		if err := c.client.Del(ctx, c.tagKey(tag)).Err(); err != nil {
			return removed, errors.Wrap(err, errors.ErrCodeBackendUnavailable, "redis tag del")
		}
	}
	return removed, nil
}

// Len counts entries by scanning the prefix. Used for stats only.
func (c *RedisL2) Len(ctx context.Context) int {
	n := 0
	iter := c.client.Scan(ctx, 0, c.prefix+"entry:*", 200).Iterator()
	for iter.Next(ctx) {
		n++
	}
	return n
}

// Purge drops every entry and tag set under the prefix.
func (c *RedisL2) Purge(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, c.prefix+"*", 200).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return errors.Wrap(err, errors.ErrCodeBackendUnavailable, "redis purge")
		}
	}
	if err := iter.Err(); err != nil {
		return errors.Wrap(err, errors.ErrCodeBackendUnavailable, "redis scan")
	}
	return nil
}

// Close releases the Redis connection.
func (c *RedisL2) Close() error {
	return c.client.Close()
}
