package cache

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/psdstocks-cloud/creo-cache/internal/domain"
	"github.com/redis/go-redis/v9"
)

const scanBatch = 500

// Connect initializes a Redis client from URL or host:port input.
// A non-empty password overrides the one embedded in the URL.
func Connect(_ context.Context, redisURL, password string) (*redis.Client, error) {
	var opt *redis.Options
	if strings.HasPrefix(redisURL, "redis://") || strings.HasPrefix(redisURL, "rediss://") {
		parsed, parseErr := redis.ParseURL(redisURL)
		if parseErr != nil {
			return nil, fmt.Errorf("parse redis url: %w", parseErr)
		}
		opt = parsed
	} else {
		opt = &redis.Options{Addr: redisURL}
	}
	if password != "" {
		opt.Password = password
	}
	return redis.NewClient(opt), nil
}

// RedisBackend stores entries as plain Redis strings and relies on native
// key expiry and INCR atomicity.
type RedisBackend struct {
	client *redis.Client
}

func NewRedisBackend(client *redis.Client) *RedisBackend {
	return &RedisBackend{client: client}
}

func (b *RedisBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	raw, err := b.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return raw, true, nil
}

func (b *RedisBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	return b.client.Set(ctx, key, value, ttl).Err()
}

func (b *RedisBackend) Delete(ctx context.Context, key string) error {
	return b.client.Del(ctx, key).Err()
}

func (b *RedisBackend) Incr(ctx context.Context, key string) (int64, error) {
	return b.client.Incr(ctx, key).Result()
}

func (b *RedisBackend) MGet(ctx context.Context, keys ...string) ([][]byte, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	vals, err := b.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	out := make([][]byte, len(vals))
	for i, v := range vals {
		switch typed := v.(type) {
		case string:
			out[i] = []byte(typed)
		case []byte:
			out[i] = typed
		}
	}
	return out, nil
}

// Clear unlinks the namespace in SCAN batches. Without a namespace the
// whole logical database is flushed.
func (b *RedisBackend) Clear(ctx context.Context, prefix string) error {
	if prefix == "" {
		return b.client.FlushDB(ctx).Err()
	}
	match := escapeGlob(prefix) + "*"
	var cursor uint64
	for {
		keys, next, err := b.client.Scan(ctx, cursor, match, scanBatch).Result()
		if err != nil {
			return fmt.Errorf("scan %s: %w", match, err)
		}
		if len(keys) > 0 {
			if err := b.client.Unlink(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("unlink batch: %w", err)
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

func (b *RedisBackend) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

// Stats uses DBSIZE when the cache owns the database. With a namespace it
// counts keys by SCAN, which is O(n) and only meant for admin reporting.
func (b *RedisBackend) Stats(ctx context.Context, prefix string) (domain.BackendStats, error) {
	var stats domain.BackendStats
	if prefix == "" {
		n, err := b.client.DBSize(ctx).Result()
		if err != nil {
			return stats, err
		}
		stats.TotalKeys = n
	} else {
		match := escapeGlob(prefix) + "*"
		var cursor uint64
		for {
			keys, next, err := b.client.Scan(ctx, cursor, match, scanBatch).Result()
			if err != nil {
				return stats, err
			}
			stats.TotalKeys += int64(len(keys))
			cursor = next
			if cursor == 0 {
				break
			}
		}
	}
	info, err := b.client.Info(ctx, "memory").Result()
	if err != nil {
		return stats, err
	}
	stats.MemoryUsageBytes = parseUsedMemory(info)
	return stats, nil
}

func (b *RedisBackend) Close() error {
	return b.client.Close()
}

func parseUsedMemory(info string) int64 {
	sc := bufio.NewScanner(strings.NewReader(info))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		raw, ok := strings.CutPrefix(line, "used_memory:")
		if !ok {
			continue
		}
		n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return 0
		}
		return n
	}
	return 0
}

func escapeGlob(s string) string {
	var sb strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			sb.WriteByte('\\')
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
