package ports

import (
	"context"
	"time"

	"github.com/psdstocks-cloud/creo-cache/internal/domain"
)

// Backend is the raw key/value store behind the cache. Keys reach it already namespaced.
// Get reports absence as found=false with a nil error.
type Backend interface {
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	// Incr atomically increments the integer stored at key, creating it at 1.
	Incr(ctx context.Context, key string) (int64, error)
	// MGet reads several keys in one round trip; absent keys yield nil.
	MGet(ctx context.Context, keys ...string) ([][]byte, error)
	// Clear removes every key starting with prefix. An empty prefix clears the whole backend.
	Clear(ctx context.Context, prefix string) error
	Ping(ctx context.Context) error
	Stats(ctx context.Context, prefix string) (domain.BackendStats, error)
	Close() error
}
