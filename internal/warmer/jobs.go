package warmer

import (
	"context"
	"fmt"
	"time"
)

// Setter is the write side of the cache a warm job stores into.
type Setter interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// FetchFunc computes the value for a hot key, typically by calling an upstream.
type FetchFunc func(ctx context.Context) ([]byte, error)

// StoreJob builds a job that fetches a value and overwrites key with it.
func StoreJob(name, key string, ttl time.Duration, store Setter, fetch FetchFunc) Job {
	return Job{
		Name: name,
		Key:  key,
		Run: func(ctx context.Context) error {
			value, err := fetch(ctx)
			if err != nil {
				return fmt.Errorf("fetch %s: %w", key, err)
			}
			if err := store.Set(ctx, key, value, ttl); err != nil {
				return fmt.Errorf("store %s: %w", key, err)
			}
			return nil
		},
	}
}
