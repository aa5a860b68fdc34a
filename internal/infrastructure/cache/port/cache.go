package port

import (
	"context"
	"time"
)

// Cache is the key-value contract used for session tokens and last-known
// account snapshots. Values are strings to keep the port free of
// serialization concerns; implementations must be concurrency-safe.
type Cache interface {
	// Get fetches the value for key; misses are reported as ErrMiss so
	// callers can tell them apart from transport errors.
	Get(ctx context.Context, key string) (string, error)

	// Set stores value at key. Zero or negative TTL means no expiration.
	Set(ctx context.Context, key string, value string, ttl time.Duration) error

	// Del removes keys and returns how many were removed.
	Del(ctx context.Context, keys ...string) (int64, error)

	// Ping verifies connectivity with the cache backend.
	Ping(ctx context.Context) error

	// Close releases any resources held by the cache.
	Close() error
}

// ErrMiss signals a cache miss in a typed way.
var ErrMiss = errMiss{}

type errMiss struct{}

func (errMiss) Error() string { return "cache: miss" }
