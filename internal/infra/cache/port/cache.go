package port

import (
	"context"
	"time"
)

// Cache is the key-value accelerator port. Implementations must be safe for
// concurrent use. The cache is never the system of record: callers have to
// stay correct when every call fails or misses.
type Cache interface {
	// Get returns the value stored at key, or ErrMiss when the key is absent
	// or expired. Any other error is a transport/server failure.
	Get(ctx context.Context, key string) (string, error)

	// Set stores value at key for the given TTL. Zero or negative TTL means
	// no expiration.
	Set(ctx context.Context, key string, value string, ttl time.Duration) error

	// Del removes keys and returns how many existed.
	Del(ctx context.Context, keys ...string) (int64, error)

	// Ping verifies connectivity with the backend.
	Ping(ctx context.Context) error

	Close() error
}

// ErrMiss signals a cache miss in a typed way so callers can tell misses from
// transport errors.
var ErrMiss = errMiss{}

type errMiss struct{}

func (errMiss) Error() string { return "cache: miss" }
