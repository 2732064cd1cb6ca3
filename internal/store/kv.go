package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a key does not exist.
	ErrNotFound = errors.New("key not found")

	// ErrStorageUnavailable is returned when the backing store cannot be reached.
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// KV is a minimal key-value store. A zero ttl means no expiry.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	Clear(ctx context.Context, key string) error
}
