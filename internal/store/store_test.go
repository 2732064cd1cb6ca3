package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/facebookgo/clock"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisKV(t *testing.T) (*RedisKV, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { client.Close() })
	return NewRedisKV(client, "test:"), mr
}

func TestRedisKVGetSetClear(t *testing.T) {
	ctx := context.Background()
	kv, mr := newTestRedisKV(t)

	require.NoError(t, kv.Set(ctx, "poll", "yes", 0))
	assert.True(t, mr.Exists("test:poll"))

	val, err := kv.Get(ctx, "poll")
	require.NoError(t, err)
	assert.Equal(t, "yes", val)

	require.NoError(t, kv.Clear(ctx, "poll"))
	_, err = kv.Get(ctx, "poll")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisKVSetNX(t *testing.T) {
	ctx := context.Background()
	kv, mr := newTestRedisKV(t)

	ok, err := kv.SetNX(ctx, "lock", "1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = kv.SetNX(ctx, "lock", "1", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	mr.FastForward(2 * time.Minute)
	ok, err = kv.SetNX(ctx, "lock", "1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisKVUnavailable(t *testing.T) {
	ctx := context.Background()
	kv, mr := newTestRedisKV(t)
	mr.Close()

	_, err := kv.Get(ctx, "poll")
	assert.ErrorIs(t, err, ErrStorageUnavailable)

	_, err = kv.SetNX(ctx, "poll", "1", 0)
	assert.ErrorIs(t, err, ErrStorageUnavailable)
}

func TestMemoryKVExpiry(t *testing.T) {
	ctx := context.Background()
	mock := clock.NewMock()
	kv := NewMemoryKV(mock)

	require.NoError(t, kv.Set(ctx, "a", "1", time.Second))
	val, err := kv.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "1", val)

	mock.Add(time.Second)
	_, err = kv.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, kv.Set(ctx, "b", "2", 0))
	mock.Add(24 * time.Hour)
	val, err = kv.Get(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, "2", val)
}

func TestNotificationGuardClaimsOnce(t *testing.T) {
	ctx := context.Background()
	kv, _ := newTestRedisKV(t)
	guard := NewNotificationGuard(kv, time.Hour)

	first, err := guard.Claim(ctx, "session-1")
	require.NoError(t, err)
	assert.True(t, first)

	again, err := guard.Claim(ctx, "session-1")
	require.NoError(t, err)
	assert.False(t, again)

	other, err := guard.Claim(ctx, "session-2")
	require.NoError(t, err)
	assert.True(t, other)
}

func TestMemoryKVSweepsExpiredClaims(t *testing.T) {
	ctx := context.Background()
	mock := clock.NewMock()
	kv := NewMemoryKV(mock)
	guard := NewNotificationGuard(kv, time.Hour)

	for i := 0; i < 1000; i++ {
		ok, err := guard.Claim(ctx, fmt.Sprintf("session-%d", i))
		require.NoError(t, err)
		require.True(t, ok)
	}
	assert.Equal(t, 1000, kv.Len())

	mock.Add(48 * time.Hour)
	ok, err := guard.Claim(ctx, "session-new")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, kv.Len())
}

func TestMemoryKVSweepKeepsLiveAndPermanentEntries(t *testing.T) {
	ctx := context.Background()
	mock := clock.NewMock()
	kv := NewMemoryKV(mock)

	require.NoError(t, kv.Set(ctx, "permanent", "1", 0))
	require.NoError(t, kv.Set(ctx, "short", "1", time.Minute))
	require.NoError(t, kv.Set(ctx, "long", "1", 3*time.Hour))

	mock.Add(2 * time.Hour)
	require.NoError(t, kv.Set(ctx, "trigger", "1", time.Hour))

	assert.Equal(t, 3, kv.Len())
	_, err := kv.Get(ctx, "long")
	assert.NoError(t, err)
	_, err = kv.Get(ctx, "permanent")
	assert.NoError(t, err)
}
