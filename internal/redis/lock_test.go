package redisclient

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMiniRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestRedisSlotLocker(t *testing.T) {
	rdb := newMiniRedis(t)
	locker := NewRedisSlotLocker(rdb, 2*time.Second)
	key := SlotKey("doc-1", "15_6_2025", "10:00 AM")

	t.Run("runs fn and releases key", func(t *testing.T) {
		ran := false
		err := locker.WithSlotLock(context.Background(), key, func(ctx context.Context) error {
			ran = true
			return nil
		})
		require.NoError(t, err)
		assert.True(t, ran)

		exists, err := rdb.Exists(context.Background(), key).Result()
		require.NoError(t, err)
		assert.Equal(t, int64(0), exists)
	})

	t.Run("second holder is rejected", func(t *testing.T) {
		err := locker.WithSlotLock(context.Background(), key, func(ctx context.Context) error {
			return locker.WithSlotLock(ctx, key, func(context.Context) error { return nil })
		})
		require.ErrorIs(t, err, ErrLockNotAcquired)
	})

	t.Run("foreign token is not released", func(t *testing.T) {
		require.NoError(t, rdb.Set(context.Background(), key, "someone-else", time.Minute).Err())
		l := locker.(*redisSlotLocker)
		require.NoError(t, l.release(context.Background(), key, "my-token"))

		val, err := rdb.Get(context.Background(), key).Result()
		require.NoError(t, err)
		assert.Equal(t, "someone-else", val)
	})
}

func TestRedisSlotLockerStoreDown(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })
	mr.Close()

	locker := NewRedisSlotLocker(rdb, time.Second)
	ran := false
	err := locker.WithSlotLock(context.Background(), SlotKey("doc-1", "1_1_2026", "09:00 AM"), func(context.Context) error {
		ran = true
		return nil
	})
	require.ErrorIs(t, err, ErrLockUnavailable)
	assert.NotErrorIs(t, err, ErrLockNotAcquired)
	assert.False(t, ran)
}

func TestLocalSlotLocker(t *testing.T) {
	locker := NewLocalSlotLocker()
	key := SlotKey("doc-1", "1_1_2026", "09:00 AM")

	err := locker.WithSlotLock(context.Background(), key, func(ctx context.Context) error {
		return locker.WithSlotLock(ctx, key, func(context.Context) error { return nil })
	})
	require.ErrorIs(t, err, ErrLockNotAcquired)

	require.NoError(t, locker.WithSlotLock(context.Background(), key, func(context.Context) error { return nil }))
}
