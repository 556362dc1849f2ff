package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parkspot/internal/config"
	"parkspot/internal/domain"
	"parkspot/internal/models"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *RedisLockStore) {
	t.Helper()
	s, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(s.Close)

	client := NewRedisClient(config.RedisConfig{Address: s.Addr()})
	t.Cleanup(func() { _ = Close(client) })
	return s, NewRedisLockStore(client)
}

func TestRedisLockStore_Locks(t *testing.T) {
	s, repo := newTestRedis(t)
	ctx := context.Background()
	key := SlotLockKey(7, models.VehicleCar)
	assert.Equal(t, "slot_lock:7:car", key)

	token, err := repo.AcquireLock(ctx, key, 5*time.Second)
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	_, err = repo.AcquireLock(ctx, key, 5*time.Second)
	assert.ErrorIs(t, err, domain.ErrSlotBusy)

	// A stale token must not free someone else's lock.
	require.NoError(t, repo.ReleaseLock(ctx, key, "not-mine"))
	assert.True(t, s.Exists(key))

	require.NoError(t, repo.ReleaseLock(ctx, key, token))
	assert.False(t, s.Exists(key))

	t.Run("Expiry", func(t *testing.T) {
		_, err := repo.AcquireLock(ctx, key, time.Second)
		require.NoError(t, err)
		s.FastForward(2 * time.Second)
		_, err = repo.AcquireLock(ctx, key, time.Second)
		assert.NoError(t, err)
	})
}

func TestRedisLockStore_RateLimit(t *testing.T) {
	s, repo := newTestRedis(t)
	ctx := context.Background()
	key := RateLimitKey(42)

	for i := 0; i < 3; i++ {
		allowed, err := repo.CheckRateLimit(ctx, key, 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, allowed)
	}
	allowed, err := repo.CheckRateLimit(ctx, key, 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, allowed)

	s.FastForward(2 * time.Minute)
	allowed, err = repo.CheckRateLimit(ctx, key, 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestRedisLockStore_RateLimitWindowExpiry(t *testing.T) {
	s, repo := newTestRedis(t)
	ctx := context.Background()
	key := RateLimitKey(7)

	_, err := repo.CheckRateLimit(ctx, key, 5, 30*time.Second)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, s.TTL(key))

	// Later hits keep the window running instead of extending it.
	s.FastForward(10 * time.Second)
	_, err = repo.CheckRateLimit(ctx, key, 5, 30*time.Second)
	require.NoError(t, err)
	assert.Equal(t, 20*time.Second, s.TTL(key))

	t.Run("CounterWithoutTTL", func(t *testing.T) {
		stuck := RateLimitKey(8)
		require.NoError(t, s.Set(stuck, "9"))

		allowed, err := repo.CheckRateLimit(ctx, stuck, 5, time.Minute)
		require.NoError(t, err)
		assert.False(t, allowed)
		assert.Equal(t, time.Minute, s.TTL(stuck))

		s.FastForward(2 * time.Minute)
		allowed, err = repo.CheckRateLimit(ctx, stuck, 5, time.Minute)
		require.NoError(t, err)
		assert.True(t, allowed)
	})
}

func TestRedisLockStore_Unavailable(t *testing.T) {
	s, repo := newTestRedis(t)
	s.Close()
	ctx := context.Background()

	_, err := repo.AcquireLock(ctx, "k", time.Second)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrSlotBusy)

	_, err = repo.CheckRateLimit(ctx, "k", 1, time.Second)
	assert.Error(t, err)

	assert.Error(t, Ping(ctx, repo.client))
}

func TestRedisLockStore_NilClient(t *testing.T) {
	repo := NewRedisLockStore((*redis.Client)(nil))
	_, err := repo.AcquireLock(context.Background(), "k", time.Second)
	assert.Error(t, err)
	assert.Error(t, repo.ReleaseLock(context.Background(), "k", "t"))
	assert.NoError(t, Close(nil))
}
