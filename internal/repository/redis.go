package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"parkspot/internal/config"
	"parkspot/internal/domain"
	"parkspot/internal/models"
)

// SlotLockKey names the lock guarding reservations of one category at one location.
func SlotLockKey(locationID int64, vt models.VehicleType) string {
	return fmt.Sprintf("slot_lock:%d:%s", locationID, vt)
}

// RateLimitKey names the booking-creation counter of a user.
func RateLimitKey(userID int64) string {
	return fmt.Sprintf("rate_limit:booking:%d", userID)
}

// releaseScript deletes the lock only if it still carries the caller's token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
end
return 0
`)

// hitScript counts a hit and arms the window expiry in one step. A counter
// left without a TTL gets one on its next hit.
var hitScript = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if redis.call("PTTL", KEYS[1]) < 0 then
    redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return n
`)

type RedisLockStore struct {
	client *redis.Client
}

func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

func NewRedisLockStore(client *redis.Client) *RedisLockStore {
	return &RedisLockStore{client: client}
}

func (r *RedisLockStore) AcquireLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if r.client == nil {
		return "", errors.New("redis client is nil")
	}
	token := uuid.NewString()
	ok, err := r.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return "", fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}
	if !ok {
		return "", domain.ErrSlotBusy
	}
	return token, nil
}

func (r *RedisLockStore) ReleaseLock(ctx context.Context, key, token string) error {
	if r.client == nil {
		return errors.New("redis client is nil")
	}
	if err := releaseScript.Run(ctx, r.client, []string{key}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to release lock %s: %w", key, err)
	}
	return nil
}

// CheckRateLimit counts a hit in a fixed window and reports whether the
// caller is still within limit.
func (r *RedisLockStore) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if r.client == nil {
		return false, errors.New("redis client is nil")
	}
	count, err := hitScript.Run(ctx, r.client, []string{key}, window.Milliseconds()).Int64()
	if err != nil {
		return false, fmt.Errorf("failed to increment rate limit: %w", err)
	}
	return count <= int64(limit), nil
}

func Ping(ctx context.Context, client *redis.Client) error {
	if _, err := client.Ping(ctx).Result(); err != nil {
		return fmt.Errorf("failed to ping redis: %w", err)
	}
	return nil
}

func Close(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}
