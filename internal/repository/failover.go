package repository

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"parkspot/internal/domain"
)

const recoveryInterval = time.Minute

// FailoverLockStore uses the primary store until it errors, then serves from
// the fallback and retries the primary once a minute.
type FailoverLockStore struct {
	primary   domain.LockStore
	fallback  domain.LockStore
	logger    *zerolog.Logger
	isDown    atomic.Bool
	lastCheck atomic.Int64
}

func NewFailoverLockStore(primary, fallback domain.LockStore, logger *zerolog.Logger) *FailoverLockStore {
	return &FailoverLockStore{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

func (r *FailoverLockStore) markDown(err error) {
	if !r.isDown.Swap(true) {
		r.logger.Error().Err(err).Msg("primary lock store failed, falling back to memory")
	}
	r.lastCheck.Store(time.Now().UnixNano())
}

// usePrimary reports whether the next call should go to the primary store.
func (r *FailoverLockStore) usePrimary() bool {
	if !r.isDown.Load() {
		return true
	}
	return time.Since(time.Unix(0, r.lastCheck.Load())) > recoveryInterval
}

func (r *FailoverLockStore) recovered() {
	if r.isDown.Swap(false) {
		r.logger.Info().Msg("primary lock store recovered")
	}
}

func (r *FailoverLockStore) AcquireLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if r.usePrimary() {
		token, err := r.primary.AcquireLock(ctx, key, ttl)
		if err == nil || errors.Is(err, domain.ErrSlotBusy) {
			r.recovered()
			return token, err
		}
		r.markDown(err)
	}
	return r.fallback.AcquireLock(ctx, key, ttl)
}

// ReleaseLock releases on both stores; only the holder of token can delete a lock.
func (r *FailoverLockStore) ReleaseLock(ctx context.Context, key, token string) error {
	if !r.isDown.Load() {
		if err := r.primary.ReleaseLock(ctx, key, token); err != nil {
			r.markDown(err)
		}
	}
	return r.fallback.ReleaseLock(ctx, key, token)
}

func (r *FailoverLockStore) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if r.usePrimary() {
		allowed, err := r.primary.CheckRateLimit(ctx, key, limit, window)
		if err == nil {
			r.recovered()
			return allowed, nil
		}
		r.markDown(err)
	}
	return r.fallback.CheckRateLimit(ctx, key, limit, window)
}
