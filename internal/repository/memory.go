package repository

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"parkspot/internal/domain"
)

type lockEntry struct {
	token     string
	expiresAt time.Time
}

type rateLimitEntry struct {
	count     int
	expiresAt time.Time
}

// MemoryLockStore is the single-process LockStore used when Redis is unavailable.
type MemoryLockStore struct {
	mu         sync.Mutex
	locks      map[string]lockEntry
	rateLimits map[string]*rateLimitEntry
	now        func() time.Time
}

func NewMemoryLockStore() *MemoryLockStore {
	return &MemoryLockStore{
		locks:      make(map[string]lockEntry),
		rateLimits: make(map[string]*rateLimitEntry),
		now:        time.Now,
	}
}

func (r *MemoryLockStore) AcquireLock(_ context.Context, key string, ttl time.Duration) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if held, ok := r.locks[key]; ok && now.Before(held.expiresAt) {
		return "", domain.ErrSlotBusy
	}
	token := uuid.NewString()
	r.locks[key] = lockEntry{token: token, expiresAt: now.Add(ttl)}
	return token, nil
}

func (r *MemoryLockStore) ReleaseLock(_ context.Context, key, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if held, ok := r.locks[key]; ok && held.token == token {
		delete(r.locks, key)
	}
	return nil
}

func (r *MemoryLockStore) CheckRateLimit(_ context.Context, key string, limit int, window time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	entry, ok := r.rateLimits[key]
	if !ok || now.After(entry.expiresAt) {
		entry = &rateLimitEntry{expiresAt: now.Add(window)}
		r.rateLimits[key] = entry
	}
	entry.count++
	return entry.count <= limit, nil
}
