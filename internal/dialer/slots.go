package dialer

import (
	"context"
	"sync"
	"time"

	"callmonitor/pkg/utils"

	"github.com/redis/go-redis/v9"
)

// SlotLimiter caps concurrently placed carrier dials per organization. A
// slot is held from just before carrier contact until the call reaches a
// terminal state.
type SlotLimiter interface {
	Acquire(ctx context.Context, organizationID string) (bool, error)
	Release(ctx context.Context, organizationID string) error
}

// RedisSlotLimiter shares the cap across orchestrator instances. The TTL
// reclaims slots leaked by a crashed process.
type RedisSlotLimiter struct {
	rdb   *redis.Client
	limit int
	ttl   time.Duration
}

func NewRedisSlotLimiter(rdb *redis.Client, limit int, ttl time.Duration) *RedisSlotLimiter {
	return &RedisSlotLimiter{rdb: rdb, limit: limit, ttl: ttl}
}

func (l *RedisSlotLimiter) key(organizationID string) string {
	return "dialer:slots:" + organizationID
}

func (l *RedisSlotLimiter) Acquire(ctx context.Context, organizationID string) (bool, error) {
	return utils.AcquireConcurrencyCap(ctx, l.rdb, l.key(organizationID), l.limit, l.ttl)
}

func (l *RedisSlotLimiter) Release(ctx context.Context, organizationID string) error {
	return utils.ReleaseConcurrencyCap(ctx, l.rdb, l.key(organizationID))
}

// MemorySlotLimiter is a single-process SlotLimiter useful for tests.
type MemorySlotLimiter struct {
	mu    sync.Mutex
	limit int
	held  map[string]int
}

func NewMemorySlotLimiter(limit int) *MemorySlotLimiter {
	return &MemorySlotLimiter{limit: limit, held: make(map[string]int)}
}

func (l *MemorySlotLimiter) Acquire(ctx context.Context, organizationID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[organizationID] >= l.limit {
		return false, nil
	}
	l.held[organizationID]++
	return true, nil
}

func (l *MemorySlotLimiter) Release(ctx context.Context, organizationID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[organizationID] > 0 {
		l.held[organizationID]--
	}
	return nil
}

// Held reports currently held slots; test helper.
func (l *MemorySlotLimiter) Held(organizationID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.held[organizationID]
}
