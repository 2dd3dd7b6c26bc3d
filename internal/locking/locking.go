// Package locking serializes reconciliation runs per terminal and period.
package locking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

// ErrNotObtained is returned when another run holds the key.
var ErrNotObtained = errors.New("lock not obtained")

// Lease is a held lock.
type Lease interface {
	Release(ctx context.Context) error
}

// Locker hands out non-blocking, exclusive leases per key.
type Locker interface {
	Obtain(ctx context.Context, key string) (Lease, error)
}

// ReconciliationKey is the lock key of a (terminal, period) pair.
func ReconciliationKey(terminalID uint, period string) string {
	return fmt.Sprintf("reconciliation:%d:%s", terminalID, period)
}

// RedisLocker shares locks across service instances. A held lease is
// refreshed every half TTL until released, so runs may outlive the TTL
// while a crashed instance still frees its keys.
type RedisLocker struct {
	client *redislock.Client
	ttl    time.Duration
}

func NewRedisLocker(rdb *redis.Client, ttl time.Duration) *RedisLocker {
	return &RedisLocker{client: redislock.New(rdb), ttl: ttl}
}

func (l *RedisLocker) Obtain(ctx context.Context, key string) (Lease, error) {
	lock, err := l.client.Obtain(ctx, key, l.ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, ErrNotObtained
	}
	if err != nil {
		return nil, fmt.Errorf("obtaining lock %s: %w", key, err)
	}

	lease := &redisLease{lock: lock, stop: make(chan struct{}), done: make(chan struct{})}
	go lease.keepAlive(l.ttl)
	return lease, nil
}

type redisLease struct {
	lock *redislock.Lock
	stop chan struct{}
	done chan struct{}
	once sync.Once
}

func (r *redisLease) keepAlive(ttl time.Duration) {
	defer close(r.done)
	interval := ttl / 2
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			// a failed refresh leaves the key to expire
			if err := r.lock.Refresh(context.Background(), ttl, nil); err != nil {
				return
			}
		}
	}
}

func (r *redisLease) Release(ctx context.Context) error {
	r.once.Do(func() { close(r.stop) })
	<-r.done
	if err := r.lock.Release(ctx); err != nil {
		return fmt.Errorf("releasing lock %s: %w", r.lock.Key(), err)
	}
	return nil
}

// MemoryLocker is the single-instance fallback used when Redis is not configured.
type MemoryLocker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{held: make(map[string]struct{})}
}

func (l *MemoryLocker) Obtain(_ context.Context, key string) (Lease, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[key]; ok {
		return nil, ErrNotObtained
	}
	l.held[key] = struct{}{}
	return &memoryLease{locker: l, key: key}, nil
}

type memoryLease struct {
	locker *MemoryLocker
	key    string
	once   sync.Once
}

func (m *memoryLease) Release(context.Context) error {
	m.once.Do(func() {
		m.locker.mu.Lock()
		delete(m.locker.held, m.key)
		m.locker.mu.Unlock()
	})
	return nil
}
