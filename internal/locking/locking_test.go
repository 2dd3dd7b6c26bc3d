package locking

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconciliationKey(t *testing.T) {
	assert.Equal(t, "reconciliation:12:2024-05", ReconciliationKey(12, "2024-05"))
}

func TestMemoryLocker_ExclusivePerKey(t *testing.T) {
	ctx := context.Background()
	locker := NewMemoryLocker()

	lease, err := locker.Obtain(ctx, "a")
	require.NoError(t, err)

	_, err = locker.Obtain(ctx, "a")
	assert.ErrorIs(t, err, ErrNotObtained)

	other, err := locker.Obtain(ctx, "b")
	require.NoError(t, err)
	require.NoError(t, other.Release(ctx))

	require.NoError(t, lease.Release(ctx))
	again, err := locker.Obtain(ctx, "a")
	require.NoError(t, err)

	// a stale lease must not release the new holder
	require.NoError(t, lease.Release(ctx))
	_, err = locker.Obtain(ctx, "a")
	assert.ErrorIs(t, err, ErrNotObtained)
	require.NoError(t, again.Release(ctx))
}

func TestMemoryLocker_Concurrent(t *testing.T) {
	ctx := context.Background()
	locker := NewMemoryLocker()

	var wg sync.WaitGroup
	var mu sync.Mutex
	obtained := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := locker.Obtain(ctx, "same"); err == nil {
				mu.Lock()
				obtained++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, obtained)
}

func newRedisLocker(t *testing.T, ttl time.Duration) (*RedisLocker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisLocker(rdb, ttl), mr
}

func TestRedisLocker_ExclusivePerKey(t *testing.T) {
	ctx := context.Background()
	locker, mr := newRedisLocker(t, time.Minute)
	key := ReconciliationKey(1, "2024-03")

	lease, err := locker.Obtain(ctx, key)
	require.NoError(t, err)
	assert.True(t, mr.Exists(key))

	_, err = locker.Obtain(ctx, key)
	assert.ErrorIs(t, err, ErrNotObtained)

	other, err := locker.Obtain(ctx, ReconciliationKey(1, "2024-04"))
	require.NoError(t, err)
	require.NoError(t, other.Release(ctx))

	require.NoError(t, lease.Release(ctx))
	assert.False(t, mr.Exists(key))

	again, err := locker.Obtain(ctx, key)
	require.NoError(t, err)
	require.NoError(t, again.Release(ctx))
}

func TestRedisLocker_ExpiredLeaseFreesKey(t *testing.T) {
	ctx := context.Background()
	locker, mr := newRedisLocker(t, time.Hour)
	key := ReconciliationKey(2, "2024-03")

	lease, err := locker.Obtain(ctx, key)
	require.NoError(t, err)

	mr.FastForward(2 * time.Hour)

	next, err := locker.Obtain(ctx, key)
	require.NoError(t, err, "a crashed holder must not block the key forever")
	assert.Error(t, lease.Release(ctx), "the expired lease no longer owns the key")
	assert.True(t, mr.Exists(key))
	require.NoError(t, next.Release(ctx))
}

func TestRedisLocker_RefreshesHeldLease(t *testing.T) {
	ctx := context.Background()
	ttl := 200 * time.Millisecond
	locker, mr := newRedisLocker(t, ttl)
	key := ReconciliationKey(3, "2024-03")

	lease, err := locker.Obtain(ctx, key)
	require.NoError(t, err)

	mr.FastForward(150 * time.Millisecond)
	assert.Eventually(t, func() bool {
		return mr.TTL(key) > 100*time.Millisecond
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, lease.Release(ctx))
	assert.False(t, mr.Exists(key))
}
