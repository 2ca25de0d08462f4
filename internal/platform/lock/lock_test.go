package lock

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

func newTestLocker(t *testing.T, retries int) (*Locker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return New(rdb, Config{TTL: time.Second, RetryInterval: 5 * time.Millisecond, RetryCount: retries}), mr
}

func TestAcquireAndRelease(t *testing.T) {
	locker, mr := newTestLocker(t, 2)
	ctx := context.Background()

	release, err := locker.Acquire(ctx, "invoice:INV07:lock")
	require.NoError(t, err)
	assert.True(t, mr.Exists("invoice:INV07:lock"))

	_, err = locker.Acquire(ctx, "invoice:INV07:lock")
	require.ErrorIs(t, err, ErrNotObtained)

	release()
	assert.False(t, mr.Exists("invoice:INV07:lock"))

	again, err := locker.Acquire(ctx, "invoice:INV07:lock")
	require.NoError(t, err)
	again()
}

func TestAcquireSerializesHolders(t *testing.T) {
	locker, _ := newTestLocker(t, 200)
	ctx := context.Background()

	var (
		mu      sync.Mutex
		inside  int
		maxSeen int
		wg      sync.WaitGroup
	)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := locker.Acquire(ctx, "customer:CUST001:lock")
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			inside++
			maxSeen = max(maxSeen, inside)
			mu.Unlock()
			time.Sleep(10 * time.Millisecond)
			mu.Lock()
			inside--
			mu.Unlock()
			release()
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, maxSeen)
}

func TestNilLockerGrantsEverything(t *testing.T) {
	var locker *Locker
	release, err := locker.Acquire(context.Background(), "anything")
	require.NoError(t, err)
	release()
}
