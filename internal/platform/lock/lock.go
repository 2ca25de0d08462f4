// Package lock serializes critical sections across processes with redis.
package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

// ErrNotObtained is returned when the lock is still held after all retries.
var ErrNotObtained = errors.New("lock: not obtained")

// Config tunes lock acquisition.
type Config struct {
	TTL           time.Duration
	RetryInterval time.Duration
	RetryCount    int
	Logger        *slog.Logger
}

// Locker hands out short-lived redis locks. A nil Locker grants every lock.
type Locker struct {
	client   *redislock.Client
	ttl      time.Duration
	interval time.Duration
	retries  int
	logger   *slog.Logger
}

// New constructs a Locker backed by rdb.
func New(rdb redis.UniversalClient, cfg Config) *Locker {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	interval := cfg.RetryInterval
	if interval <= 0 {
		interval = 50 * time.Millisecond
	}
	retries := cfg.RetryCount
	if retries <= 0 {
		retries = 20
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Locker{client: redislock.New(rdb), ttl: ttl, interval: interval, retries: retries, logger: logger}
}

// Acquire blocks until key is locked or retries run out. The returned
// release func is safe to call once the critical section ends.
func (l *Locker) Acquire(ctx context.Context, key string) (func(), error) {
	if l == nil || l.client == nil {
		return func() {}, nil
	}
	lk, err := l.client.Obtain(ctx, key, l.ttl, &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(l.interval), l.retries),
	})
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, fmt.Errorf("%w: %s", ErrNotObtained, key)
	}
	if err != nil {
		return nil, fmt.Errorf("lock: obtain %s: %w", key, err)
	}
	return func() {
		// The section may have outlived its caller's context.
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		if err := lk.Release(releaseCtx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			l.logger.Warn("release lock", slog.String("key", key), slog.Any("error", err))
		}
	}, nil
}
