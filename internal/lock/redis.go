package lock

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
)

const (
	defaultKeyPrefix  = "wallet:lock:"
	defaultTTL        = 30 * time.Second
	defaultRetryDelay = 10 * time.Millisecond
	releaseTimeout    = 2 * time.Second
)

// RedisLocker shares account locks between server instances. The TTL bounds
// how long a crashed holder can block an account and must exceed the
// operation timeout.
type RedisLocker struct {
	rs         *redsync.Redsync
	logger     *slog.Logger
	prefix     string
	ttl        time.Duration
	retryDelay time.Duration
}

type RedisOption func(*RedisLocker)

func WithTTL(ttl time.Duration) RedisOption {
	return func(l *RedisLocker) {
		if ttl > 0 {
			l.ttl = ttl
		}
	}
}

func WithRetryDelay(d time.Duration) RedisOption {
	return func(l *RedisLocker) {
		if d > 0 {
			l.retryDelay = d
		}
	}
}

func WithKeyPrefix(prefix string) RedisOption {
	return func(l *RedisLocker) {
		if prefix != "" {
			l.prefix = prefix
		}
	}
}

func NewRedisLocker(client redis.UniversalClient, logger *slog.Logger, opts ...RedisOption) *RedisLocker {
	l := &RedisLocker{
		rs:         redsync.New(goredis.NewPool(client)),
		logger:     logger,
		prefix:     defaultKeyPrefix,
		ttl:        defaultTTL,
		retryDelay: defaultRetryDelay,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Acquire retries each account until it is free or ctx is done.
func (l *RedisLocker) Acquire(ctx context.Context, ids ...int64) (Release, error) {
	ordered := Canonical(ids)
	held := make([]*redsync.Mutex, 0, len(ordered))

	for _, id := range ordered {
		mutex := l.rs.NewMutex(l.key(id),
			redsync.WithExpiry(l.ttl),
			redsync.WithTries(math.MaxInt32),
			redsync.WithRetryDelay(l.retryDelay),
		)
		if err := mutex.LockContext(ctx); err != nil {
			l.unlockAll(held)
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, fmt.Errorf("acquire %s: %w", mutex.Name(), err)
		}
		held = append(held, mutex)
	}

	var once sync.Once
	return func() {
		once.Do(func() { l.unlockAll(held) })
	}, nil
}

func (l *RedisLocker) key(id int64) string {
	return fmt.Sprintf("%s%d", l.prefix, id)
}

func (l *RedisLocker) unlockAll(held []*redsync.Mutex) {
	// The caller's context may already be done; release on a fresh one.
	ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
	defer cancel()

	for i := len(held) - 1; i >= 0; i-- {
		ok, err := held[i].UnlockContext(ctx)
		if err != nil || !ok {
			l.logger.Warn("Account lock was not released", "key", held[i].Name(), "error", err)
		}
	}
}
