package redis

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/powlax/gamification-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEASE LOCK
// One key per user, set with NX and a TTL. The value is a random token so a
// worker only ever deletes its own lease.
// ══════════════════════════════════════════════════════════════════════════════

// releaseScript deletes the key only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// LeaseLockConfig contains configuration for LeaseLock.
type LeaseLockConfig struct {
	// TTL is the lease length. A crashed holder blocks the user at most this long.
	TTL time.Duration

	// PollInterval is the wait between acquisition attempts.
	PollInterval time.Duration

	Logger *slog.Logger
}

// DefaultLeaseLockConfig returns the default configuration.
func DefaultLeaseLockConfig() LeaseLockConfig {
	return LeaseLockConfig{
		TTL:          TTLUserLock,
		PollInterval: 25 * time.Millisecond,
	}
}

// LeaseLock is a distributed per-user lock.
type LeaseLock struct {
	client redis.UniversalClient
	config LeaseLockConfig
	logger *slog.Logger
}

// NewLeaseLock creates a lease lock on client.
func NewLeaseLock(client redis.UniversalClient, config LeaseLockConfig) *LeaseLock {
	defaults := DefaultLeaseLockConfig()
	if config.TTL <= 0 {
		config.TTL = defaults.TTL
	}
	if config.PollInterval <= 0 {
		config.PollInterval = defaults.PollInterval
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &LeaseLock{
		client: client,
		config: config,
		logger: config.Logger.With("component", "lease_lock"),
	}
}

// Lock polls until the lease is taken or ctx is done.
func (l *LeaseLock) Lock(ctx context.Context, userID shared.UserID) (func(), error) {
	key := LockKey(userID.String())
	token := uuid.NewString()

	ticker := time.NewTicker(l.config.PollInterval)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.config.TTL).Result()
		if err != nil && ctx.Err() == nil {
			return nil, shared.WrapError("lock", "Lock", shared.ErrServiceUnavailable, "redis lease failed", err)
		}
		if ok {
			return l.releaser(key, token), nil
		}

		select {
		case <-ctx.Done():
			return nil, shared.WrapError("lock", "Lock", shared.ErrLockNotAcquired, "gave up waiting for user lease", ctx.Err())
		case <-ticker.C:
		}
	}
}

func (l *LeaseLock) releaser(key, token string) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			// The caller's context may already be cancelled; release anyway.
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()

			n, err := releaseScript.Run(ctx, l.client, []string{key}, token).Int()
			if err != nil {
				l.logger.Warn("failed to release lease", "key", key, "error", err)
				return
			}
			if n == 0 {
				l.logger.Warn("lease expired before release", "key", key)
			}
		})
	}
}
