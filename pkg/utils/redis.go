package utils

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisConfig controls redis client behavior.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	PoolSize     int
	MinIdleConns int

	PingTimeout time.Duration
}

func (c RedisConfig) withDefaults() RedisConfig {
	out := c
	if out.DialTimeout <= 0 {
		out.DialTimeout = 3 * time.Second
	}
	if out.ReadTimeout <= 0 {
		out.ReadTimeout = 2 * time.Second
	}
	if out.WriteTimeout <= 0 {
		out.WriteTimeout = 2 * time.Second
	}
	if out.PoolSize <= 0 {
		out.PoolSize = 10
	}
	if out.MinIdleConns < 0 {
		out.MinIdleConns = 0
	}
	if out.PingTimeout <= 0 {
		out.PingTimeout = 2 * time.Second
	}
	return out
}

// OpenRedis builds a client and checks connectivity with PING.
func OpenRedis(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	cfg = cfg.withDefaults()
	if cfg.Addr == "" {
		return nil, errors.New("redis addr is required")
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
	})

	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return rdb, nil
}

// KEYS[1] = lock key, ARGV[1] = owner token, ARGV[2] = ttl_ms.
// Returns 1 when the lock was taken.
var runLockAcquireScript = redis.NewScript(`
if redis.call('SET', KEYS[1], ARGV[1], 'NX', 'PX', ARGV[2]) then
  return 1
end
return 0
`)

// Deletes the key only while it still holds our token, so an expired lock
// taken over by another run is never released by us.
var runLockReleaseScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
  return redis.call('DEL', KEYS[1])
end
return 0
`)

// RunLock is a per-key mutual exclusion lease in Redis. The TTL bounds how
// long a crashed holder can block others.
type RunLock struct {
	rdb    *redis.Client
	prefix string
	log    *slog.Logger
}

func NewRunLock(rdb *redis.Client, prefix string, log *slog.Logger) *RunLock {
	if log == nil {
		log = slog.Default()
	}
	return &RunLock{rdb: rdb, prefix: prefix, log: log}
}

// TryLock takes the lease for key. ok is false when another holder has it.
// The returned release func is safe to call once the work is done.
func (l *RunLock) TryLock(ctx context.Context, key string, ttl time.Duration) (release func(), ok bool, err error) {
	if l == nil || l.rdb == nil {
		return nil, false, errors.New("redis client is nil")
	}
	if key == "" {
		return nil, false, errors.New("key is required")
	}
	if ttl <= 0 {
		return nil, false, errors.New("ttl must be > 0")
	}

	full := l.prefix + key
	token := uuid.NewString()
	res, err := runLockAcquireScript.Run(ctx, l.rdb, []string{full}, token, ttl.Milliseconds()).Int()
	if err != nil {
		return nil, false, err
	}
	if res != 1 {
		return nil, false, nil
	}

	release = func() {
		// the caller's ctx may already be done
		rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := runLockReleaseScript.Run(rctx, l.rdb, []string{full}, token).Err(); err != nil {
			l.log.Warn("run lock release failed", "key", full, "err", err)
		}
	}
	return release, true, nil
}

// OnceGuard remembers keys for a TTL with SET NX. Redis errors fail open:
// the key is treated as new and the error is logged.
type OnceGuard struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
	log    *slog.Logger
}

func NewOnceGuard(rdb *redis.Client, prefix string, ttl time.Duration, log *slog.Logger) *OnceGuard {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if log == nil {
		log = slog.Default()
	}
	return &OnceGuard{rdb: rdb, prefix: prefix, ttl: ttl, log: log}
}

// AcquireOnce reports whether key is seen for the first time.
func (g *OnceGuard) AcquireOnce(ctx context.Context, key string) bool {
	if g == nil || g.rdb == nil {
		return true
	}
	ok, err := g.rdb.SetNX(ctx, g.prefix+key, 1, g.ttl).Result()
	if err != nil {
		g.log.Warn("dedupe check failed, processing anyway", "key", key, "err", err)
		return true
	}
	return ok
}

// Release forgets key so a later delivery is processed again.
func (g *OnceGuard) Release(ctx context.Context, key string) {
	if g == nil || g.rdb == nil {
		return
	}
	if err := g.rdb.Del(ctx, g.prefix+key).Err(); err != nil {
		g.log.Warn("dedupe release failed", "key", key, "err", err)
	}
}
