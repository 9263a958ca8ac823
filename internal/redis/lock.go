package redisclient

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrLockNotAcquired = errors.New("slot lock not acquired")
	// ErrLockUnavailable means the lock store could not be reached; fn was not run.
	ErrLockUnavailable = errors.New("slot lock store unavailable")
)

// Locker is used by the appointment service to guard critical sections per slot
type Locker interface {
	WithSlotLock(ctx context.Context, slotKey string, fn func(ctx context.Context) error) error
}

// SlotKey names the lock for one doctor/date/time triple.
func SlotKey(doctorID, slotDate, slotTime string) string {
	return fmt.Sprintf("lock:slot:%s:%s:%s", doctorID, slotDate, slotTime)
}

type redisSlotLocker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisSlotLocker creates a locker that uses a per slot Redis key
func NewRedisSlotLocker(client *redis.Client, ttl time.Duration) Locker {
	return &redisSlotLocker{
		client: client,
		ttl:    ttl,
	}
}

func (l *redisSlotLocker) WithSlotLock(ctx context.Context, slotKey string, fn func(ctx context.Context) error) error {
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, slotKey, token, l.ttl).Result()
	if err != nil {
		return fmt.Errorf("acquire slot lock: %w: %w", ErrLockUnavailable, err)
	}
	if !ok {
		return ErrLockNotAcquired
	}

	defer func() {
		// release with a fresh context so a cancelled request still frees the key
		relCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = l.release(relCtx, slotKey, token)
	}()

	ctxWithTimeout, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()

	return fn(ctxWithTimeout)
}

var unlockScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if val == ARGV[1] then
  return redis.call("DEL", KEYS[1])
else
  return 0
end
`)

func (l *redisSlotLocker) release(ctx context.Context, key, token string) error {
	_, err := unlockScript.Run(ctx, l.client, []string{key}, token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release slot lock: %w", err)
	}
	return nil
}

// localSlotLocker is the single-process fallback used with the memory store.
type localSlotLocker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewLocalSlotLocker() Locker {
	return &localSlotLocker{held: make(map[string]struct{})}
}

func (l *localSlotLocker) WithSlotLock(ctx context.Context, slotKey string, fn func(ctx context.Context) error) error {
	l.mu.Lock()
	if _, busy := l.held[slotKey]; busy {
		l.mu.Unlock()
		return ErrLockNotAcquired
	}
	l.held[slotKey] = struct{}{}
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		delete(l.held, slotKey)
		l.mu.Unlock()
	}()

	return fn(ctx)
}
