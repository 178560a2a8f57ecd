package availability

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Locker serialises booking attempts for one doctor and location.
type Locker interface {
	// Lock blocks until key is held or ctx is done. The returned func releases it.
	Lock(ctx context.Context, key string) (func(), error)
}

// KeyedMutex is an in-process Locker. Idle keys are dropped.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	sem  chan struct{}
	refs int
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]*keyedLock)}
}

func (k *KeyedMutex) Lock(ctx context.Context, key string) (func(), error) {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyedLock{sem: make(chan struct{}, 1)}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		k.release(key, l)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-l.sem
			k.release(key, l)
		})
	}, nil
}

func (k *KeyedMutex) release(key string, l *keyedLock) {
	k.mu.Lock()
	defer k.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(k.locks, key)
	}
}

// ErrLockTimeout is returned when a distributed hold could not be acquired in time.
var ErrLockTimeout = errors.New("availability: timed out waiting for booking lock")

// unlockScript deletes the key only if this holder still owns it.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker holds a short-lived SET NX PX key so several API instances
// serialise bookings for the same doctor and location.
type RedisLocker struct {
	redis   *redis.Client
	ttl     time.Duration
	retry   time.Duration
	maxWait time.Duration
	prefix  string
}

// NewRedisLocker creates a locker whose holds expire after ttl.
func NewRedisLocker(client *redis.Client, ttl time.Duration) *RedisLocker {
	if client == nil {
		panic("availability: redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &RedisLocker{
		redis:   client,
		ttl:     ttl,
		retry:   25 * time.Millisecond,
		maxWait: ttl,
		prefix:  "clinic:booking-lock:",
	}
}

func (r *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	redisKey := r.prefix + key
	token := uuid.NewString()
	deadline := time.Now().Add(r.maxWait)

	for {
		ok, err := r.redis.SetNX(ctx, redisKey, token, r.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("availability: acquire lock: %w", err)
		}
		if ok {
			break
		}
		if time.Now().After(deadline) {
			return nil, ErrLockTimeout
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(r.retry):
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// Release even if the caller's context was cancelled.
			releaseCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			_ = unlockScript.Run(releaseCtx, r.redis, []string{redisKey}, token).Err()
		})
	}, nil
}
