package lockx

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const releaseScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`

type Lock struct {
	Key   string
	Token string
	TTL   time.Duration
}

func Acquire(ctx context.Context, client *redis.Client, key string, ttl time.Duration) (*Lock, bool, error) {
	if client == nil {
		return nil, false, errors.New("redis client not initialized")
	}
	if ttl <= 0 {
		return nil, false, errors.New("ttl must be > 0")
	}
	token := uuid.NewString()
	ok, err := client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	return &Lock{Key: key, Token: token, TTL: ttl}, true, nil
}

func Release(ctx context.Context, client *redis.Client, lock *Lock) error {
	if client == nil {
		return errors.New("redis client not initialized")
	}
	if lock == nil {
		return errors.New("lock is nil")
	}
	return client.Eval(ctx, releaseScript, []string{lock.Key}, lock.Token).Err()
}

// Mutex is a named distributed lock with a fixed TTL. A holder that crashes
// releases implicitly when the TTL expires.
type Mutex struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

func NewMutex(client *redis.Client, key string, ttl time.Duration) *Mutex {
	return &Mutex{client: client, key: key, ttl: ttl}
}

// TryLock returns ok=false without error when another holder owns the key.
func (m *Mutex) TryLock(ctx context.Context) (func(context.Context) error, bool, error) {
	lock, ok, err := Acquire(ctx, m.client, m.key, m.ttl)
	if err != nil || !ok {
		return nil, ok, err
	}
	return func(ctx context.Context) error {
		return Release(ctx, m.client, lock)
	}, true, nil
}
