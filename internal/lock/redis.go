package lock

import (
	"context"
	"fmt"
	"time"

	r "github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

const (
	keyPrefix    = "invisifeed:lock:"
	pollInterval = 50 * time.Millisecond
)

// compare-and-delete runs atomically on the server
const unlockScript = `if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`

// RedisClient is the subset of the go-redis client the lock needs
type RedisClient interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *r.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *r.Cmd
}

// Redis serializes holders of the same key across service instances.
// The TTL bounds how long a crashed holder can block others.
type Redis struct {
	client RedisClient
	ttl    time.Duration
}

func NewRedisClient(host, port, password string) (*r.Client, error) {
	client := r.NewClient(&r.Options{
		Addr:     host + ":" + port,
		Password: password,
		DB:       0,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

func NewRedis(client RedisClient, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &Redis{client: client, ttl: ttl}
}

func (l *Redis) Lock(ctx context.Context, key string) (func(), error) {
	name := keyPrefix + key
	token := uuid.NewString()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		ok, err := l.client.SetNX(ctx, name, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("redis lock %s: %w", key, err)
		}
		if ok {
			return func() { l.unlock(name, token) }, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// unlock deletes the key only while it still carries our token
func (l *Redis) unlock(name, token string) {
	_ = l.client.Eval(context.Background(), unlockScript, []string{name}, token).Err()
}
