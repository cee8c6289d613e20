package query

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "orchconsole:query:"

// RedisBackend shares the cache between console replicas.
type RedisBackend struct {
	client *redis.Client
	ttl    time.Duration
}

type redisEntry struct {
	At   int64           `json:"at"`
	Data json.RawMessage `json:"data"`
}

// NewRedisBackend stores entries with the given TTL; zero keeps them until
// invalidated.
func NewRedisBackend(client *redis.Client, ttl time.Duration) *RedisBackend {
	return &RedisBackend{client: client, ttl: ttl}
}

// DialRedis connects and pings the server.
func DialRedis(ctx context.Context, addr, password string, db int, ttl time.Duration) (*RedisBackend, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return NewRedisBackend(client, ttl), nil
}

func (r *RedisBackend) Get(ctx context.Context, key string) ([]byte, time.Time, bool, error) {
	raw, err := r.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if err == redis.Nil {
		return nil, time.Time{}, false, nil
	}
	if err != nil {
		return nil, time.Time{}, false, err
	}
	var e redisEntry
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, time.Time{}, false, err
	}
	return e.Data, time.Unix(0, e.At), true, nil
}

func (r *RedisBackend) Set(ctx context.Context, key string, data []byte, at time.Time) error {
	raw, err := json.Marshal(redisEntry{At: at.UnixNano(), Data: data})
	if err != nil {
		return err
	}
	return r.client.Set(ctx, redisKeyPrefix+key, raw, r.ttl).Err()
}

// DeletePrefix removes the exact key and every key below it with SCAN + DEL.
func (r *RedisBackend) DeletePrefix(ctx context.Context, prefix string) error {
	pattern := redisKeyPrefix + "*"
	var exact []string
	if prefix != "" {
		pattern = globEscape(redisKeyPrefix+prefix) + "/*"
		exact = append(exact, redisKeyPrefix+prefix)
	}

	keys := exact
	iter := r.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	pipe := r.client.Pipeline()
	for i := 0; i < len(keys); i += 100 {
		end := min(i+100, len(keys))
		pipe.Del(ctx, keys[i:end]...)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (r *RedisBackend) Close() error {
	return r.client.Close()
}

func globEscape(s string) string {
	var b strings.Builder
	for _, c := range s {
		switch c {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(c)
	}
	return b.String()
}
