package seen

import (
	"context"
	"sync/atomic"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps seen keys in a single redis set
type RedisStore struct {
	client *redis.Client
	setKey string
	added  atomic.Int64
}

// NewRedisStore creates a store that uses the set named setKey
func NewRedisStore(client *redis.Client, setKey string) *RedisStore {
	return &RedisStore{client: client, setKey: setKey}
}

// Add records key and reports whether it was new
func (s *RedisStore) Add(ctx context.Context, key string) (bool, error) {
	n, err := s.client.SAdd(ctx, s.setKey, key).Result()
	if err != nil {
		return false, err
	}
	if n == 1 {
		s.added.Add(1)
	}
	return n == 1, nil
}

// Contains reports whether key was recorded
func (s *RedisStore) Contains(ctx context.Context, key string) (bool, error) {
	return s.client.SIsMember(ctx, s.setKey, key).Result()
}

// Len returns the number of keys added by this process
func (s *RedisStore) Len() int {
	return int(s.added.Load())
}
