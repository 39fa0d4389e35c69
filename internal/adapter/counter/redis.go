package counter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps window counters in Redis. SET with expiry is a single
// atomic command, so overlapping runs replacing the same key cannot leave
// it without a TTL.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a counter store over an existing Redis client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Get returns the stored mention count for (token, window). A missing or
// expired key reads as 0.
func (s *RedisStore) Get(ctx context.Context, token, window string) (int, error) {
	count, err := s.client.Get(ctx, counterKey(token, window)).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("counter get %s: %w", counterKey(token, window), err)
	}
	return count, nil
}

// SetWithTTL stores the mention count for (token, window), replacing any
// prior value and resetting the expiry.
func (s *RedisStore) SetWithTTL(ctx context.Context, token, window string, count int, ttl time.Duration) error {
	if err := s.client.Set(ctx, counterKey(token, window), count, ttl).Err(); err != nil {
		return fmt.Errorf("counter set %s: %w", counterKey(token, window), err)
	}
	return nil
}

func counterKey(token, window string) string {
	return fmt.Sprintf("topic:%s:%s", token, window)
}
