package idempotency

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store answers "was this key claimed before" with a single SetNX, claiming
// it as a side effect of the first ask.
type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewStore(rdb *redis.Client, ttl time.Duration) *Store {
	return &Store{rdb: rdb, ttl: ttl}
}

func (s *Store) Seen(ctx context.Context, key string) (bool, error) {
	ok, err := s.rdb.SetNX(ctx, key, "1", s.ttl).Result()
	if err != nil {
		return false, err
	}
	return !ok, nil
}
