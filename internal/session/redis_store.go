package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "formworks:session:"

// RedisStore is a Store backed by Redis. Expiry is delegated to Redis
// TTLs, so abandoned submissions clean themselves up.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a store on the given client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Park saves the submission under the key for at most ttl.
func (s *RedisStore) Park(ctx context.Context, key string, sub *ParkedSubmission, ttl time.Duration) error {
	data, err := json.Marshal(sub)
	if err != nil {
		return fmt.Errorf("encoding parked submission: %w", err)
	}
	if err := s.client.Set(ctx, keyPrefix+key, data, ttl).Err(); err != nil {
		return fmt.Errorf("parking submission: %w", err)
	}
	return nil
}

// Take retrieves and removes the submission for the key.
func (s *RedisStore) Take(ctx context.Context, key string) (*ParkedSubmission, error) {
	data, err := s.client.GetDel(ctx, keyPrefix+key).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("retrieving parked submission: %w", err)
	}

	var sub ParkedSubmission
	if err := json.Unmarshal(data, &sub); err != nil {
		return nil, fmt.Errorf("decoding parked submission: %w", err)
	}
	return &sub, nil
}

// Drop discards whatever is parked under the key.
func (s *RedisStore) Drop(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("dropping parked submission: %w", err)
	}
	return nil
}
