package handshake

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"scenergy-commerce-layer/internal/domain"
	"scenergy-commerce-layer/internal/ports"
)

const redisKeyPrefix = "handshake:"

// RedisStore keeps handshake states in Redis so any instance behind a load
// balancer can complete a callback started by another. Expiry is enforced by
// the key TTL.
type RedisStore struct {
	client *redis.Client
	now    func() time.Time
}

var _ ports.HandshakeStore = (*RedisStore)(nil)

// NewRedisStore creates a Redis-backed handshake store.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{
		client: client,
		now:    time.Now,
	}
}

// Put stores a state with a TTL matching its remaining lifetime.
func (s *RedisStore) Put(ctx context.Context, state *domain.AuthHandshakeState) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to serialize handshake state: %w", err)
	}

	ttl := state.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return fmt.Errorf("handshake state %s is already expired", state.ID)
	}

	if err := s.client.Set(ctx, redisKeyPrefix+state.ID, payload, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store handshake state: %w", err)
	}
	return nil
}

// Get returns the state for id, or (nil, nil) when missing or expired. Redis
// TTL covers most expiry; the explicit check guards clock skew between the
// writing and reading instance.
func (s *RedisStore) Get(ctx context.Context, id string) (*domain.AuthHandshakeState, error) {
	payload, err := s.client.Get(ctx, redisKeyPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load handshake state: %w", err)
	}

	var state domain.AuthHandshakeState
	if err := json.Unmarshal(payload, &state); err != nil {
		return nil, fmt.Errorf("failed to deserialize handshake state: %w", err)
	}

	if state.Expired(s.now()) {
		_ = s.client.Del(ctx, redisKeyPrefix+id).Err()
		return nil, nil
	}
	return &state, nil
}

// Delete removes a state. Deleting an absent id is a no-op.
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, redisKeyPrefix+id).Err(); err != nil {
		return fmt.Errorf("failed to delete handshake state: %w", err)
	}
	return nil
}
