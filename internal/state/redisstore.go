package state

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/y0ug/ipamon/internal/state/models"
)

// RedisStore implements the Store interface using Redis. Useful when several
// instances of the daemon share dispatch bookkeeping.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore initializes a RedisStore and verifies connectivity.
func NewRedisStore(cfg Config) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPass,
		DB:       cfg.RedisDB,
	})

	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisStore{client: rdb}, nil
}

func channelKey(channel string) string {
	return fmt.Sprintf("channel:%s", channel)
}

// Initialize is a no-op; Redis is schema-less.
func (r *RedisStore) Initialize(ctx context.Context) error {
	return nil
}

// ChannelState retrieves the state for a channel.
func (r *RedisStore) ChannelState(ctx context.Context, channel string) (models.ChannelState, error) {
	val, err := r.client.Get(ctx, channelKey(channel)).Result()
	if err == redis.Nil {
		state := models.ChannelState{}
		state.Normalize()
		return state, nil
	}
	if err != nil {
		return models.ChannelState{}, err
	}

	return models.DecodeChannelState([]byte(val)), nil
}

// SetChannelState replaces the state for a channel.
func (r *RedisStore) SetChannelState(ctx context.Context, channel string, state models.ChannelState) error {
	state.Normalize()

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal channel state: %w", err)
	}

	return r.client.Set(ctx, channelKey(channel), data, 0).Err()
}

// Close closes the Redis connection.
func (r *RedisStore) Close(ctx context.Context) error {
	return r.client.Close()
}
