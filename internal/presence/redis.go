package presence

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const redisKey = "sphere:presence"

// RedisRegistry keeps the presence set in a Redis hash (userID -> connID) so
// multiple instances observe the same view. Same call contract as the
// in-memory registry.
type RedisRegistry struct {
	client *redis.Client
}

func NewRedisRegistry(ctx context.Context, addr string) (*RedisRegistry, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &RedisRegistry{client: client}, nil
}

func (r *RedisRegistry) Close() error {
	return r.client.Close()
}

func (r *RedisRegistry) Register(ctx context.Context, userID, connID string) error {
	// HSetNX gives first-writer-wins across instances.
	return r.client.HSetNX(ctx, redisKey, userID, connID).Err()
}

func (r *RedisRegistry) Unregister(ctx context.Context, connID string) error {
	all, err := r.client.HGetAll(ctx, redisKey).Result()
	if err != nil {
		return err
	}
	for userID, id := range all {
		if id == connID {
			if err := r.client.HDel(ctx, redisKey, userID).Err(); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *RedisRegistry) List(ctx context.Context) ([]Entry, error) {
	all, err := r.client.HGetAll(ctx, redisKey).Result()
	if err != nil {
		return nil, err
	}
	entries := make(map[string]Entry, len(all))
	for userID, connID := range all {
		entries[userID] = Entry{UserID: userID, ConnID: connID}
	}
	return sortEntries(entries), nil
}
