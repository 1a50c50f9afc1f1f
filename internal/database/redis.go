package database

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisClients splits visitor state from the job queue. Queue workers sit in
// BLPOP, so they get their own connection pool.
type RedisClients struct {
	State *redis.Client
	Queue *redis.Client
}

func NewRedisClients(ctx context.Context, redisURL string) (*RedisClients, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	stateClient := redis.NewClient(opt)
	if err := stateClient.Ping(ctx).Err(); err != nil {
		stateClient.Close()
		return nil, fmt.Errorf("failed to ping Redis (state): %w", err)
	}

	// Queue client (separate connection)
	queueOpt := *opt
	queueClient := redis.NewClient(&queueOpt)
	if err := queueClient.Ping(ctx).Err(); err != nil {
		stateClient.Close()
		queueClient.Close()
		return nil, fmt.Errorf("failed to ping Redis (queue): %w", err)
	}

	return &RedisClients{
		State: stateClient,
		Queue: queueClient,
	}, nil
}

func (r *RedisClients) Close() {
	r.State.Close()
	r.Queue.Close()
}
