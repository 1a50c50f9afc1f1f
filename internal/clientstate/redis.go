package clientstate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisProvider keeps each visitor's entries in one hash: ekaai:state:<visitor>.
type RedisProvider struct {
	client *redis.Client
	sealer *Sealer
	ttl    time.Duration
}

func NewRedisProvider(client *redis.Client, sealer *Sealer, ttl time.Duration) *RedisProvider {
	return &RedisProvider{client: client, sealer: sealer, ttl: ttl}
}

func (p *RedisProvider) For(visitorID string) Storage {
	return &redisStorage{p: p, visitor: visitorID, hash: "ekaai:state:" + visitorID}
}

type redisStorage struct {
	p       *RedisProvider
	visitor string
	hash    string
}

func (s *redisStorage) Get(ctx context.Context, key string) (string, error) {
	sealed, err := s.p.client.HGet(ctx, s.hash, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("clientstate: get %s: %w", key, err)
	}
	v, err := s.p.sealer.Open(sealed, s.visitor+"/"+key)
	if err != nil {
		// A value we cannot open is as good as absent.
		s.p.client.HDel(ctx, s.hash, key)
		return "", ErrNotFound
	}
	return v, nil
}

func (s *redisStorage) Set(ctx context.Context, key, value string) error {
	sealed, err := s.p.sealer.Seal(value, s.visitor+"/"+key)
	if err != nil {
		return fmt.Errorf("clientstate: seal %s: %w", key, err)
	}
	pipe := s.p.client.TxPipeline()
	pipe.HSet(ctx, s.hash, key, sealed)
	if s.p.ttl > 0 {
		pipe.Expire(ctx, s.hash, s.p.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("clientstate: set %s: %w", key, err)
	}
	return nil
}

func (s *redisStorage) Remove(ctx context.Context, key string) error {
	if err := s.p.client.HDel(ctx, s.hash, key).Err(); err != nil {
		return fmt.Errorf("clientstate: remove %s: %w", key, err)
	}
	return nil
}

func (s *redisStorage) Clear(ctx context.Context) error {
	if err := s.p.client.Del(ctx, s.hash).Err(); err != nil {
		return fmt.Errorf("clientstate: clear: %w", err)
	}
	return nil
}
