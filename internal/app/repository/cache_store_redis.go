package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/quicktrends/couponfunnel/internal/app/model"
	"github.com/redis/go-redis/v9"
)

const redisCacheKeyPrefix = "related"

type redisCacheStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCacheStore returns a CacheStore backed by Redis. Entry lifetime is
// delegated to Redis key expiry, so a hit is always within the TTL window.
func NewRedisCacheStore(client *redis.Client, ttl time.Duration) CacheStore {
	return &redisCacheStore{client: client, ttl: ttl}
}

func (s *redisCacheStore) Get(ctx context.Context, key string) (*model.RecommendationEntry, error) {
	data, err := s.client.Get(ctx, redisCacheKeyPrefix+":"+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var entry model.RecommendationEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("parse cached entry: %w", err)
	}
	return &entry, nil
}

func (s *redisCacheStore) Set(ctx context.Context, key string, entry *model.RecommendationEntry) error {
	if entry == nil {
		return nil
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	if err := s.client.Set(ctx, redisCacheKeyPrefix+":"+key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}
