package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"rede/internal/models"

	"github.com/redis/go-redis/v9"
)

// CacheService wraps Redis with JSON encoding and the key conventions used
// across the engine. Cached entries are throwaway copies; Postgres stays the
// source of truth.
type CacheService struct {
	client *redis.Client
	ttl    time.Duration
}

func NewCacheService(client *redis.Client, defaultTTL time.Duration) *CacheService {
	return &CacheService{
		client: client,
		ttl:    defaultTTL,
	}
}

// Base operations
func (s *CacheService) Set(ctx context.Context, key string, value interface{}) error {
	return s.SetWithTTL(ctx, key, value, s.ttl)
}

func (s *CacheService) SetWithTTL(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache value: %w", err)
	}
	return s.client.Set(ctx, key, data, ttl).Err()
}

func (s *CacheService) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return false, nil
		}
		return false, fmt.Errorf("failed to get cache value: %w", err)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("failed to unmarshal cache value: %w", err)
	}
	return true, nil
}

func (s *CacheService) Delete(ctx context.Context, keys ...string) error {
	return s.client.Del(ctx, keys...).Err()
}

// GenerateKey builds a namespaced cache key.
func (s *CacheService) GenerateKey(entityType, keyType string, value interface{}) string {
	return fmt.Sprintf("%s:%s:%v", entityType, keyType, value)
}

// Settings caching. The settings row is hot-reloadable: updates write
// through and invalidate so every evaluation sees fresh rates.
const settingsKey = "settings:commission"

func (s *CacheService) CacheSettings(ctx context.Context, settings *models.CommissionSettings, ttl time.Duration) error {
	return s.SetWithTTL(ctx, settingsKey, settings, ttl)
}

func (s *CacheService) GetSettings(ctx context.Context) (*models.CommissionSettings, error) {
	var settings models.CommissionSettings
	found, err := s.Get(ctx, settingsKey, &settings)
	if err != nil || !found {
		return nil, err
	}
	return &settings, nil
}

func (s *CacheService) InvalidateSettings(ctx context.Context) error {
	return s.Delete(ctx, settingsKey)
}

// Summary caching, invalidated on every balance mutation for the user.
func (s *CacheService) SummaryKey(userID uint) string {
	return s.GenerateKey("summary", "user", userID)
}

func (s *CacheService) InvalidateSummary(ctx context.Context, userID uint) error {
	return s.Delete(ctx, s.SummaryKey(userID))
}

// FlushAll flushes all keys from the cache
func (s *CacheService) FlushAll(ctx context.Context) error {
	return s.client.FlushAll(ctx).Err()
}

// Close closes the Redis client connection
func (s *CacheService) Close() error {
	return s.client.Close()
}
