package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Degefa-Gomora/evangadiForum1/internal/domain"
)

// ErrCacheMiss is returned when a key is not present.
var ErrCacheMiss = errors.New("cache miss")

// Config holds redis connection settings for the history cache.
type Config struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// RedisHistoryCache implements HistoryCache over redis.
type RedisHistoryCache struct {
	client *redis.Client
	prefix string
}

// NewRedisHistoryCache connects to redis and verifies the connection.
func NewRedisHistoryCache(cfg Config) (*RedisHistoryCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisHistoryCache{
		client: client,
		prefix: cfg.Prefix,
	}, nil
}

func (c *RedisHistoryCache) BuildKey(roomID string, visibility domain.Visibility, limit int, before time.Time) string {
	return fmt.Sprintf("%s:%s:%s:%d:%d", c.prefix, roomID, visibility, limit, before.UnixMilli())
}

func (c *RedisHistoryCache) Get(ctx context.Context, key string) (*HistoryPage, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("failed to get from redis: %w", err)
	}

	var page HistoryPage
	if err := json.Unmarshal(data, &page); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached page: %w", err)
	}
	return &page, nil
}

func (c *RedisHistoryCache) Set(ctx context.Context, key string, page *HistoryPage, ttl time.Duration) error {
	data, err := json.Marshal(page)
	if err != nil {
		return fmt.Errorf("failed to marshal page: %w", err)
	}

	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set in redis: %w", err)
	}
	return nil
}

func (c *RedisHistoryCache) Close() error {
	return c.client.Close()
}
