package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/example/shopfront/pkg/apperr"
	"github.com/example/shopfront/pkg/config"
	"github.com/example/shopfront/pkg/models"
	"github.com/go-redis/redis/v8"
)

type RedisRepository struct {
	client *redis.Client
	config *config.RedisConfig
}

func NewRedisRepository(cfg *config.RedisConfig) *RedisRepository {
	return &RedisRepository{
		client: redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
			PoolSize: cfg.PoolSize,
		}),
		config: cfg,
	}
}

// NewRedisRepositoryWithClient wraps an existing client, e.g. one pointed at
// an in-process server in tests.
func NewRedisRepositoryWithClient(client *redis.Client) *RedisRepository {
	return &RedisRepository{client: client, config: &config.RedisConfig{}}
}

func (r *RedisRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisRepository) Del(ctx context.Context, keys ...string) error {
	return r.client.Del(ctx, keys...).Err()
}

func (r *RedisRepository) SetJSON(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, key, data, expiration).Err()
}

func (r *RedisRepository) GetJSON(ctx context.Context, key string, dest interface{}) error {
	data, err := r.client.Get(ctx, key).Result()
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(data), dest)
}

func (r *RedisRepository) Close() error {
	return r.client.Close()
}

func sessionKey(token string) string {
	return fmt.Sprintf("session:%s", token)
}

// SaveSession stores s under token, replacing any previous value and
// restarting its expiry.
func (r *RedisRepository) SaveSession(ctx context.Context, token string, s *models.Session, ttl time.Duration) error {
	return r.SetJSON(ctx, sessionKey(token), s, ttl)
}

func (r *RedisRepository) LoadSession(ctx context.Context, token string) (*models.Session, error) {
	var s models.Session
	if err := r.GetJSON(ctx, sessionKey(token), &s); err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, apperr.NotFound("session")
		}
		return nil, err
	}
	return &s, nil
}

func (r *RedisRepository) DeleteSession(ctx context.Context, token string) error {
	return r.Del(ctx, sessionKey(token))
}
