package artifacts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps blobs as plain redis strings without expiry.
type RedisStore struct {
	client *redis.Client
	prefix string
	logger *slog.Logger
}

func NewRedisStore(addr, password string, db int, logger *slog.Logger) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	if logger == nil {
		logger = slog.Default()
	}
	return &RedisStore{
		client: client,
		prefix: "shiftplanner:",
		logger: logger.With("component", "redis_artifacts"),
	}, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) key(k string) string {
	return s.prefix + k
}

func (s *RedisStore) Put(ctx context.Context, key string, data []byte) error {
	start := time.Now()
	if err := s.client.Set(ctx, s.key(key), data, 0).Err(); err != nil {
		s.logger.Error("artifact put failed", "key", key, "error", err)
		return err
	}
	s.logger.Debug("artifact put", "key", key, "size_bytes", len(data), "duration_ms", time.Since(start).Milliseconds())
	return nil
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := s.client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		s.logger.Error("artifact get failed", "key", key, "error", err)
		return nil, err
	}
	return val, nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.key(key)).Err()
}
