package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Redis реализует Store поверх внешнего Redis. Кэш переживает рестарт
// процесса и разделяется между экземплярами. Каждая операция ограничена
// собственным таймаутом: при недоступном бэкенде чтение деградирует
// до промаха, задержка запроса остаётся ограниченной.
type Redis struct {
	client  *redis.Client
	timeout time.Duration
	logger  *zap.SugaredLogger
}

// NewRedis создаёт бэкенд по URL вида redis://host:port/db и проверяет
// доступность сервера.
func NewRedis(url string, opTimeout time.Duration, logger *zap.SugaredLogger) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &Redis{
		client:  client,
		timeout: opTimeout,
		logger:  logger,
	}, nil
}

func (r *Redis) Get(ctx context.Context, key string) (string, bool) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	value, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false
	}
	if err != nil {
		r.logger.Errorw("Redis get failed, treating as miss", "key", key, "error", err)
		return "", false
	}
	return value, true
}

func (r *Redis) Set(ctx context.Context, key, value string, ttl time.Duration) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		r.logger.Errorw("Redis set failed", "key", key, "error", err)
	}
}

func (r *Redis) Delete(ctx context.Context, key string) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if err := r.client.Del(ctx, key).Err(); err != nil {
		r.logger.Errorw("Redis delete failed", "key", key, "error", err)
	}
}

// DeletePrefix удаляет все ключи с заданным префиксом через SCAN,
// не блокируя сервер командой KEYS.
func (r *Redis) DeletePrefix(ctx context.Context, prefix string) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	iter := r.client.Scan(ctx, 0, prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := r.client.Del(ctx, iter.Val()).Err(); err != nil {
			r.logger.Errorw("Redis delete failed", "key", iter.Val(), "error", err)
		}
	}
	if err := iter.Err(); err != nil {
		r.logger.Errorw("Redis scan failed", "prefix", prefix, "error", err)
	}
}

func (r *Redis) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return r.client.Ping(ctx).Err()
}

// Close закрывает соединения с сервером.
func (r *Redis) Close() error {
	return r.client.Close()
}
