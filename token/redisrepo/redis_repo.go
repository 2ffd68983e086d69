// Package redisrepo keeps credentials in Redis so several processes on one host can share a session.
package redisrepo

import (
	"context"
	"time"

	"github.com/jrsteele09/go-medassist-client/internal/errors"
	"github.com/jrsteele09/go-medassist-client/token"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

var _ token.Repo = (*RedisRepo)(nil)

const opTimeout = 3 * time.Second

type RedisRepo struct {
	client *redis.Client
	prefix string
}

type Options struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// New connects to Redis. An unreachable server is logged, not fatal; operations will fail until it is up.
func New(opts Options) (*RedisRepo, error) {
	if opts.Addr == "" {
		return nil, errors.New("[redisrepo.New] addr is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Warn().Err(err).Str("addr", opts.Addr).Msg("Unable to reach redis")
	}
	return NewWithClient(client, opts.Prefix), nil
}

func NewWithClient(client *redis.Client, prefix string) *RedisRepo {
	return &RedisRepo{client: client, prefix: prefix}
}

func (r *RedisRepo) Get(key string) (string, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	v, err := r.client.Get(ctx, r.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrapf(err, "[RedisRepo.Get] %s", key)
	}
	return v, true, nil
}

func (r *RedisRepo) Set(key, value string) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if err := r.client.Set(ctx, r.prefix+key, value, 0).Err(); err != nil {
		return errors.Wrapf(err, "[RedisRepo.Set] %s", key)
	}
	return nil
}

func (r *RedisRepo) Delete(keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = r.prefix + k
	}
	if err := r.client.Del(ctx, full...).Err(); err != nil {
		return errors.Wrapf(err, "[RedisRepo.Delete] %v", keys)
	}
	return nil
}

func (r *RedisRepo) Close() error {
	return r.client.Close()
}
