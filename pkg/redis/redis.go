// Package redis opens go-redis clients from environment-backed
// configuration, retrying with linear backoff until the server is ready.
// The lockout and ratelimit packages accept the resulting client for their
// shared-state stores.
package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrFailedToParseConfig    = errors.New("redis: failed to parse connection config")
	ErrFailedToOpenConnection = errors.New("redis: failed to open connection")
)

type Config struct {
	ConnectionString string `env:"REDIS_URL,required"`

	RetryAttempts int           `env:"REDIS_RETRY_ATTEMPTS" envDefault:"3"`
	RetryInterval time.Duration `env:"REDIS_RETRY_INTERVAL" envDefault:"5s"`
}

// Connect establishes a Redis client and verifies it with a ping. Each retry
// waits one interval longer than the previous.
func Connect(ctx context.Context, cfg Config) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.ConnectionString)
	if err != nil {
		return nil, errors.Join(ErrFailedToParseConfig, err)
	}

	for i := range cfg.RetryAttempts {
		client := redis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err == nil {
			return client, nil
		}
		_ = client.Close()

		select {
		case <-ctx.Done():
			return nil, errors.Join(ErrFailedToOpenConnection, ctx.Err())
		case <-time.After(time.Duration(i+1) * cfg.RetryInterval):
		}
	}

	return nil, ErrFailedToOpenConnection
}
