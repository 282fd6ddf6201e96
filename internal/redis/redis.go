package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	redislib "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

var ErrNotConfigured = errors.New("redis not configured")

var (
	client *redislib.Client
	once   sync.Once
)

type Config struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// Init connects the shared client, retrying the initial ping with backoff.
func Init(cfg Config) (*redislib.Client, error) {
	if cfg.Host == "" {
		return nil, ErrNotConfigured
	}

	var initErr error
	once.Do(func() {
		c := redislib.NewClient(&redislib.Options{
			Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Password: cfg.Password,
			DB:       cfg.DB,
		})

		if err := ping(c, 5, 200*time.Millisecond); err != nil {
			_ = c.Close()
			initErr = err
			return
		}
		client = c
	})

	if client == nil && initErr == nil {
		return nil, fmt.Errorf("redis client not initialized")
	}
	return client, initErr
}

func ping(c *redislib.Client, attempts int, backoff time.Duration) error {
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		err = c.Ping(ctx).Err()
		cancel()
		if err == nil {
			return nil
		}

		log.Warn().Err(err).Int("attempt", attempt).Msg("redis ping failed")
		if attempt < attempts {
			time.Sleep(backoff)
			backoff *= 2
		}
	}
	return err
}

func Client() *redislib.Client {
	return client
}

func Close() error {
	if client == nil {
		return nil
	}
	return client.Close()
}
