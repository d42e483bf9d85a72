package utils

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig controls the client used for the number lookup cache. Only
// Addr is required; zero durations and sizes fall back to defaults suited to
// short webhook-path reads.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	PoolSize        int
	MinIdleConns    int
	PoolTimeout     time.Duration
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration

	PingTimeout time.Duration
}

// Options resolves defaults into go-redis options.
func (c RedisConfig) Options() *redis.Options {
	return &redis.Options{
		Addr:            c.Addr,
		Password:        c.Password,
		DB:              c.DB,
		DialTimeout:     durationOr(c.DialTimeout, 3*time.Second),
		ReadTimeout:     durationOr(c.ReadTimeout, time.Second),
		WriteTimeout:    durationOr(c.WriteTimeout, time.Second),
		PoolSize:        intOr(c.PoolSize, 20),
		MinIdleConns:    max(c.MinIdleConns, 0),
		PoolTimeout:     durationOr(c.PoolTimeout, 2*time.Second),
		ConnMaxIdleTime: durationOr(c.ConnMaxIdleTime, 5*time.Minute),
		ConnMaxLifetime: durationOr(c.ConnMaxLifetime, 30*time.Minute),
	}
}

// OpenRedis initializes a Redis client and validates connectivity via PING.
func OpenRedis(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis addr is required")
	}
	if cfg.DB < 0 {
		return nil, fmt.Errorf("redis db must not be negative, got %d", cfg.DB)
	}

	rdb := redis.NewClient(cfg.Options())

	pingCtx, cancel := context.WithTimeout(ctx, durationOr(cfg.PingTimeout, 2*time.Second))
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s failed: %w", cfg.Addr, err)
	}
	return rdb, nil
}

func durationOr(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func intOr(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
