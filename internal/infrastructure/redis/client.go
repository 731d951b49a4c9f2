// Package redis holds the Redis-backed OTP store used when several API
// instances share verification state.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/alumni-api/internal/config"
	goredis "github.com/redis/go-redis/v9"
)

// NewClient connects and pings Redis.
func NewClient(ctx context.Context, cfg *config.Config) (*goredis.Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}
