// Package rdb opens the Redis connection shared by the queue and report
// backends.
package rdb

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultAddress is used when no address is configured.
const DefaultAddress = "127.0.0.1:6379"

// Options addresses a Redis server.
type Options struct {
	Address  string
	Password string
	DB       int
}

// ClientOptions converts opts into go-redis options. Timeouts are kept short
// so an unreachable server surfaces as an error rather than a hang.
func ClientOptions(opts Options) *redis.Options {
	addr := opts.Address
	if addr == "" {
		addr = DefaultAddress
	}
	return &redis.Options{
		Addr:         addr,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		MaxRetries:   -1,
	}
}

// Open connects and pings. The returned client must be closed by the caller.
func Open(ctx context.Context, opts Options) (*redis.Client, error) {
	ro := ClientOptions(opts)
	client := redis.NewClient(ro)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", ro.Addr, err)
	}
	return client, nil
}
