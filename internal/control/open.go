package control

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store backends selectable from configuration.
const (
	BackendFile  = "file"
	BackendRedis = "redis"
)

// OpenOptions selects and configures a Store.
type OpenOptions struct {
	Backend     string
	WorkDir     string
	RedisAddr   string
	RedisPrefix string
}

// Open builds the configured store. The returned close func is never nil.
// Redis stores are pinged once so a bad address fails at startup.
func Open(ctx context.Context, opts OpenOptions) (Store, func() error, error) {
	noop := func() error { return nil }

	switch opts.Backend {
	case "", BackendFile:
		return NewFileStore(opts.WorkDir), noop, nil
	case BackendRedis:
		if opts.RedisAddr == "" {
			return nil, noop, fmt.Errorf("redis control store requires an address")
		}
		client := redis.NewClient(&redis.Options{Addr: opts.RedisAddr})
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			_ = client.Close()
			return nil, noop, fmt.Errorf("failed to connect to redis at %s: %w", opts.RedisAddr, err)
		}
		store := NewRedisStore(client, opts.RedisPrefix)
		return store, store.Close, nil
	default:
		return nil, noop, fmt.Errorf("unknown control store %q (want %s or %s)", opts.Backend, BackendFile, BackendRedis)
	}
}
