package registry

import (
	"context"
	"fmt"
)

// Options selects and configures a storage backend.
type Options struct {
	Backend       string
	DSN           string
	MaxConns      int
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string
}

// Open returns the Store for opts.Backend.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Backend {
	case "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		return OpenSQLite(opts.DSN)
	case "postgres":
		return OpenPostgres(opts.DSN, opts.MaxConns)
	case "redis":
		return OpenRedis(ctx, opts.RedisAddr, opts.RedisPassword, opts.RedisDB, opts.RedisPrefix)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", opts.Backend)
	}
}
