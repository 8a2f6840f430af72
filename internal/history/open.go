package history

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
	BackendBadger   = "badger"
	BackendRedis    = "redis"
)

// Options selects and configures a history backend.
type Options struct {
	Backend     string
	Retention   int
	DatabaseURL string
	SQLitePath  string
	BadgerPath  string
	Redis       *redis.Client
}

func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Backend {
	case "", BackendMemory:
		return NewMemoryStore(opts.Retention), nil
	case BackendPostgres:
		if opts.DatabaseURL == "" {
			return nil, fmt.Errorf("postgres backend: DATABASE_URL is required")
		}
		return OpenSQL(ctx, DialectPostgres, opts.DatabaseURL)
	case BackendSQLite:
		return OpenSQL(ctx, DialectSQLite, sqliteDSN(opts.SQLitePath))
	case BackendBadger:
		return OpenBadger(opts.BadgerPath)
	case BackendRedis:
		if opts.Redis == nil {
			return nil, fmt.Errorf("redis backend: client is required")
		}
		return NewRedisStore(opts.Redis, opts.Retention), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, opts.Backend)
	}
}

// sqliteDSN asks the driver to write timestamps in a format it can scan back
// into time.Time.
func sqliteDSN(path string) string {
	if path == "" {
		path = "shoutbox.db"
	}
	if strings.Contains(path, "_time_format=") {
		return path
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_time_format=sqlite"
}
