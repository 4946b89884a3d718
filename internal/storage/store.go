// Package storage provides key/value backends for the autosave snapshot,
// the server-side counterpart of browser local storage.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrNotFound is returned by Get when the key holds no value.
var ErrNotFound = errors.New("key not found")

// Store is a string-keyed byte store.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// Event reports a change made to a key, possibly by another process.
type Event struct {
	Key     string
	Value   []byte
	Deleted bool
}

// Watcher is implemented by stores that can report external changes.
type Watcher interface {
	Watch(ctx context.Context) (<-chan Event, error)
}

const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendFile   = "file"
)

// Options selects and configures a backend.
type Options struct {
	Backend  string
	RedisURL string
	Dir      string
	// DB is the workspace database used by the sqlite backend.
	DB *sql.DB
}

// Open returns the backend named by opts.Backend.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Backend {
	case "", BackendSQLite:
		if opts.DB == nil {
			return nil, errors.New("sqlite storage requires a database")
		}
		return NewSQLStore(opts.DB), nil
	case BackendMemory:
		return NewMemoryStore(), nil
	case BackendRedis:
		return NewRedisStore(ctx, opts.RedisURL)
	case BackendFile:
		return NewFileStore(opts.Dir)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", opts.Backend)
	}
}
