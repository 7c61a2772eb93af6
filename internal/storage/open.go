package storage

import (
	"context"
	"fmt"
)

// Backend names accepted by Open.
const (
	BackendFile     = backendFile
	BackendPostgres = backendPostgres
)

// Options selects and configures a Store.
type Options struct {
	Backend     string
	Dir         string
	PostgresDSN string
	// CacheSize bounds the LRU in front of the backend. Zero uses
	// DefaultCacheSize; a negative size disables the cache.
	CacheSize int
}

// Open builds the configured backend, wrapped in a CachedStore unless the
// cache is disabled.
func Open(ctx context.Context, opts Options) (Store, error) {
	var (
		store Store
		err   error
	)
	switch opts.Backend {
	case "", BackendFile:
		store, err = NewFileStore(opts.Dir)
	case BackendPostgres:
		store, err = NewPostgresStore(ctx, opts.PostgresDSN)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", opts.Backend)
	}
	if err != nil {
		return nil, err
	}
	if opts.CacheSize < 0 {
		return store, nil
	}
	cached, err := NewCachedStore(store, opts.CacheSize)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return cached, nil
}
