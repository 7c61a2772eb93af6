package storage

import (
	"context"
	"encoding/json"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/opspilot/opspilot/internal/errors"
)

// DefaultCacheSize is the number of runs CachedStore keeps in memory.
const DefaultCacheSize = 64

// CachedStore serves repeated loads from an in-memory LRU. Listing and
// stats always go to the underlying store.
//
// Runs are cached in encoded form and every Load decodes a fresh Snapshot,
// so callers may modify what they get back without affecting the cache.
type CachedStore struct {
	Store
	cache *lru.Cache[string, []byte]
}

// NewCachedStore wraps inner. A size of zero or less uses DefaultCacheSize.
func NewCachedStore(inner Store, size int) (*CachedStore, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[string, []byte](size)
	if err != nil {
		return nil, err
	}
	return &CachedStore{Store: inner, cache: cache}, nil
}

func (c *CachedStore) put(id string, s *Snapshot) {
	data, err := json.Marshal(s)
	if err != nil {
		return
	}
	c.cache.Add(id, data)
}

// Save stores the run and primes the cache.
func (c *CachedStore) Save(ctx context.Context, s *Snapshot) (string, error) {
	id, err := c.Store.Save(ctx, s)
	if err != nil {
		return "", err
	}
	c.put(id, s)
	return id, nil
}

// Load returns a copy of the cached run or reads it through.
func (c *CachedStore) Load(ctx context.Context, id string) (*Snapshot, error) {
	if data, ok := c.cache.Get(id); ok {
		var s Snapshot
		if err := json.Unmarshal(data, &s); err != nil {
			c.cache.Remove(id)
			return nil, errors.NewStorageError("decode cached run", err).WithRunID(id)
		}
		return &s, nil
	}
	s, err := c.Store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	c.put(id, s)
	return s, nil
}

// Delete removes the run from both the cache and the underlying store.
func (c *CachedStore) Delete(ctx context.Context, id string) error {
	c.cache.Remove(id)
	return c.Store.Delete(ctx, id)
}

// Len reports the number of cached runs.
func (c *CachedStore) Len() int {
	return c.cache.Len()
}
