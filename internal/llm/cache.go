package llm

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize is the number of prompts kept by NewCachedGenerator when
// size is not positive.
const DefaultCacheSize = 256

// CachedGenerator memoizes successful responses by prompt. Errors are not
// cached.
type CachedGenerator struct {
	inner Generator
	cache *lru.Cache[string, string]
}

// NewCachedGenerator wraps inner with an LRU cache holding size prompts.
func NewCachedGenerator(inner Generator, size int) (*CachedGenerator, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[string, string](size)
	if err != nil {
		return nil, err
	}
	return &CachedGenerator{inner: OrNoop(inner), cache: cache}, nil
}

func (c *CachedGenerator) Name() string { return c.inner.Name() }

func (c *CachedGenerator) Available() bool { return c.inner.Available() }

func (c *CachedGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	if out, ok := c.cache.Get(prompt); ok {
		return out, nil
	}
	out, err := c.inner.Generate(ctx, prompt)
	if err != nil {
		return "", err
	}
	c.cache.Add(prompt, out)
	return out, nil
}

// Len returns the number of cached prompts.
func (c *CachedGenerator) Len() int { return c.cache.Len() }
