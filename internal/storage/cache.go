package storage

import (
	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"
)

// CachingPersister is a write-through cache of values in front of another Persister.
// Only values are cached; child listings always go to the underlying store.
// Writes made to the underlying store by anything other than this CachingPersister are not seen until the
// affected keys are evicted, so it must only be used by the single writer of a namespace.
type CachingPersister struct {
	underlying Persister
	cache      *lru.Cache
}

func NewCachingPersister(underlying Persister, size int) (*CachingPersister, error) {
	cache, err := lru.New(size)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return &CachingPersister{underlying: underlying, cache: cache}, nil
}

func (c *CachingPersister) Get(path string) ([]byte, error) {
	path = CleanPath(path)
	if value, ok := c.cache.Get(path); ok {
		return copyBytes(value.([]byte)), nil
	}
	value, err := c.underlying.Get(path)
	if err != nil {
		return nil, err
	}
	c.cache.Add(path, copyBytes(value))
	return value, nil
}

func (c *CachingPersister) Set(path string, value []byte) error {
	path = CleanPath(path)
	if err := c.underlying.Set(path, value); err != nil {
		// The underlying write may have partially happened; don't trust the cached value either way.
		c.cache.Remove(path)
		return err
	}
	c.cache.Add(path, copyBytes(value))
	return nil
}

func (c *CachingPersister) Delete(path string) error {
	path = CleanPath(path)
	c.cache.Remove(path)
	return c.underlying.Delete(path)
}

func (c *CachingPersister) GetChildren(path string) ([]string, error) {
	return c.underlying.GetChildren(path)
}

func (c *CachingPersister) RecursiveDelete(path string) error {
	path = CleanPath(path)
	for _, key := range c.cache.Keys() {
		if isAtOrBelow(key.(string), path) {
			c.cache.Remove(key)
		}
	}
	return c.underlying.RecursiveDelete(path)
}
