// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package ledger

import (
	lru "github.com/hashicorp/golang-lru"
)

// CachedKV is a read-through LRU in front of another KV. Only raw storage
// reads are cached.
type CachedKV struct {
	inner KV
	cache *lru.Cache
}

func NewCachedKV(inner KV, size int) (*CachedKV, error) {
	cache, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &CachedKV{inner: inner, cache: cache}, nil
}

func (c *CachedKV) Get(key []byte) ([]byte, bool, error) {
	if v, ok := c.cache.Get(string(key)); ok {
		return clone(v.([]byte)), true, nil
	}
	v, found, err := c.inner.Get(key)
	if err != nil || !found {
		return v, found, err
	}
	c.cache.Add(string(key), clone(v))
	return v, true, nil
}

func (c *CachedKV) Put(key, value []byte) error {
	c.cache.Remove(string(key))
	return c.inner.Put(key, value)
}

func (c *CachedKV) Delete(key []byte) error {
	c.cache.Remove(string(key))
	return c.inner.Delete(key)
}

func (c *CachedKV) Iterate(prefix []byte, fn func(key, value []byte) error) error {
	return c.inner.Iterate(prefix, fn)
}

// Len is the number of cached keys.
func (c *CachedKV) Len() int {
	return c.cache.Len()
}

func (c *CachedKV) Close() error {
	c.cache.Purge()
	return c.inner.Close()
}
