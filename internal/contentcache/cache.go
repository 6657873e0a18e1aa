// Copyright 2015 Matthew Holt and The Caddy Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package contentcache implements the TTL-expiring token cache that sits
// in front of file/remote content fetches. Concurrent reads, and concurrent
// writes on distinct keys, never serialize against each other: the map is
// internally striped (puzpuzpuz/xsync), not a single coarse lock.
package contentcache

import (
	"time"

	"github.com/puzpuzpuz/xsync/v4"
)

type entry struct {
	tokens    []string
	expiresAt time.Time
}

// Cache is a concurrent map from cache key to a TTL-expiring token list.
type Cache struct {
	entries *xsync.Map[string, entry]
}

// New returns an empty Cache.
func New() *Cache {
	return &Cache{entries: xsync.NewMap[string, entry]()}
}

// Insert stores tokens under key with the given TTL, replacing anything
// already there.
func (c *Cache) Insert(key string, tokens []string, ttl time.Duration) {
	c.entries.Store(key, entry{
		tokens:    tokens,
		expiresAt: time.Now().Add(ttl),
	})
}

// Get returns a clone of the cached tokens for key, or (nil, false) if
// there is no entry or it has expired. An expired entry is evicted on
// sight (spec.md §3: "the cache never returns an entry whose expires_at <=
// now at the moment of lookup").
func (c *Cache) Get(key string) ([]string, bool) {
	e, ok := c.entries.Load(key)
	if !ok {
		return nil, false
	}
	if !time.Now().Before(e.expiresAt) {
		c.entries.Delete(key)
		return nil, false
	}
	return cloneTokens(e.tokens), true
}

// Remove deletes one entry by key.
func (c *Cache) Remove(key string) {
	c.entries.Delete(key)
}

// Clear empties the cache.
func (c *Cache) Clear() {
	c.entries.Clear()
}

// CleanupExpired sweeps the cache, retaining only unexpired entries.
func (c *Cache) CleanupExpired() {
	now := time.Now()
	c.entries.Range(func(key string, e entry) bool {
		if !now.Before(e.expiresAt) {
			c.entries.Delete(key)
		}
		return true
	})
}

// Size reports the number of entries currently held, expired or not.
func (c *Cache) Size() int {
	return c.entries.Size()
}

func cloneTokens(tokens []string) []string {
	if tokens == nil {
		return nil
	}
	out := make([]string, len(tokens))
	copy(out, tokens)
	return out
}
