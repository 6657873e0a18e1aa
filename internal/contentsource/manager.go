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

// Package contentsource fetches raw content from files or URLs, tokenizes
// it, and memoizes the result through a TTL cache.
package contentsource

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/relayforge/relayforge/config"
	"github.com/relayforge/relayforge/internal/contentcache"
)

// Manager fetches, splits, and caches ContentSource tokens. It owns its
// ContentCache exclusively.
type Manager struct {
	cache  *contentcache.Cache
	client *http.Client
	logger *zap.Logger

	// group coalesces concurrent cache misses for the same key into one
	// fetch, per SPEC_FULL.md §4.4. It does not change any observable
	// cache semantics: a fetch error is still never cached.
	group singleflight.Group

	hits   atomic.Uint64
	misses atomic.Uint64
}

// New returns a Manager with its own cache and a pooled HTTP client.
func New(logger *zap.Logger) *Manager {
	return &Manager{
		cache: contentcache.New(),
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// GetContent resolves source to its current token list: cache hit returns
// immediately; a miss fetches, trims, splits, caches, and returns.
func (m *Manager) GetContent(ctx context.Context, source config.ContentSource) ([]string, error) {
	key := source.CacheKey()

	if tokens, ok := m.cache.Get(key); ok {
		m.hits.Add(1)
		return tokens, nil
	}

	v, err, _ := m.group.Do(key, func() (any, error) {
		if tokens, ok := m.cache.Get(key); ok {
			m.hits.Add(1)
			return tokens, nil
		}
		m.misses.Add(1)

		raw, err := m.fetch(ctx, source)
		if err != nil {
			return nil, err
		}

		tokens := split(raw, source.SplitBy)
		if len(tokens) == 0 {
			m.logger.Warn("content source produced no tokens", zap.String("key", key))
		}

		ttl := time.Duration(source.CacheTTLOrDefault()) * time.Second
		m.cache.Insert(key, tokens, ttl)
		return tokens, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]string), nil
}

func (m *Manager) fetch(ctx context.Context, source config.ContentSource) (string, error) {
	switch source.Source {
	case config.SourceFile:
		return m.readFile(source.Path)
	case config.SourceRemote:
		return m.fetchRemote(ctx, source.URL)
	default:
		return "", fmt.Errorf("contentsource: unknown source type %q", source.Source)
	}
}

func (m *Manager) readFile(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("contentsource: file source requires a path")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("contentsource: read %s: %w", path, err)
	}
	return string(data), nil
}

func (m *Manager) fetchRemote(ctx context.Context, url string) (string, error) {
	if url == "" {
		return "", fmt.Errorf("contentsource: remote source requires a url")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("contentsource: build request for %s: %w", url, err)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("contentsource: fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("contentsource: %s returned HTTP %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("contentsource: read response from %s: %w", url, err)
	}
	return string(body), nil
}

// split tokenizes raw content per strategy. An empty-after-trim input
// yields an empty (but still cacheable) token list.
func split(raw string, strategy config.SplitStrategy) []string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return []string{}
	}

	switch strategy {
	case config.SplitComma:
		return splitAndTrim(trimmed, ",")
	case config.SplitSpace:
		return strings.Fields(trimmed)
	case config.SplitLine:
		fallthrough
	default:
		return splitLines(trimmed)
	}
}

func splitAndTrim(s, sep string) []string {
	parts := strings.Split(s, sep)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func splitLines(s string) []string {
	lines := strings.FieldsFunc(s, func(r rune) bool {
		return r == '\n' || r == '\r'
	})
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		l = strings.TrimSpace(l)
		if l != "" {
			out = append(out, l)
		}
	}
	return out
}

// ClearCache empties the content cache.
func (m *Manager) ClearCache() {
	m.cache.Clear()
}

// RemoveFromCache removes one entry keyed by source's identity.
func (m *Manager) RemoveFromCache(source config.ContentSource) {
	m.cache.Remove(source.CacheKey())
}

// CleanupExpired sweeps stale entries out of the cache. Intended to be
// called periodically (see the ticker-driven sweep in cmd/relayforge).
func (m *Manager) CleanupExpired() {
	m.cache.CleanupExpired()
}

// CacheSize reports the number of entries currently held in the content
// cache, expired or not, for the admin cache-stats endpoint.
func (m *Manager) CacheSize() int {
	return m.cache.Size()
}

// HitMissCounts reports the running totals of cache hits and misses since
// the process started, for the admin cache-stats endpoint.
func (m *Manager) HitMissCounts() (hits, misses uint64) {
	return m.hits.Load(), m.misses.Load()
}
