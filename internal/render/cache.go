// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"sync"
	"time"

	"github.com/jeranaias/streamchat/internal/markdown"
)

// =============================================================================
// OPTIONS
// =============================================================================

// Options configures cache bounds and sweep behavior.
type Options struct {
	// MaxEntries bounds the finalized-render cache (default: 200). On
	// insert, oldest-by-timestamp entries are evicted until under the limit.
	MaxEntries int

	// TTL is the maximum age of an entry (default: 300s). Entries older
	// than this are unreachable even before the next sweep removes them.
	TTL time.Duration

	// SweepInterval is how often the background sweep runs (default: 60s).
	SweepInterval time.Duration
}

// DefaultOptions returns the default cache configuration.
func DefaultOptions() Options {
	return Options{
		MaxEntries:    200,
		TTL:           300 * time.Second,
		SweepInterval: 60 * time.Second,
	}
}

// =============================================================================
// CACHE
// =============================================================================

// entry is one memoized finalized render.
type entry struct {
	rendered   string
	createdAt  time.Time
	accessedAt time.Time
}

// Cache memoizes rendered message output.
//
// Finalized content is keyed by (content, role); streaming content is keyed
// by message identity instead, since its content changes on every call.
//
// Thread-safety: all operations are protected by a mutex. The cache is the
// one piece of state shared across concurrent sessions.
type Cache struct {
	mu        sync.Mutex
	opts      Options
	entries   map[string]*entry
	streaming map[string]string

	tokenizer *markdown.Tokenizer
	renderer  Renderer

	stop     chan struct{}
	stopOnce sync.Once
}

// NewCache creates a cache delegating to the given renderer and tokenizer.
// The cache is explicitly constructed and injected rather than shared as a
// global, so its lifetime is owned by the application root.
func NewCache(renderer Renderer, tokenizer *markdown.Tokenizer, opts Options) *Cache {
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = 200
	}
	if opts.TTL <= 0 {
		opts.TTL = 300 * time.Second
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = 60 * time.Second
	}
	return &Cache{
		opts:      opts,
		entries:   make(map[string]*entry),
		streaming: make(map[string]string),
		tokenizer: tokenizer,
		renderer:  renderer,
		stop:      make(chan struct{}),
	}
}

// Start launches the periodic background sweep. Stop it with Close.
func (c *Cache) Start() {
	go func() {
		ticker := time.NewTicker(c.opts.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.Sweep()
			case <-c.stop:
				return
			}
		}
	}()
}

// Close stops the background sweep. Safe to call multiple times.
func (c *Cache) Close() {
	c.stopOnce.Do(func() { close(c.stop) })
}

// SetBounds applies new entry and TTL bounds, evicting immediately if the
// cache now exceeds them. Used on config reload. The sweep interval is fixed
// at construction.
func (c *Cache) SetBounds(maxEntries int, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if maxEntries > 0 {
		c.opts.MaxEntries = maxEntries
	}
	if ttl > 0 {
		c.opts.TTL = ttl
	}

	cutoff := time.Now().Add(-c.opts.TTL)
	for key, e := range c.entries {
		if e.createdAt.Before(cutoff) {
			delete(c.entries, key)
		}
	}
	c.evictLocked()
}

// =============================================================================
// FINALIZED PATH
// =============================================================================

// Get returns the memoized render for (content, role), if present and not
// older than the TTL.
func (c *Cache) Get(content, role string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := cacheKey(content, role)
	e, ok := c.entries[key]
	if !ok {
		return "", false
	}
	if time.Since(e.createdAt) > c.opts.TTL {
		// Expired entries are unreachable even while awaiting the sweep.
		delete(c.entries, key)
		return "", false
	}
	e.accessedAt = time.Now()
	return e.rendered, true
}

// Put memoizes a finalized render, evicting the oldest entries if the count
// bound is exceeded.
func (c *Cache) Put(content, role, rendered string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	c.entries[cacheKey(content, role)] = &entry{
		rendered:   rendered,
		createdAt:  now,
		accessedAt: now,
	}
	c.evictLocked()
}

// RenderFinal returns the styled render of a completed message, memoized
// under (content, role).
func (c *Cache) RenderFinal(content, role string) (string, error) {
	if rendered, ok := c.Get(content, role); ok {
		return rendered, nil
	}
	rendered, err := c.renderer.RenderMarkdown(content)
	if err != nil {
		return "", err
	}
	c.Put(content, role, rendered)
	return rendered, nil
}

// =============================================================================
// STREAMING PATH
// =============================================================================

// RenderStreaming renders in-flight content, caching under the message id
// instead of the content, since the content is expected to change every
// call. Tokenization is differential: only the new suffix is parsed.
func (c *Cache) RenderStreaming(content, role, messageID string) string {
	tokens := c.tokenizer.Parse(content, messageID)
	rendered := c.renderer.RenderTokens(tokens)

	c.mu.Lock()
	c.streaming[messageID] = rendered
	c.mu.Unlock()

	return rendered
}

// ClearStreamingState drops the streaming cache entry for a message and
// forwards the call to the tokenizer. Must be invoked when a message
// finishes streaming or is abandoned.
func (c *Cache) ClearStreamingState(messageID string) {
	c.mu.Lock()
	delete(c.streaming, messageID)
	c.mu.Unlock()

	c.tokenizer.ClearState(messageID)
}

// =============================================================================
// LIFECYCLE
// =============================================================================

// Clear drops everything (session reset).
func (c *Cache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]*entry)
	c.streaming = make(map[string]string)
	c.mu.Unlock()

	c.tokenizer.ClearAll()
}

// Sweep removes entries older than the TTL. Called periodically by the
// background loop started with Start.
func (c *Cache) Sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := time.Now().Add(-c.opts.TTL)
	for key, e := range c.entries {
		if e.createdAt.Before(cutoff) {
			delete(c.entries, key)
		}
	}
}

// Len returns the number of finalized entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// StreamingLen returns the number of live streaming entries.
func (c *Cache) StreamingLen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.streaming)
}

// =============================================================================
// INTERNAL
// =============================================================================

// evictLocked enforces the entry count bound (caller must hold the lock).
func (c *Cache) evictLocked() {
	if len(c.entries) <= c.opts.MaxEntries {
		return
	}

	type aged struct {
		key       string
		createdAt time.Time
	}
	all := make([]aged, 0, len(c.entries))
	for key, e := range c.entries {
		all = append(all, aged{key: key, createdAt: e.createdAt})
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].createdAt.Before(all[j].createdAt)
	})

	for i := 0; len(c.entries) > c.opts.MaxEntries && i < len(all); i++ {
		delete(c.entries, all[i].key)
	}
}

// cacheKey hashes content so that large message bodies do not become map
// keys themselves.
func cacheKey(content, role string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:]) + "|" + role
}
