// Package cache keeps recent peek responses in memory. Lookups are
// opt-in: a response is only served when the client states how stale a
// price it will accept.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pricepeek/pricepeek/models"
)

// entry holds a cached response with its creation timestamp.
type entry struct {
	response  *models.PeekResponse
	createdAt time.Time
}

// Cache is an in-memory store for peek responses. It is safe for
// concurrent use. Callers must treat returned responses as read-only;
// the same pointer is shared across hits.
type Cache struct {
	mu         sync.RWMutex
	store      map[string]*entry
	maxEntries int
	ttl        time.Duration
	done       chan struct{}

	hits   atomic.Int64
	misses atomic.Int64
}

// New creates a Cache holding at most maxEntries responses for at most
// ttl. A background goroutine prunes expired entries every 5 minutes.
func New(maxEntries int, ttl time.Duration) *Cache {
	c := &Cache{
		store:      make(map[string]*entry),
		maxEntries: maxEntries,
		ttl:        ttl,
		done:       make(chan struct{}),
	}
	go c.cleanupLoop()
	return c
}

// Key derives the cache key from everything that changes a peek's
// outcome: the URL, the render permission, the scope selector and the
// description flag.
func Key(url string, render bool, selector string, description bool) string {
	h := sha256.New()
	h.Write([]byte(url))
	h.Write([]byte("|"))
	h.Write([]byte(strconv.FormatBool(render)))
	h.Write([]byte("|"))
	h.Write([]byte(selector))
	h.Write([]byte("|"))
	h.Write([]byte(strconv.FormatBool(description)))
	return hex.EncodeToString(h.Sum(nil))
}

// Get retrieves a cached response younger than maxAgeMs milliseconds.
// maxAgeMs <= 0 skips the lookup entirely, so fresh-price callers never
// see a stale value by accident.
func (c *Cache) Get(key string, maxAgeMs int64) (*models.PeekResponse, bool) {
	if maxAgeMs <= 0 {
		return nil, false
	}

	c.mu.RLock()
	e, ok := c.store[key]
	c.mu.RUnlock()

	maxAge := time.Duration(maxAgeMs) * time.Millisecond
	if !ok || time.Since(e.createdAt) > maxAge {
		c.misses.Add(1)
		return nil, false
	}

	c.hits.Add(1)
	return e.response, true
}

// Set stores a response. At capacity a random entry is evicted to make
// room (map iteration order is random in Go). A maxEntries of zero
// disables storing.
func (c *Cache) Set(key string, resp *models.PeekResponse) {
	if c.maxEntries <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.store) >= c.maxEntries {
		for k := range c.store {
			delete(c.store, k)
			break
		}
	}

	c.store[key] = &entry{
		response:  resp,
		createdAt: time.Now(),
	}
}

// Stats returns a snapshot for the health endpoint.
func (c *Cache) Stats() models.CacheInfo {
	c.mu.RLock()
	entries := len(c.store)
	c.mu.RUnlock()
	return models.CacheInfo{
		Entries: entries,
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
	}
}

// Stop terminates the background pruning goroutine.
func (c *Cache) Stop() {
	close(c.done)
}

// cleanupLoop prunes entries older than the TTL every 5 minutes.
func (c *Cache) cleanupLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-c.ttl)
			c.mu.Lock()
			for k, e := range c.store {
				if e.createdAt.Before(cutoff) {
					delete(c.store, k)
				}
			}
			c.mu.Unlock()
		}
	}
}
