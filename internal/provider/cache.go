package provider

import (
	"crypto/sha256"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/prismbench/prism/internal/model"
)

// ResponseCache caches completions keyed by a hash of the full request
// (model, messages, temperature). Benchmark runs often repeat identical
// requests across evaluator passes and re-runs; a hit saves a slow,
// billable backend call.
//
// Entries never expire: a cached response for a byte-identical request is
// valid for the life of the process.
type ResponseCache struct {
	mu      sync.RWMutex
	entries map[string]string
	hits    int64
	misses  int64
}

// NewResponseCache creates an empty cache.
func NewResponseCache() *ResponseCache {
	return &ResponseCache{entries: make(map[string]string)}
}

// Lookup returns the cached response text for the request, if present.
func (c *ResponseCache) Lookup(modelID string, messages []model.Message, temperature float64) (string, bool) {
	key := requestKey(modelID, messages, temperature)

	c.mu.RLock()
	text, ok := c.entries[key]
	c.mu.RUnlock()

	c.mu.Lock()
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	c.mu.Unlock()

	return text, ok
}

// Store saves a response for the request.
func (c *ResponseCache) Store(modelID string, messages []model.Message, temperature float64, text string) {
	key := requestKey(modelID, messages, temperature)
	c.mu.Lock()
	c.entries[key] = text
	c.mu.Unlock()
}

// CacheStats is a point-in-time snapshot of cache effectiveness.
type CacheStats struct {
	Entries int
	Hits    int64
	Misses  int64
}

// Stats returns current cache statistics.
func (c *ResponseCache) Stats() CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return CacheStats{Entries: len(c.entries), Hits: c.hits, Misses: c.misses}
}

// requestKey builds a content hash of the full request. Role and content are
// length-prefixed so distinct message sequences can never collide.
func requestKey(modelID string, messages []model.Message, temperature float64) string {
	var b strings.Builder
	b.WriteString(modelID)
	b.WriteByte('|')
	b.WriteString(strconv.FormatFloat(temperature, 'f', -1, 64))
	for _, m := range messages {
		fmt.Fprintf(&b, "|%d:%s|%d:%s", len(m.Role), m.Role, len(m.Content), m.Content)
	}
	sum := sha256.Sum256([]byte(b.String()))
	return fmt.Sprintf("%x", sum)
}
