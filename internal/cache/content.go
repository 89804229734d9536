package cache

import (
	"sync"

	"github.com/eliteGoblin/opencode-personas/internal/domain"
)

// Loader reads persona content.
type Loader interface {
	Load(id domain.PersonaID) (string, bool)
}

// ContentCache keeps loaded persona content. An entry is authoritative until
// explicitly invalidated; it is never re-checked against disk.
type ContentCache struct {
	mu      sync.Mutex
	source  Loader
	entries map[domain.PersonaID]string
}

// NewContentCache creates an empty cache over source.
func NewContentCache(source Loader) *ContentCache {
	return &ContentCache{
		source:  source,
		entries: make(map[domain.PersonaID]string),
	}
}

// Get returns cached content, loading it on a miss. Absent results are not
// cached, so a persona file that appears later is picked up on retry.
func (c *ContentCache) Get(id domain.PersonaID) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if content, ok := c.entries[id]; ok {
		return content, true
	}

	content, ok := c.source.Load(id)
	if !ok {
		return "", false
	}
	c.entries[id] = content
	return content, true
}

// Invalidate drops one entry.
func (c *ContentCache) Invalidate(id domain.PersonaID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, id)
}

// InvalidateAll drops every entry.
func (c *ContentCache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[domain.PersonaID]string)
}

// Len returns the number of cached entries.
func (c *ContentCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.entries)
}
