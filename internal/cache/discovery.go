// Package cache holds the persona discovery snapshot and loaded persona content.
package cache

import (
	"sync"
	"time"

	"github.com/eliteGoblin/opencode-personas/internal/domain"
)

// Discoverer lists available personas.
type Discoverer interface {
	Discover() []domain.PersonaID
}

// DiscoveryCache serves the last persona listing until it is older than the TTL.
type DiscoveryCache struct {
	mu         sync.Mutex
	source     Discoverer
	ttl        time.Duration
	now        func() time.Time
	personas   []domain.PersonaID
	capturedAt time.Time
}

// NewDiscoveryCache creates an empty cache over source.
func NewDiscoveryCache(source Discoverer, ttl time.Duration) *DiscoveryCache {
	return NewDiscoveryCacheWithClock(source, ttl, time.Now)
}

// NewDiscoveryCacheWithClock creates a cache with an injected clock (for testing).
func NewDiscoveryCacheWithClock(source Discoverer, ttl time.Duration, now func() time.Time) *DiscoveryCache {
	return &DiscoveryCache{
		source:   source,
		ttl:      ttl,
		now:      now,
		personas: []domain.PersonaID{},
	}
}

// Get returns the cached listing while it is non-empty and younger than the
// TTL, unless forceRefresh is set. Otherwise it re-scans; an empty scan is
// still a fresh snapshot.
func (c *DiscoveryCache) Get(forceRefresh bool) []domain.PersonaID {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !forceRefresh && len(c.personas) > 0 && c.fresh() {
		return c.copyPersonas()
	}

	found := c.source.Discover()
	if found == nil {
		found = []domain.PersonaID{}
	}
	c.personas = found
	c.capturedAt = c.now()
	return c.copyPersonas()
}

// Seed installs a listing obtained elsewhere as a fresh snapshot.
func (c *DiscoveryCache) Seed(personas []domain.PersonaID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.personas = append([]domain.PersonaID{}, personas...)
	c.capturedAt = c.now()
}

// Invalidate resets the age clock so the next Get re-scans.
func (c *DiscoveryCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.capturedAt = time.Time{}
}

// fresh must be called with mu held.
func (c *DiscoveryCache) fresh() bool {
	if c.capturedAt.IsZero() {
		return false
	}
	return c.now().Sub(c.capturedAt) < c.ttl
}

// copyPersonas must be called with mu held.
func (c *DiscoveryCache) copyPersonas() []domain.PersonaID {
	return append([]domain.PersonaID{}, c.personas...)
}
