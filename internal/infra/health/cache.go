// Package health tracks backend reachability: a TTL cache written by every
// dispatch attempt and probe, and a prober that checks all backends at once.
package health

import (
	"time"

	"github.com/astroflora/driver-ai-router/internal/domain"
	"github.com/astroflora/driver-ai-router/internal/infra/cache"
)

// Cache remembers whether each endpoint answered recently. Entries are keyed
// by the full endpoint URL, so a failing /api/chat never hides /api/query on
// the same host. Entries expire after the TTL; an expired endpoint is treated
// as unknown and may be tried again.
type Cache struct {
	store *cache.InMemory[domain.HealthStatus]
}

// NewCache creates a health cache with the given TTL.
func NewCache(ttl time.Duration) *Cache {
	return &Cache{store: cache.New[domain.HealthStatus](ttl)}
}

// Record stores the latest reachability of the endpoint.
func (c *Cache) Record(ep domain.Endpoint, healthy bool) {
	c.store.Set(ep.URL, domain.HealthStatus{
		Healthy:   healthy,
		CheckedAt: time.Now(),
	})
}

// Lookup returns the cached status of the endpoint, if still fresh.
func (c *Cache) Lookup(ep domain.Endpoint) (domain.HealthStatus, bool) {
	return c.store.Get(ep.URL)
}

// KnownUnhealthy reports whether the endpoint failed within the TTL.
// Unknown endpoints are not skipped.
func (c *Cache) KnownUnhealthy(ep domain.Endpoint) bool {
	st, ok := c.Lookup(ep)
	return ok && !st.Healthy
}

// Snapshot returns every fresh entry keyed by endpoint URL.
func (c *Cache) Snapshot() map[string]domain.HealthStatus {
	return c.store.Snapshot()
}

// TTL returns how long a recorded status is trusted.
func (c *Cache) TTL() time.Duration {
	return c.store.TTL()
}

// Close stops the underlying cache janitor.
func (c *Cache) Close() {
	c.store.Close()
}
