package cache

import (
	"time"

	"github.com/dgraph-io/ristretto/v2"

	"station-recorder/work/logger"
)

// TargetCache remembers where a station's playlist URL ultimately resolved
// to, so a capture restarted shortly after a stop skips the redirect walk.
// Entries carry a TTL because providers rotate their edge playlists; a stale
// terminal URL just misses and triggers a fresh walk.
type TargetCache struct {
	cache *ristretto.Cache[string, string]
	ttl   time.Duration
}

// NewTargetCache builds the cache with the given entry TTL.
func NewTargetCache(ttl time.Duration) (*TargetCache, error) {
	c, err := ristretto.NewCache(&ristretto.Config[string, string]{
		NumCounters: 10_000,
		MaxCost:     1 << 20, // URLs are small, a MB of them is plenty
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &TargetCache{cache: c, ttl: ttl}, nil
}

// Get returns the cached terminal URL for a source URL.
func (tc *TargetCache) Get(sourceURL string) (string, bool) {
	return tc.cache.Get(sourceURL)
}

// Set records the terminal URL a source URL resolved to.
func (tc *TargetCache) Set(sourceURL, terminalURL string) {
	tc.cache.SetWithTTL(sourceURL, terminalURL, int64(len(terminalURL)), tc.ttl)
	logger.Debug("{cache - Set} cached terminal url for source (ttl %s)", tc.ttl)
}

// Invalidate drops the cached entry for a source URL, used when a cached
// terminal URL turns out to be dead.
func (tc *TargetCache) Invalidate(sourceURL string) {
	tc.cache.Del(sourceURL)
}

// Close releases the cache's internal resources.
func (tc *TargetCache) Close() {
	tc.cache.Close()
}
