package rules

import "time"

// RulesCache caches the active rule list so every claim invocation does not
// hit the store. Implementations must be safe for concurrent use.
type RulesCache interface {
	// Get retrieves cached rules, returns nil on a miss or expiry
	Get() []*Rule

	// Set stores rules in the cache
	Set(rules []*Rule)

	// Invalidate clears the cache, forcing a refresh on the next Get
	Invalidate()

	// IsValid reports whether the cache holds usable data
	IsValid() bool
}

// CacheConfig controls cache expiry behavior.
type CacheConfig struct {
	// TTL is the time-to-live for cached entries. Zero means no expiry;
	// the cache only refreshes when a mutation invalidates it.
	TTL time.Duration
}

// DefaultCacheConfig returns the settings used by the Engine: no TTL,
// invalidate on rule mutations only.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{TTL: 0}
}
