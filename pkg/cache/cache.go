package cache

import "time"

type Cache[K comparable, V any] interface {
	// Get returns the value for key and true if present (and not expired).
	Get(key K) (V, bool)

	// Set stores the value for key using the cache's default TTL.
	Set(key K, value V)

	// SetWithTTL stores the value for key with a custom ttl. ttl < 0 means no
	// expiry and ttl == 0 means the cache's default TTL.
	SetWithTTL(key K, value V, ttl time.Duration)

	// Delete removes the key from the cache.
	Delete(key K)

	// Len returns the number of items currently stored.
	Len() int

	// GetAll returns a copy of all the non-expired cache contents.
	GetAll() map[K]V

	// Close stops the cleanup daemon. The cache stays usable afterwards.
	Close()
}
