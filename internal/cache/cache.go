// Package cache provides a small in-process LRU.
package cache

// Cache defines a generic cache interface
type Cache[K comparable, V any] interface {
	Get(key K) (V, bool)
	Set(key K, value V)
	Delete(key K)
	Size() int
}

var _ Cache[string, int] = (*LRUCache[string, int])(nil)
