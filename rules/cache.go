package rules

// Cache memoizes lazily constructed child handles keyed by index.
//
// The first Get for a key invokes build and stores the result; later Gets
// return the identical stored value, whatever the access order. Children
// are owned by the cache and live exactly as long as it (and hence as
// long as the proxy owning the cache).
type Cache[K comparable, V any] struct {
	entries map[K]V
}

// NewCache returns an empty cache.
func NewCache[K comparable, V any]() *Cache[K, V] {
	return &Cache[K, V]{entries: make(map[K]V)}
}

// Get returns the value stored under key, constructing and storing it
// with build on first access. build is invoked at most once per key.
func (c *Cache[K, V]) Get(key K, build func() V) V {
	if v, ok := c.entries[key]; ok {
		return v
	}
	v := build()
	c.entries[key] = v
	return v
}

// Len returns the number of children constructed so far.
func (c *Cache[K, V]) Len() int { return len(c.entries) }
