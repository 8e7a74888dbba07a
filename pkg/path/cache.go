package path

import (
	"github.com/dgraph-io/ristretto/v2"
)

// DefaultCacheSize is the number of parsed paths a Cache keeps by default.
const DefaultCacheSize = 512

// Cache memoizes Parse results keyed by the raw expression. It is safe for
// concurrent use. Parsed paths are immutable, so a cached *Path is shared.
type Cache struct {
	c *ristretto.Cache[string, *Path]
}

// NewCache creates a cache holding roughly size parsed paths.
func NewCache(size int) (*Cache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	c, err := ristretto.NewCache(&ristretto.Config[string, *Path]{
		NumCounters: int64(size) * 10,
		MaxCost:     int64(size),
		BufferItems: 64,

		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, err
	}
	return &Cache{c: c}, nil
}

// Parse returns the cached parse of raw, parsing and storing it on a miss.
// Errors are not cached.
func (c *Cache) Parse(raw string) (*Path, error) {
	if c == nil {
		return Parse(raw)
	}
	if p, ok := c.c.Get(raw); ok {
		return p, nil
	}
	p, err := Parse(raw)
	if err != nil {
		return nil, err
	}
	c.c.Set(raw, p, 1)
	return p, nil
}

// Wait blocks until buffered writes are applied.
func (c *Cache) Wait() {
	c.c.Wait()
}

// Close releases the cache's background goroutines.
func (c *Cache) Close() {
	c.c.Close()
}
