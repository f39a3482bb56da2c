// Package chunkcache shares prompt text chunks across trace entries that
// carry the same prefix-cache hash id, under a writer-priority spin lock.
package chunkcache

// Cache maps a trace entry's chunk hash id to its materialized text. The
// first goroutine to insert a given hash wins; later inserts of the same
// key are no-ops so every entry referencing that hash sees identical text.
type Cache struct {
	mu   spinRWMutex
	data map[uint64]string
}

// New builds an empty chunk cache.
func New() *Cache {
	return &Cache{data: make(map[uint64]string)}
}

// Get returns the cached text for hash, if present.
func (c *Cache) Get(hash uint64) (string, bool) {
	c.mu.rLock()
	defer c.mu.rUnlock()
	v, ok := c.data[hash]
	return v, ok
}

// GetOrInsert returns the cached text for hash if present; otherwise it
// calls gen to materialize the text, inserts it, and returns it. If two
// goroutines race to insert the same hash, the first writer's text wins and
// the second goroutine's gen() result is discarded.
func (c *Cache) GetOrInsert(hash uint64, gen func() string) string {
	if v, ok := c.Get(hash); ok {
		return v
	}
	text := gen()

	c.mu.lock()
	defer c.mu.unlock()
	if existing, ok := c.data[hash]; ok {
		return existing
	}
	c.data[hash] = text
	return text
}

// Len returns the number of distinct chunks currently cached.
func (c *Cache) Len() int {
	c.mu.rLock()
	defer c.mu.rUnlock()
	return len(c.data)
}
