// Package respcache keeps rendered HTTP responses for a short time, standing in for an edge cache.
package respcache

import (
	"net/http"
	"sync"
	"time"
)

// Entry is a stored response
type Entry struct {
	Status  int
	Header  http.Header
	Body    []byte
	Expires time.Time
}

// Cache is a concurrency-safe response cache with a fixed ttl
type Cache struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	entries map[string]Entry
	gen     uint64 // bumped on every Delete
}

// New makes a cache keeping entries for ttl
func New(ttl time.Duration) *Cache {
	return &Cache{ttl: ttl, now: time.Now, entries: map[string]Entry{}}
}

// Key builds cache key for a request, only method and path are significant
func Key(r *http.Request) string {
	return r.Method + " " + r.URL.Path
}

// Get returns a fresh entry. Stale entries are dropped.
func (c *Cache) Get(key string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return Entry{}, false
	}
	if !c.now().Before(e.Expires) {
		delete(c.entries, key)
		return Entry{}, false
	}
	return Entry{Status: e.Status, Header: e.Header.Clone(), Body: append([]byte(nil), e.Body...), Expires: e.Expires}, true
}

// Set stores a response copy, expiration is set from cache ttl
func (c *Cache) Set(key string, status int, header http.Header, body []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = Entry{
		Status:  status,
		Header:  header.Clone(),
		Body:    append([]byte(nil), body...),
		Expires: c.now().Add(c.ttl),
	}
}

// Generation returns the current invalidation generation. Pass it to SetIfCurrent
// to avoid storing a response rendered before an invalidation.
func (c *Cache) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

// SetIfCurrent stores a response only if no Delete happened since gen was taken
func (c *Cache) SetIfCurrent(gen uint64, key string, status int, header http.Header, body []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return false
	}
	c.entries[key] = Entry{
		Status:  status,
		Header:  header.Clone(),
		Body:    append([]byte(nil), body...),
		Expires: c.now().Add(c.ttl),
	}
	return true
}

// Delete removes key, reports whether it was present
func (c *Cache) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	_, ok := c.entries[key]
	delete(c.entries, key)
	return ok
}
