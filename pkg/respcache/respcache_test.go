package respcache

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache(t *testing.T) {
	c := New(time.Minute)
	now := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	hdr := http.Header{}
	hdr.Set("ETag", `"abc"`)
	body := []byte(`{"x":1}`)
	c.Set("GET /api/flags", http.StatusOK, hdr, body)

	// mutating originals doesn't affect stored entry
	hdr.Set("ETag", "changed")
	body[0] = '['

	e, ok := c.Get("GET /api/flags")
	require.True(t, ok)
	assert.Equal(t, http.StatusOK, e.Status)
	assert.Equal(t, `"abc"`, e.Header.Get("ETag"))
	assert.Equal(t, `{"x":1}`, string(e.Body))

	now = now.Add(59 * time.Second)
	_, ok = c.Get("GET /api/flags")
	assert.True(t, ok)

	now = now.Add(time.Second)
	_, ok = c.Get("GET /api/flags")
	assert.False(t, ok, "expired at ttl")
}

func TestCache_Delete(t *testing.T) {
	c := New(time.Minute)
	c.Set("k", http.StatusOK, http.Header{}, nil)
	assert.True(t, c.Delete("k"))
	assert.False(t, c.Delete("k"))
	_, ok := c.Get("k")
	assert.False(t, ok)
}

func TestCache_Concurrent(t *testing.T) {
	c := New(time.Minute)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			c.Set("k", http.StatusOK, http.Header{}, []byte("v"))
		}()
		go func() {
			defer wg.Done()
			c.Get("k")
		}()
	}
	wg.Wait()
}

func TestKey(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "http://example.com/api/flags?x=1", http.NoBody)
	assert.Equal(t, "GET /api/flags", Key(req))
}

func TestCache_SetIfCurrent(t *testing.T) {
	c := New(time.Minute)
	gen := c.Generation()
	assert.True(t, c.SetIfCurrent(gen, "k", http.StatusOK, http.Header{}, []byte("v1")))

	stale := c.Generation()
	c.Delete("k")
	assert.False(t, c.SetIfCurrent(stale, "k", http.StatusOK, http.Header{}, []byte("old")))
	_, ok := c.Get("k")
	assert.False(t, ok, "response rendered before invalidation must not be stored")

	assert.True(t, c.SetIfCurrent(c.Generation(), "k", http.StatusOK, http.Header{}, []byte("v2")))
	e, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v2", string(e.Body))
}
