// Package ratelimit implements per-client request limits on top of a key-value store.
// Counters are read and written with plain get/put, so concurrent requests from the same
// client may race and limits are approximate.
package ratelimit

import (
	"context"
	"time"
)

// Store is the key-value storage used by limiters
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Put(ctx context.Context, key, value string, ttl time.Duration) error
}

// Decision is the result of a limit check
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// RetryAfterSeconds returns retry delay rounded up to whole seconds
func (d Decision) RetryAfterSeconds() int {
	secs := d.RetryAfter / time.Second
	if d.RetryAfter%time.Second != 0 {
		secs++
	}
	return int(secs)
}
