package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-pkgz/lgr"

	"github.com/tylerearls/folio/pkg/repository"
)

// FixedCounter counts requests per client in a window that starts with the first request.
// The counter is a plain integer and expires together with the window.
type FixedCounter struct {
	Store  Store
	Max    int
	Window time.Duration
	Prefix string // key prefix, defaults to "rate_limit:"
}

// Allow checks the counter for ip and increments it when the request is allowed.
// Denied requests do not touch the counter, retry delay is always the full window.
func (f *FixedCounter) Allow(ctx context.Context, ip string) (Decision, error) {
	key := f.key(ip)

	val, err := f.Store.Get(ctx, key)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return Decision{}, fmt.Errorf("get counter: %w", err)
	}

	count := 0
	if err == nil {
		if count, err = strconv.Atoi(val); err != nil {
			lgr.Printf("[WARN] invalid rate limit counter %q for %s, reset", val, key)
			count = 0
		}
	}

	if count >= f.Max {
		return Decision{Allowed: false, Remaining: 0, RetryAfter: f.Window}, nil
	}

	if err := f.Store.Put(ctx, key, strconv.Itoa(count+1), f.Window); err != nil {
		return Decision{}, fmt.Errorf("put counter: %w", err)
	}
	return Decision{Allowed: true, Remaining: f.Max - count - 1}, nil
}

func (f *FixedCounter) key(ip string) string {
	if f.Prefix == "" {
		return "rate_limit:" + ip
	}
	return f.Prefix + ip
}
