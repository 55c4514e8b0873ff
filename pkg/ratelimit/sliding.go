package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/tylerearls/folio/pkg/domain"
	"github.com/tylerearls/folio/pkg/repository"
)

// SlidingWindow limits requests per client within a window started by the first recorded request.
// Check and Record are separate so callers count only successful operations.
type SlidingWindow struct {
	Store  Store
	Max    int
	Window time.Duration
	Prefix string           // key prefix, defaults to "rate-limit:"
	Now    func() time.Time // defaults to time.Now
}

// Check reports whether ip may proceed. Storage failures are returned, the caller
// decides whether to let the request through.
func (s *SlidingWindow) Check(ctx context.Context, ip string) (Decision, error) {
	entry, err := s.load(ctx, ip)
	if err != nil {
		return Decision{}, err
	}

	now := s.now()
	if entry == nil || s.expired(entry, now) {
		return Decision{Allowed: true, Remaining: s.Max - 1}, nil
	}

	if entry.Count >= s.Max {
		windowEnd := time.UnixMilli(entry.WindowStart).Add(s.Window)
		retry := windowEnd.Sub(now)
		if retry < time.Second {
			retry = time.Second // window closes this instant, still limited
		}
		return Decision{Allowed: false, Remaining: 0, RetryAfter: retry}, nil
	}
	return Decision{Allowed: true, Remaining: s.Max - entry.Count - 1}, nil
}

// Record counts one request for ip, starting a new window if none is active.
// The entry is kept for twice the window so stale counters expire on their own.
func (s *SlidingWindow) Record(ctx context.Context, ip string) error {
	entry, err := s.load(ctx, ip)
	if err != nil {
		return err
	}

	now := s.now()
	next := domain.RateLimitEntry{Count: 1, WindowStart: now.UnixMilli()}
	if entry != nil && !s.expired(entry, now) {
		next = domain.RateLimitEntry{Count: entry.Count + 1, WindowStart: entry.WindowStart}
	}

	data, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("marshal rate limit entry: %w", err)
	}
	if err := s.Store.Put(ctx, s.key(ip), string(data), 2*s.Window); err != nil {
		return fmt.Errorf("put rate limit entry: %w", err)
	}
	return nil
}

func (s *SlidingWindow) load(ctx context.Context, ip string) (*domain.RateLimitEntry, error) {
	val, err := s.Store.Get(ctx, s.key(ip))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get rate limit entry: %w", err)
	}
	var entry domain.RateLimitEntry
	if err := json.Unmarshal([]byte(val), &entry); err != nil {
		return nil, fmt.Errorf("unmarshal rate limit entry: %w", err)
	}
	return &entry, nil
}

func (s *SlidingWindow) expired(entry *domain.RateLimitEntry, now time.Time) bool {
	return now.UnixMilli()-entry.WindowStart > s.Window.Milliseconds()
}

func (s *SlidingWindow) key(ip string) string {
	if s.Prefix == "" {
		return "rate-limit:" + ip
	}
	return s.Prefix + ip
}

func (s *SlidingWindow) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}
