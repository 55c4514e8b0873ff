// Package flagclient fetches the runtime flag set and keeps a short-lived copy on disk
package flagclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-pkgz/lgr"

	"github.com/tylerearls/folio/pkg/domain"
	"github.com/tylerearls/folio/pkg/flags"
)

// defaults match what browsers use for the same endpoint
const (
	DefaultTTL     = 60 * time.Second
	DefaultTimeout = 5 * time.Second
)

// ErrNoURL returned when the client has no endpoint configured
var ErrNoURL = errors.New("feature flags url is not configured")

// Client reads flags from the flags endpoint, CachePath enables the on-disk cache
type Client struct {
	URL       string
	CachePath string
	TTL       time.Duration
	Timeout   time.Duration

	HTTPClient *http.Client     // optional, built from Timeout when nil
	Now        func() time.Time // optional, defaults to time.Now
}

// Flags returns a fresh cached set or fetches it. Expired cache is removed.
func (c *Client) Flags(ctx context.Context) (domain.FeatureFlagSet, error) {
	if set, ok := c.cached(); ok {
		return set, nil
	}

	set, err := c.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	if err := c.store(set); err != nil {
		lgr.Printf("[WARN] can't cache feature flags: %v", err)
	}
	return set, nil
}

// Fetch gets the flag set from the endpoint, bypassing the cache
func (c *Client) Fetch(ctx context.Context) (domain.FeatureFlagSet, error) {
	if c.URL == "" {
		return nil, ErrNoURL
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("make request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient().Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("feature flags request timed out: %w", err)
		}
		return nil, fmt.Errorf("fetch feature flags: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch feature flags: %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return nil, fmt.Errorf("read feature flags: %w", err)
	}
	set, err := flags.Parse(body)
	if err != nil {
		return nil, fmt.Errorf("decode feature flags: %w", err)
	}
	return set, nil
}

func (c *Client) cached() (domain.FeatureFlagSet, bool) {
	if c.CachePath == "" {
		return nil, false
	}
	data, err := os.ReadFile(c.CachePath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			lgr.Printf("[WARN] can't read feature flags cache: %v", err)
		}
		return nil, false
	}

	var env domain.CachedFlags
	if err := json.Unmarshal(data, &env); err != nil || env.Flags == nil {
		lgr.Printf("[WARN] invalid feature flags cache %s, ignored", c.CachePath)
		return nil, false
	}

	age := c.now().Sub(time.UnixMilli(env.Timestamp))
	if age > c.ttl() {
		if err := os.Remove(c.CachePath); err != nil && !errors.Is(err, os.ErrNotExist) {
			lgr.Printf("[WARN] can't remove expired feature flags cache: %v", err)
		}
		return nil, false
	}
	return env.Flags, true
}

func (c *Client) store(set domain.FeatureFlagSet) error {
	if c.CachePath == "" {
		return nil
	}
	data, err := json.Marshal(domain.CachedFlags{Flags: set, Timestamp: c.now().UnixMilli()})
	if err != nil {
		return fmt.Errorf("marshal cache: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(c.CachePath), 0o750); err != nil {
		return fmt.Errorf("make cache dir: %w", err)
	}
	if err := os.WriteFile(c.CachePath, data, 0o600); err != nil {
		return fmt.Errorf("write cache: %w", err)
	}
	return nil
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: c.timeout()}
}

func (c *Client) ttl() time.Duration {
	if c.TTL <= 0 {
		return DefaultTTL
	}
	return c.TTL
}

func (c *Client) timeout() time.Duration {
	if c.Timeout <= 0 {
		return DefaultTimeout
	}
	return c.Timeout
}

func (c *Client) now() time.Time {
	if c.Now == nil {
		return time.Now()
	}
	return c.Now()
}
