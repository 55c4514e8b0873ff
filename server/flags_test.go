package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tylerearls/folio/pkg/domain"
	"github.com/tylerearls/folio/pkg/flags"
	"github.com/tylerearls/folio/pkg/ratelimit"
)

const defaultFlagsBody = `{"email-contact-form":{"enabled":false}}`

func getFlags(srv *Server, hdr map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/flags", http.NoBody)
	req.Header.Set("CF-Connecting-IP", "1.2.3.4")
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	return serve(srv, req)
}

func putFlags(srv *Server, body, apiKey string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPut, "/api/flags", strings.NewReader(body))
	req.Header.Set("CF-Connecting-IP", "1.2.3.4")
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}
	return serve(srv, req)
}

func waitCached(t *testing.T, srv *Server) {
	t.Helper()
	require.Eventually(t, func() bool {
		_, ok := srv.cache.Get("GET /api/flags")
		return ok
	}, time.Second, 5*time.Millisecond)
}

func TestGetFlags(t *testing.T) {
	d := newTestDeps()
	srv := testServer(t, d)

	rec := getFlags(srv, map[string]string{"Origin": "https://tylerearls.com"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, defaultFlagsBody, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "public, max-age=60, stale-while-revalidate=30", rec.Header().Get("Cache-Control"))
	assert.Equal(t, `"4xrgby"`, rec.Header().Get("ETag"))
	assert.Equal(t, "https://tylerearls.com", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "Origin", rec.Header().Get("Vary"))

	require.Len(t, d.flags.LoadCalls(), 1)
	require.Len(t, d.limiter.AllowCalls(), 1)
	assert.Equal(t, "1.2.3.4", d.limiter.AllowCalls()[0].IP)
}

func TestGetFlags_ServedFromCache(t *testing.T) {
	d := newTestDeps()
	srv := testServer(t, d)

	first := getFlags(srv, nil)
	require.Equal(t, http.StatusOK, first.Code)
	waitCached(t, srv)

	second := getFlags(srv, map[string]string{"Origin": "http://localhost:3000"})
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, first.Header().Get("ETag"), second.Header().Get("ETag"))
	assert.Equal(t, "http://localhost:3000", second.Header().Get("Access-Control-Allow-Origin"), "cors is per request")

	assert.Len(t, d.flags.LoadCalls(), 1, "store read only once")
	assert.Len(t, d.limiter.AllowCalls(), 2, "rate limit applies to cached responses too")
}

func TestGetFlags_NotModified(t *testing.T) {
	srv := testServer(t, newTestDeps())

	rec := getFlags(srv, map[string]string{"If-None-Match": `"4xrgby"`})
	assert.Equal(t, http.StatusNotModified, rec.Code)
	assert.Empty(t, rec.Body.String())
	assert.Equal(t, `"4xrgby"`, rec.Header().Get("ETag"))
	assert.Equal(t, "public, max-age=60, stale-while-revalidate=30", rec.Header().Get("Cache-Control"))

	rec = getFlags(srv, map[string]string{"If-None-Match": `"other"`})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, defaultFlagsBody, rec.Body.String())
}

func TestGetFlags_FallsBackToDefaults(t *testing.T) {
	tests := []struct {
		name string
		load func(ctx context.Context) (domain.FeatureFlagSet, error)
	}{
		{name: "store error", load: func(context.Context) (domain.FeatureFlagSet, error) {
			return nil, errors.New("db is gone")
		}},
		{name: "panic", load: func(context.Context) (domain.FeatureFlagSet, error) {
			panic("boom")
		}},
		{name: "missing required flag", load: func(context.Context) (domain.FeatureFlagSet, error) {
			return domain.FeatureFlagSet{"other": {Enabled: true}}, nil
		}},
		{name: "nil set", load: func(context.Context) (domain.FeatureFlagSet, error) {
			return nil, nil
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newTestDeps()
			d.flags.LoadFunc = tt.load
			srv := testServer(t, d)

			rec := getFlags(srv, nil)
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, defaultFlagsBody, rec.Body.String())
			_, cached := srv.cache.Get("GET /api/flags")
			assert.False(t, cached, "fallback response not cached")
		})
	}
}

func TestGetFlags_RecoversAfterStoreOutage(t *testing.T) {
	d := newTestDeps()
	var failing atomic.Bool
	failing.Store(true)
	d.flags.LoadFunc = func(ctx context.Context) (domain.FeatureFlagSet, error) {
		if failing.Load() {
			return nil, errors.New("store unavailable")
		}
		return domain.FeatureFlagSet{flags.EmailContactForm: {Enabled: true}}, nil
	}
	srv := testServer(t, d)

	rec := getFlags(srv, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, defaultFlagsBody, rec.Body.String())

	failing.Store(false)
	rec = getFlags(srv, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `{"email-contact-form":{"enabled":true}}`, rec.Body.String())
	assert.Len(t, d.flags.LoadCalls(), 2)

	waitCached(t, srv)
	rec = getFlags(srv, nil)
	assert.Equal(t, `{"email-contact-form":{"enabled":true}}`, rec.Body.String())
	assert.Len(t, d.flags.LoadCalls(), 2, "stored flags served from cache")
}

func TestLoadFlags_FailClosed(t *testing.T) {
	d := newTestDeps()
	d.flags.LoadFunc = func(ctx context.Context) (domain.FeatureFlagSet, error) {
		return nil, errors.New("store unavailable")
	}
	srv := testServer(t, d)

	set, stored, err := srv.loadFlags(context.Background(), domain.FailClosed)
	require.Error(t, err)
	assert.Nil(t, set)
	assert.False(t, stored)

	set, stored, err = srv.loadFlags(context.Background(), domain.FailOpen)
	require.NoError(t, err)
	assert.Equal(t, flags.Defaults(), set)
	assert.False(t, stored)
}

func TestGetFlags_RateLimited(t *testing.T) {
	d := newTestDeps()
	d.limiter.AllowFunc = func(ctx context.Context, ip string) (ratelimit.Decision, error) {
		return ratelimit.Decision{Allowed: false, RetryAfter: 60 * time.Second}, nil
	}
	srv := testServer(t, d)

	rec := getFlags(srv, nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.JSONEq(t, `{"error":"Rate limit exceeded","message":"Too many requests. Please try again later."}`, rec.Body.String())
	assert.Empty(t, d.flags.LoadCalls(), "flag store not touched")
}

func TestGetFlags_RateLimiterErrorFailsOpen(t *testing.T) {
	d := newTestDeps()
	d.limiter.AllowFunc = func(ctx context.Context, ip string) (ratelimit.Decision, error) {
		return ratelimit.Decision{}, errors.New("kv unavailable")
	}
	srv := testServer(t, d)

	rec := getFlags(srv, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, defaultFlagsBody, rec.Body.String())
}

func TestPutFlags(t *testing.T) {
	d := newTestDeps()
	var saved domain.FeatureFlagSet
	d.flags.SaveFunc = func(ctx context.Context, set domain.FeatureFlagSet) error {
		saved = set
		return nil
	}
	srv := testServer(t, d)

	rec := putFlags(srv, `{"email-contact-form":{"enabled":true,"message":"Say hi"}}`, "admin-key")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp struct {
		Success bool                  `json:"success"`
		Message string                `json:"message"`
		Flags   domain.FeatureFlagSet `json:"flags"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "Feature flags updated successfully", resp.Message)
	assert.True(t, resp.Flags.Enabled(flags.EmailContactForm))
	require.NotNil(t, resp.Flags[flags.EmailContactForm].Message)
	assert.Equal(t, "Say hi", *resp.Flags[flags.EmailContactForm].Message)

	require.Len(t, d.flags.SaveCalls(), 1)
	assert.True(t, saved.Enabled(flags.EmailContactForm))
}

func TestPutFlags_InvalidatesCache(t *testing.T) {
	d := newTestDeps()
	current := flags.Defaults()
	d.flags.LoadFunc = func(ctx context.Context) (domain.FeatureFlagSet, error) {
		return current.Clone(), nil
	}
	d.flags.SaveFunc = func(ctx context.Context, set domain.FeatureFlagSet) error {
		current = set
		return nil
	}
	srv := testServer(t, d)

	require.Equal(t, defaultFlagsBody, getFlags(srv, nil).Body.String())
	waitCached(t, srv)

	rec := putFlags(srv, `{"email-contact-form":{"enabled":true}}`, "admin-key")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = getFlags(srv, nil)
	assert.Equal(t, `{"email-contact-form":{"enabled":true}}`, rec.Body.String())
	assert.Equal(t, `"70j1s1"`, rec.Header().Get("ETag"))
	assert.Len(t, d.flags.LoadCalls(), 2)
}

func TestPutFlags_Unauthorized(t *testing.T) {
	tests := []struct {
		name      string
		configKey string
		sentKey   string
	}{
		{name: "no key", configKey: "admin-key"},
		{name: "wrong key", configKey: "admin-key", sentKey: "nope"},
		{name: "prefix of the key", configKey: "admin-key", sentKey: "admin"},
		{name: "no key configured", configKey: "", sentKey: "anything"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newTestDeps()
			d.cfg.GetFlagsConfigFunc = func() (time.Duration, time.Duration, string) {
				return time.Minute, 30 * time.Second, tt.configKey
			}
			srv := testServer(t, d)

			rec := putFlags(srv, `{"email-contact-form":{"enabled":true}}`, tt.sentKey)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, "API-Key", rec.Header().Get("WWW-Authenticate"))
			assert.JSONEq(t, `{"error":"Unauthorized","message":"Valid API key required"}`, rec.Body.String())
			assert.Empty(t, d.flags.SaveCalls())
		})
	}
}

func TestPutFlags_BadRequest(t *testing.T) {
	tests := []struct {
		name         string
		body         string
		wantMessage  string
		wantExpected bool
	}{
		{name: "not json", body: `{not json`, wantMessage: "Invalid JSON in request body"},
		{name: "empty body", body: ``, wantMessage: "Invalid JSON in request body"},
		{name: "string enabled", body: `{"email-contact-form":{"enabled":"true"}}`,
			wantMessage: "Invalid feature flags structure", wantExpected: true},
		{name: "missing flag", body: `{"other":{"enabled":true}}`,
			wantMessage: "Invalid feature flags structure", wantExpected: true},
		{name: "array", body: `[]`, wantMessage: "Invalid feature flags structure", wantExpected: true},
		{name: "numeric message", body: `{"email-contact-form":{"enabled":true,"message":5}}`,
			wantMessage: "Invalid feature flags structure", wantExpected: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newTestDeps()
			srv := testServer(t, d)

			rec := putFlags(srv, tt.body, "admin-key")
			assert.Equal(t, http.StatusBadRequest, rec.Code)

			var resp map[string]any
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, "Bad Request", resp["error"])
			assert.Equal(t, tt.wantMessage, resp["message"])
			if tt.wantExpected {
				expected, ok := resp["expected"].(map[string]any)
				require.True(t, ok, "expected shape is returned")
				assert.Contains(t, expected, flags.EmailContactForm)
			} else {
				assert.NotContains(t, resp, "expected")
			}
			assert.Empty(t, d.flags.SaveCalls())
		})
	}
}

func TestPutFlags_SaveError(t *testing.T) {
	d := newTestDeps()
	d.flags.SaveFunc = func(ctx context.Context, set domain.FeatureFlagSet) error {
		return errors.New("disk full")
	}
	srv := testServer(t, d)

	rec := putFlags(srv, `{"email-contact-form":{"enabled":true}}`, "admin-key")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Internal Server Error","message":"Failed to update feature flags"}`, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "disk full")
}

func TestPutFlags_RateLimit(t *testing.T) {
	t.Run("limited", func(t *testing.T) {
		d := newTestDeps()
		d.limiter.AllowFunc = func(ctx context.Context, ip string) (ratelimit.Decision, error) {
			return ratelimit.Decision{Allowed: false, RetryAfter: 60 * time.Second}, nil
		}
		srv := testServer(t, d)

		rec := putFlags(srv, `{"email-contact-form":{"enabled":true}}`, "admin-key")
		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.Equal(t, "60", rec.Header().Get("Retry-After"))
		assert.Empty(t, d.flags.SaveCalls())
	})

	t.Run("limiter error fails closed", func(t *testing.T) {
		d := newTestDeps()
		d.limiter.AllowFunc = func(ctx context.Context, ip string) (ratelimit.Decision, error) {
			return ratelimit.Decision{}, errors.New("kv unavailable")
		}
		srv := testServer(t, d)

		rec := putFlags(srv, `{"email-contact-form":{"enabled":true}}`, "admin-key")
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Empty(t, d.flags.SaveCalls())
	})
}

func TestValidAPIKey(t *testing.T) {
	assert.True(t, validAPIKey("k1", "k1"))
	assert.False(t, validAPIKey("k1", "k2"))
	assert.False(t, validAPIKey("", ""))
	assert.False(t, validAPIKey("k1", ""))
}
