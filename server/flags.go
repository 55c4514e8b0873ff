package server

import (
	"bytes"
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-pkgz/lgr"

	"github.com/tylerearls/folio/pkg/domain"
	"github.com/tylerearls/folio/pkg/flags"
	"github.com/tylerearls/folio/pkg/respcache"
)

// getFlagsHandler serves the flag set. Load failures are resolved by FlagsReadPolicy,
// defaults served in place of stored flags are not cached.
func (s *Server) getFlagsHandler(w http.ResponseWriter, r *http.Request) {
	if !s.checkFlagsRate(w, r, domain.FlagsReadPolicy) {
		return
	}

	key := respcache.Key(r)
	if e, ok := s.cache.Get(key); ok {
		writeEntry(w, r, e.Status, e.Header, e.Body)
		return
	}

	gen := s.cache.Generation()
	set, stored, err := s.loadFlags(r.Context(), domain.FlagsReadPolicy)
	if err != nil {
		renderError(w, r, http.StatusInternalServerError, "Internal Server Error", "Failed to load feature flags")
		return
	}
	body, err := flags.Marshal(set)
	if err != nil {
		lgr.Printf("[ERROR] can't marshal flags, serving defaults: %v", err)
		stored = false
		if body, err = flags.Marshal(flags.Defaults()); err != nil {
			renderError(w, r, http.StatusInternalServerError, "Internal Server Error", "Failed to render feature flags")
			return
		}
	}

	ttl, swr, _ := s.config.GetFlagsConfig()
	header := http.Header{}
	header.Set("Content-Type", "application/json")
	header.Set("Cache-Control", fmt.Sprintf("public, max-age=%d, stale-while-revalidate=%d", int(ttl.Seconds()), int(swr.Seconds())))
	header.Set("ETag", flags.ETag(body))

	if stored {
		go s.cache.SetIfCurrent(gen, key, http.StatusOK, header, body)
	}

	writeEntry(w, r, http.StatusOK, header, body)
}

// putFlagsHandler replaces the whole flag set, requires admin api key
func (s *Server) putFlagsHandler(w http.ResponseWriter, r *http.Request) {
	if !s.checkFlagsRate(w, r, domain.FlagsWritePolicy) {
		return
	}

	_, _, adminKey := s.config.GetFlagsConfig()
	if !validAPIKey(r.Header.Get("X-API-Key"), adminKey) {
		w.Header().Set("WWW-Authenticate", "API-Key")
		renderError(w, r, http.StatusUnauthorized, "Unauthorized", "Valid API key required")
		return
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		renderError(w, r, http.StatusBadRequest, "Bad Request", "Invalid JSON in request body")
		return
	}

	set, err := flags.Parse(data)
	switch {
	case errors.Is(err, flags.ErrInvalidJSON):
		renderError(w, r, http.StatusBadRequest, "Bad Request", "Invalid JSON in request body")
		return
	case err != nil:
		lgr.Printf("[DEBUG] rejected flag update: %v", err)
		renderJSON(w, r, http.StatusBadRequest, map[string]any{
			"error":    "Bad Request",
			"message":  "Invalid feature flags structure",
			"expected": flags.ExpectedShape(),
		})
		return
	}

	if err := s.flags.Save(r.Context(), set); err != nil {
		lgr.Printf("[ERROR] failed to save feature flags: %v", err)
		renderError(w, r, http.StatusInternalServerError, "Internal Server Error", "Failed to update feature flags")
		return
	}

	s.cache.Delete(http.MethodGet + " " + r.URL.Path) // cached GET response of the same path
	lgr.Printf("[INFO] feature flags updated from %s", clientIP(r))

	renderJSON(w, r, http.StatusOK, map[string]any{
		"success": true,
		"message": "Feature flags updated successfully",
		"flags":   set,
	})
}

// checkFlagsRate applies the per-ip counter. Store failures are resolved by policy,
// fail-open lets the request through, fail-closed answers 500.
func (s *Server) checkFlagsRate(w http.ResponseWriter, r *http.Request, policy domain.FailurePolicy) bool {
	ip := clientIP(r)
	decision, err := s.flagsLimiter.Allow(r.Context(), ip)
	if err != nil {
		lgr.Printf("[WARN] flags rate limit check for %s failed (%s): %v", ip, policy, err)
		if policy == domain.FailOpen {
			return true
		}
		renderError(w, r, http.StatusInternalServerError, "Internal Server Error", "Failed to update feature flags")
		return false
	}
	if !decision.Allowed {
		w.Header().Set("Retry-After", strconv.Itoa(decision.RetryAfterSeconds()))
		renderError(w, r, http.StatusTooManyRequests, "Rate limit exceeded", "Too many requests. Please try again later.")
		return false
	}
	return true
}

// loadFlags reads the flag set, stored is false when defaults are served in place of stored flags.
// Errors and panics are resolved by policy, fail-open serves defaults.
func (s *Server) loadFlags(ctx context.Context, policy domain.FailurePolicy) (set domain.FeatureFlagSet, stored bool, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			set, stored, err = flagsFallback(policy, fmt.Errorf("panic: %v", rec))
		}
	}()
	set, err = s.flags.Load(ctx)
	if err == nil && set == nil {
		err = errors.New("empty flag set")
	}
	if err == nil {
		err = flags.Validate(set)
	}
	if err != nil {
		return flagsFallback(policy, err)
	}
	return set, true, nil
}

func flagsFallback(policy domain.FailurePolicy, err error) (domain.FeatureFlagSet, bool, error) {
	if policy == domain.FailOpen {
		lgr.Printf("[ERROR] can't load feature flags, serving defaults: %v", err)
		return flags.Defaults(), false, nil
	}
	lgr.Printf("[ERROR] can't load feature flags: %v", err)
	return nil, false, fmt.Errorf("load flags: %w", err)
}

// writeEntry writes a rendered response, matching If-None-Match gets 304 with the same headers
func writeEntry(w http.ResponseWriter, r *http.Request, status int, header http.Header, body []byte) {
	for k, v := range header {
		w.Header()[k] = append([]string(nil), v...)
	}
	if etag := header.Get("ETag"); etag != "" && r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.WriteHeader(status)
	if _, err := io.Copy(w, bytes.NewReader(body)); err != nil {
		lgr.Printf("[WARN] can't write response: %v", err)
	}
}

func validAPIKey(got, want string) bool {
	if want == "" || got == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}
