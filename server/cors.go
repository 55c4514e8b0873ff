package server

import (
	"net"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/go-pkgz/rest/realip"
)

type corsPolicy struct {
	origins []string // first one is returned for unknown origins
	methods string
	headers string
	maxAge  int // seconds, zero omits the header
}

// corsMiddleware sets CORS headers for allow-listed origins. Unknown origins get the first
// allowed origin back, so browsers reject the response.
func corsMiddleware(p corsPolicy) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", p.allowOrigin(r.Header.Get("Origin")))
			h.Add("Vary", "Origin")
			h.Set("Access-Control-Allow-Methods", p.methods)
			h.Set("Access-Control-Allow-Headers", p.headers)
			if p.maxAge > 0 {
				h.Set("Access-Control-Max-Age", strconv.Itoa(p.maxAge))
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (p corsPolicy) allowOrigin(origin string) string {
	if origin != "" && slices.Contains(p.origins, origin) {
		return origin
	}
	if len(p.origins) == 0 {
		return ""
	}
	return p.origins[0]
}

// preflightHandler answers OPTIONS, headers are already set by corsMiddleware
func preflightHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

// clientIP returns caller address. Cloudflare header wins, then forwarding headers and remote addr.
func clientIP(r *http.Request) string {
	if ip := strings.TrimSpace(r.Header.Get("CF-Connecting-IP")); ip != "" {
		return ip
	}
	if ip, err := realip.Get(r); err == nil && ip != "" {
		return ip
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host
	}
	return "unknown"
}
