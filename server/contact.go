package server

import (
	"net/http"
	"strconv"

	"github.com/go-pkgz/lgr"
)

// contactHandler relays a contact form submission, the processor decides status and body
func (s *Server) contactHandler(w http.ResponseWriter, r *http.Request) {
	ip := clientIP(r)
	res := s.contact.Submit(r.Context(), ip, r.Body)
	if res.Status >= http.StatusInternalServerError {
		lgr.Printf("[WARN] contact submission from %s failed, %s", ip, res)
	}
	if res.Status == http.StatusTooManyRequests {
		w.Header().Set("Retry-After", strconv.Itoa(res.Response.RetryAfter))
	}
	renderJSON(w, r, res.Status, res.Response)
}
