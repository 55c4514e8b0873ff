// Package captcha verifies Cloudflare Turnstile tokens
package captcha

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-pkgz/lgr"
)

// DefaultVerifyURL is the Turnstile siteverify endpoint
const DefaultVerifyURL = "https://challenges.cloudflare.com/turnstile/v0/siteverify"

// VerifyError is returned when verification didn't pass. Message is safe to show to users.
type VerifyError struct {
	Message string
	Codes   []string
	Err     error
}

func (e *VerifyError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	if len(e.Codes) > 0 {
		return fmt.Sprintf("%s: %s", e.Message, strings.Join(e.Codes, ", "))
	}
	return e.Message
}

func (e *VerifyError) Unwrap() error { return e.Err }

// Turnstile verifies tokens against the siteverify API
type Turnstile struct {
	url    string
	secret string
	client *http.Client
}

type verifyResponse struct {
	Success     bool     `json:"success"`
	ErrorCodes  []string `json:"error-codes"`
	ChallengeTS string   `json:"challenge_ts"`
	Hostname    string   `json:"hostname"`
}

// NewTurnstile makes a verifier. Empty verifyURL means the public Cloudflare endpoint.
func NewTurnstile(verifyURL, secret string, timeout time.Duration) *Turnstile {
	if verifyURL == "" {
		verifyURL = DefaultVerifyURL
	}
	return &Turnstile{url: verifyURL, secret: secret, client: &http.Client{Timeout: timeout}}
}

// Verify checks token issued to a client at remoteIP. Any failure, including transport
// and decoding errors, is returned as *VerifyError.
func (t *Turnstile) Verify(ctx context.Context, token, remoteIP string) error {
	form := url.Values{}
	form.Set("secret", t.secret)
	form.Set("response", token)
	form.Set("remoteip", remoteIP)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, strings.NewReader(form.Encode()))
	if err != nil {
		return &VerifyError{Message: "Failed to verify Turnstile token", Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.client.Do(req)
	if err != nil {
		lgr.Printf("[WARN] turnstile request failed: %v", err)
		return &VerifyError{Message: "Failed to verify Turnstile token", Err: err}
	}
	defer resp.Body.Close()

	var vr verifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&vr); err != nil {
		lgr.Printf("[WARN] turnstile response status %d can't be decoded: %v", resp.StatusCode, err)
		return &VerifyError{Message: "Failed to verify Turnstile token", Err: err}
	}

	if !vr.Success {
		lgr.Printf("[WARN] turnstile verification failed: %v", vr.ErrorCodes)
		return &VerifyError{Message: "Turnstile verification failed", Codes: vr.ErrorCodes}
	}
	return nil
}
