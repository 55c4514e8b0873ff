// Package mailer sends transactional email through the Postmark API
package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-pkgz/lgr"
)

// DefaultAPIURL is the Postmark single email endpoint
const DefaultAPIURL = "https://api.postmarkapp.com/email"

// Email is a message to send
type Email struct {
	From     string
	To       string
	ReplyTo  string
	Subject  string
	TextBody string
	HTMLBody string
	Metadata map[string]string
}

// ProviderError is a non-2xx answer from Postmark
type ProviderError struct {
	Status    int
	ErrorCode int
	Message   string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("postmark status %d, code %d: %s", e.Status, e.ErrorCode, e.Message)
}

// Postmark sends email with a server token
type Postmark struct {
	url    string
	token  string
	client *http.Client
}

type postmarkRequest struct {
	From          string            `json:"From"`
	To            string            `json:"To"`
	ReplyTo       string            `json:"ReplyTo,omitempty"`
	Subject       string            `json:"Subject"`
	TextBody      string            `json:"TextBody,omitempty"`
	HTMLBody      string            `json:"HtmlBody,omitempty"`
	MessageStream string            `json:"MessageStream"`
	Metadata      map[string]string `json:"Metadata,omitempty"`
}

type postmarkResponse struct {
	ErrorCode int    `json:"ErrorCode"`
	Message   string `json:"Message"`
	MessageID string `json:"MessageID"`
}

// NewPostmark makes a client. Empty apiURL means the public Postmark endpoint.
func NewPostmark(apiURL, token string, timeout time.Duration) *Postmark {
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	return &Postmark{url: apiURL, token: token, client: &http.Client{Timeout: timeout}}
}

// Send posts the email to the outbound stream
func (p *Postmark) Send(ctx context.Context, email Email) error {
	body, err := json.Marshal(postmarkRequest{
		From:          email.From,
		To:            email.To,
		ReplyTo:       email.ReplyTo,
		Subject:       email.Subject,
		TextBody:      email.TextBody,
		HTMLBody:      email.HTMLBody,
		MessageStream: "outbound",
		Metadata:      email.Metadata,
	})
	if err != nil {
		return fmt.Errorf("marshal email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Postmark-Server-Token", p.token)

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		perr := &ProviderError{Status: resp.StatusCode, Message: "Failed to send email"}
		var pr postmarkResponse
		if jerr := json.Unmarshal(respBody, &pr); jerr == nil && pr.Message != "" {
			perr.Message, perr.ErrorCode = pr.Message, pr.ErrorCode
		}
		return perr
	}

	var pr postmarkResponse
	if err := json.Unmarshal(respBody, &pr); err == nil && pr.MessageID != "" {
		lgr.Printf("[DEBUG] postmark accepted message %s", pr.MessageID)
	}
	return nil
}
