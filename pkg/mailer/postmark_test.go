package mailer

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostmark_Send(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		var got map[string]any
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "token-1", r.Header.Get("X-Postmark-Server-Token"))
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			assert.Equal(t, "application/json", r.Header.Get("Accept"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			_, _ = w.Write([]byte(`{"ErrorCode":0,"Message":"OK","MessageID":"abc-123"}`))
		}))
		defer ts.Close()

		p := NewPostmark(ts.URL, "token-1", time.Second)
		err := p.Send(context.Background(), Email{
			From: "Contact <contact@example.com>", To: "me@example.com", ReplyTo: "you@example.com",
			Subject: "Portfolio Contact: You", TextBody: "text", HTMLBody: "<p>html</p>",
			Metadata: map[string]string{"submission_id": "id-1"},
		})
		require.NoError(t, err)
		assert.Equal(t, "Contact <contact@example.com>", got["From"])
		assert.Equal(t, "me@example.com", got["To"])
		assert.Equal(t, "you@example.com", got["ReplyTo"])
		assert.Equal(t, "Portfolio Contact: You", got["Subject"])
		assert.Equal(t, "text", got["TextBody"])
		assert.Equal(t, "<p>html</p>", got["HtmlBody"])
		assert.Equal(t, "outbound", got["MessageStream"])
		assert.Equal(t, map[string]any{"submission_id": "id-1"}, got["Metadata"])
	})

	t.Run("provider error with message", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`{"ErrorCode":300,"Message":"Invalid 'To' address"}`))
		}))
		defer ts.Close()

		err := NewPostmark(ts.URL, "t", time.Second).Send(context.Background(), Email{To: "x"})
		var perr *ProviderError
		require.True(t, errors.As(err, &perr))
		assert.Equal(t, http.StatusUnprocessableEntity, perr.Status)
		assert.Equal(t, 300, perr.ErrorCode)
		assert.Equal(t, "Invalid 'To' address", perr.Message)
	})

	t.Run("provider error without body", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer ts.Close()

		err := NewPostmark(ts.URL, "t", time.Second).Send(context.Background(), Email{})
		var perr *ProviderError
		require.True(t, errors.As(err, &perr))
		assert.Equal(t, "Failed to send email", perr.Message)
	})

	t.Run("network error", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		ts.Close()

		err := NewPostmark(ts.URL, "t", time.Second).Send(context.Background(), Email{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "send email")
	})
}

func TestContactEmail(t *testing.T) {
	e, err := ContactEmail("Portfolio <contact@example.com>", "owner@example.com",
		`Eve <script>alert("x")</script>`, "eve@example.com", "line1\nline2 & <b>bold</b>", "sub-1")
	require.NoError(t, err)

	assert.Equal(t, "Portfolio <contact@example.com>", e.From)
	assert.Equal(t, "owner@example.com", e.To)
	assert.Equal(t, "eve@example.com", e.ReplyTo)
	assert.Equal(t, `Portfolio Contact: Eve <script>alert("x")</script>`, e.Subject)
	assert.Equal(t, map[string]string{"submission_id": "sub-1"}, e.Metadata)

	assert.Equal(t, "New contact form submission:\n\nName: Eve <script>alert(\"x\")</script>\n"+
		"Email: eve@example.com\n\nMessage:\nline1\nline2 & <b>bold</b>", e.TextBody)

	assert.NotContains(t, e.HTMLBody, "<script>")
	assert.NotContains(t, e.HTMLBody, "<b>")
	assert.Contains(t, e.HTMLBody, "&lt;script&gt;")
	assert.Contains(t, e.HTMLBody, "&lt;b&gt;bold&lt;/b&gt;")
	assert.Contains(t, e.HTMLBody, "&amp;")
	assert.Contains(t, e.HTMLBody, `<a href="mailto:eve@example.com">eve@example.com</a>`)
	assert.Contains(t, e.HTMLBody, "<h2>New Portfolio Contact Form Submission</h2>")
	assert.Contains(t, e.HTMLBody, "line1<br")
}

func TestContactEmail_NoSubmissionID(t *testing.T) {
	e, err := ContactEmail("f", "t", "n", "e@x.io", "m", "")
	require.NoError(t, err)
	assert.Nil(t, e.Metadata)
}
