package domain

// ContactSubmission is a single contact form request. It lives for one request and is never persisted.
type ContactSubmission struct {
	Name           string
	Email          string
	Message        string
	Website        string // honeypot, hidden from humans
	TurnstileToken string
}

// RateLimitEntry is a sliding window counter record, WindowStart is unix milliseconds
type RateLimitEntry struct {
	Count       int   `json:"count"`
	WindowStart int64 `json:"windowStart"`
}
