package contact

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/tylerearls/folio/pkg/domain"
)

const (
	maxNameLen    = 100
	maxMessageLen = 5000
)

// ErrInvalidJSON returned when request body can't be decoded
var ErrInvalidJSON = errors.New("invalid JSON in request body")

var emailRe = regexp.MustCompile("^[a-zA-Z0-9.!#$%&'*+/=?^_`{|}~-]+@[a-zA-Z0-9-]+(?:\\.[a-zA-Z0-9-]+)*$")

// Decode reads a single JSON value from r
func Decode(r io.Reader) (any, error) {
	var raw any
	dec := json.NewDecoder(r)
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: trailing data", ErrInvalidJSON)
	}
	return raw, nil
}

// Validate checks decoded request body and returns the trimmed submission.
// All fields are checked, so the returned list holds every problem found.
// Non-string values count as missing.
func Validate(raw any) (domain.ContactSubmission, []string) {
	obj, ok := raw.(map[string]any)
	if !ok {
		return domain.ContactSubmission{}, []string{"Request body must be a JSON object"}
	}

	str := func(key string) string {
		s, _ := obj[key].(string)
		return s
	}
	sub := domain.ContactSubmission{
		Name:           strings.TrimSpace(str("name")),
		Email:          strings.TrimSpace(str("email")),
		Message:        strings.TrimSpace(str("message")),
		Website:        str("website"),
		TurnstileToken: strings.TrimSpace(str("turnstileToken")),
	}

	var errs []string
	switch {
	case sub.Name == "":
		errs = append(errs, "Name is required")
	case utf8.RuneCountInString(sub.Name) > maxNameLen:
		errs = append(errs, fmt.Sprintf("Name must be %d characters or less", maxNameLen))
	}

	switch {
	case sub.Email == "":
		errs = append(errs, "Email is required")
	case !emailRe.MatchString(sub.Email):
		errs = append(errs, "Invalid email format")
	}

	switch {
	case sub.Message == "":
		errs = append(errs, "Message is required")
	case utf8.RuneCountInString(sub.Message) > maxMessageLen:
		errs = append(errs, fmt.Sprintf("Message must be %d characters or less", maxMessageLen))
	}

	if sub.TurnstileToken == "" {
		errs = append(errs, "Turnstile verification is required")
	}

	return sub, errs
}

// IsSpam reports whether the honeypot field was filled in
func IsSpam(sub domain.ContactSubmission) bool {
	return sub.Website != ""
}
