// Package flags serves and updates the runtime feature flag set.
// The set is validated on every read and write, anything malformed is replaced by defaults on read.
package flags

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"unicode/utf16"

	"github.com/tylerearls/folio/pkg/domain"
)

// EmailContactForm is the flag gating the contact form
const EmailContactForm = "email-contact-form"

var (
	// ErrInvalidJSON returned when flag data isn't valid JSON
	ErrInvalidJSON = errors.New("invalid JSON")
	// ErrInvalidFlags returned when flag data has the wrong structure
	ErrInvalidFlags = errors.New("invalid feature flags structure")
)

// Defaults returns the compiled-in flag set, every feature disabled
func Defaults() domain.FeatureFlagSet {
	return domain.FeatureFlagSet{
		EmailContactForm: {Enabled: false},
	}
}

// ExpectedShape describes a valid flag set, used as a hint in error responses
func ExpectedShape() map[string]any {
	res := map[string]any{}
	for name := range Defaults() {
		res[name] = map[string]string{"enabled": "boolean", "message": "string (optional)"}
	}
	return res
}

// Parse decodes and validates raw flag data. Every default flag must be present,
// each entry must have a boolean "enabled" and an optional string "message".
func Parse(data []byte) (domain.FeatureFlagSet, error) {
	var raw any
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: trailing data", ErrInvalidJSON)
	}

	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: not an object", ErrInvalidFlags)
	}
	for name := range Defaults() {
		if _, ok := obj[name]; !ok {
			return nil, fmt.Errorf("%w: missing %q", ErrInvalidFlags, name)
		}
	}

	res := make(domain.FeatureFlagSet, len(obj))
	for name, v := range obj {
		entry, ok := v.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: %q is not an object", ErrInvalidFlags, name)
		}
		enabled, ok := entry["enabled"].(bool)
		if !ok {
			return nil, fmt.Errorf("%w: %q.enabled must be boolean", ErrInvalidFlags, name)
		}
		flag := domain.Flag{Enabled: enabled}
		if m, present := entry["message"]; present {
			msg, ok := m.(string)
			if !ok {
				return nil, fmt.Errorf("%w: %q.message must be string", ErrInvalidFlags, name)
			}
			flag.Message = &msg
		}
		res[name] = flag
	}
	return res, nil
}

// Validate checks an already decoded set contains all default flags
func Validate(set domain.FeatureFlagSet) error {
	if set == nil {
		return fmt.Errorf("%w: empty set", ErrInvalidFlags)
	}
	for name := range Defaults() {
		if _, ok := set[name]; !ok {
			return fmt.Errorf("%w: missing %q", ErrInvalidFlags, name)
		}
	}
	return nil
}

// Marshal renders the set as compact JSON without HTML escaping
func Marshal(set domain.FeatureFlagSet) ([]byte, error) {
	buf := bytes.Buffer{}
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(set); err != nil {
		return nil, fmt.Errorf("marshal flags: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// ETag returns a quoted 32-bit rolling hash (h*31+c over UTF-16 units) of body in base 36.
// Weak but stable, enough for conditional requests on a tiny document.
func ETag(body []byte) string {
	var h int32
	for _, c := range utf16.Encode([]rune(string(body))) {
		h = h*31 + int32(c)
	}
	abs := int64(h)
	if abs < 0 {
		abs = -abs
	}
	return `"` + strconv.FormatInt(abs, 36) + `"`
}
