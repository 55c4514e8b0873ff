package contact

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tylerearls/folio/pkg/domain"
)

func TestDecode(t *testing.T) {
	raw, err := Decode(strings.NewReader(`{"name":"A"}`))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"name": "A"}, raw)

	for _, body := range []string{``, `{`, `{"a":1}{"b":2}`, `not json`} {
		_, err := Decode(strings.NewReader(body))
		require.ErrorIs(t, err, ErrInvalidJSON, body)
	}
}

func TestValidate(t *testing.T) {
	valid := func() map[string]any {
		return map[string]any{"name": "Ada", "email": "ada@example.com", "message": "hello", "turnstileToken": "tok"}
	}

	tbl := []struct {
		name    string
		mutate  func(m map[string]any)
		details []string
	}{
		{name: "valid", mutate: func(m map[string]any) {}},
		{name: "empty name", mutate: func(m map[string]any) { m["name"] = "   " }, details: []string{"Name is required"}},
		{name: "long name", mutate: func(m map[string]any) { m["name"] = strings.Repeat("n", 101) },
			details: []string{"Name must be 100 characters or less"}},
		{name: "name at limit in runes", mutate: func(m map[string]any) { m["name"] = strings.Repeat("é", 100) }},
		{name: "missing email", mutate: func(m map[string]any) { delete(m, "email") }, details: []string{"Email is required"}},
		{name: "bad email", mutate: func(m map[string]any) { m["email"] = "not-an-email" }, details: []string{"Invalid email format"}},
		{name: "email with space", mutate: func(m map[string]any) { m["email"] = "a b@example.com" }, details: []string{"Invalid email format"}},
		{name: "email single label domain", mutate: func(m map[string]any) { m["email"] = "root@localhost" }},
		{name: "email with plus", mutate: func(m map[string]any) { m["email"] = " first.last+tag@sub.example.co.uk " }},
		{name: "empty message", mutate: func(m map[string]any) { m["message"] = "" }, details: []string{"Message is required"}},
		{name: "long message", mutate: func(m map[string]any) { m["message"] = strings.Repeat("m", 5001) },
			details: []string{"Message must be 5000 characters or less"}},
		{name: "missing token", mutate: func(m map[string]any) { m["turnstileToken"] = " " },
			details: []string{"Turnstile verification is required"}},
		{name: "non-string name", mutate: func(m map[string]any) { m["name"] = 42.0 }, details: []string{"Name is required"}},
		{name: "empty name and bad email", mutate: func(m map[string]any) { m["name"] = ""; m["email"] = "x@" },
			details: []string{"Name is required", "Invalid email format"}},
		{name: "everything missing", mutate: func(m map[string]any) {
			delete(m, "name")
			delete(m, "email")
			delete(m, "message")
			delete(m, "turnstileToken")
		}, details: []string{"Name is required", "Email is required", "Message is required", "Turnstile verification is required"}},
	}

	for _, tt := range tbl {
		t.Run(tt.name, func(t *testing.T) {
			m := valid()
			tt.mutate(m)
			_, details := Validate(m)
			assert.Equal(t, tt.details, details)
		})
	}
}

func TestValidate_Normalizes(t *testing.T) {
	sub, details := Validate(map[string]any{
		"name": "  Ada ", "email": " ada@example.com\n", "message": "\thi there  ",
		"turnstileToken": " tok ", "website": " ",
	})
	require.Empty(t, details)
	assert.Equal(t, domain.ContactSubmission{
		Name: "Ada", Email: "ada@example.com", Message: "hi there", TurnstileToken: "tok", Website: " ",
	}, sub)
}

func TestValidate_NotObject(t *testing.T) {
	for _, raw := range []any{nil, "str", []any{1}, 12.0} {
		_, details := Validate(raw)
		assert.Equal(t, []string{"Request body must be a JSON object"}, details)
	}
}

func TestIsSpam(t *testing.T) {
	assert.False(t, IsSpam(domain.ContactSubmission{}))
	assert.True(t, IsSpam(domain.ContactSubmission{Website: "http://spam.example"}))
}
