package mailer

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var contactHTML = template.Must(template.New("contact").Parse(
	`<h2>New Portfolio Contact Form Submission</h2>
<p><strong>Name:</strong> {{.Name}}</p>
<p><strong>Email:</strong> <a href="mailto:{{.Email}}">{{.Email}}</a></p>
<hr>
<h3>Message:</h3>
<p>{{range $i, $line := .Lines}}{{if $i}}<br>{{end}}{{$line}}{{end}}</p>`))

// htmlPolicy permits exactly the markup produced by contactHTML
var htmlPolicy = func() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements("h2", "h3", "p", "strong", "hr", "br")
	p.AllowAttrs("href").OnElements("a")
	p.AllowURLSchemes("mailto")
	return p
}()

// ContactEmail builds the notification for a contact form submission.
// User values are escaped in the HTML body, the text body carries them verbatim.
func ContactEmail(from, to, name, email, message, submissionID string) (Email, error) {
	text := fmt.Sprintf("New contact form submission:\n\nName: %s\nEmail: %s\n\nMessage:\n%s", name, email, message)

	var buf bytes.Buffer
	err := contactHTML.Execute(&buf, struct {
		Name, Email string
		Lines       []string
	}{Name: name, Email: email, Lines: strings.Split(strings.ReplaceAll(message, "\r\n", "\n"), "\n")})
	if err != nil {
		return Email{}, fmt.Errorf("render html body: %w", err)
	}

	res := Email{
		From:     from,
		To:       to,
		ReplyTo:  email,
		Subject:  "Portfolio Contact: " + name,
		TextBody: text,
		HTMLBody: htmlPolicy.Sanitize(buf.String()),
	}
	if submissionID != "" {
		res.Metadata = map[string]string{"submission_id": submissionID}
	}
	return res, nil
}
