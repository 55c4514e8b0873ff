// Package contact accepts contact form submissions, filters spam and relays them by email.
package contact

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-pkgz/lgr"
	"github.com/google/uuid"

	"github.com/tylerearls/folio/pkg/captcha"
	"github.com/tylerearls/folio/pkg/domain"
	"github.com/tylerearls/folio/pkg/mailer"
	"github.com/tylerearls/folio/pkg/ratelimit"
)

//go:generate moq -out mocks/limiter.go -pkg mocks -skip-ensure -fmt goimports . Limiter
//go:generate moq -out mocks/verifier.go -pkg mocks -skip-ensure -fmt goimports . Verifier
//go:generate moq -out mocks/sender.go -pkg mocks -skip-ensure -fmt goimports . Sender

// caller-facing messages
const (
	MsgSent           = "Message sent successfully"
	MsgRateLimited    = "Too many requests. Please try again later."
	MsgInvalidJSON    = "Invalid JSON in request body"
	MsgInvalidRequest = "Invalid request"
	MsgVerifyFailed   = "Verification failed. Please try again."
	MsgSendFailed     = "Failed to send message. Please try again."
	MsgUnexpected     = "An unexpected error occurred. Please try again."
)

// Limiter checks and records per-client submissions
type Limiter interface {
	Check(ctx context.Context, ip string) (ratelimit.Decision, error)
	Record(ctx context.Context, ip string) error
}

// Verifier checks a CAPTCHA token
type Verifier interface {
	Verify(ctx context.Context, token, remoteIP string) error
}

// Sender delivers email
type Sender interface {
	Send(ctx context.Context, email mailer.Email) error
}

// Stage is a step of submission processing, a result carries the last stage reached
type Stage string

// processing stages in order
const (
	StageReceived     Stage = "received"
	StageRateChecked  Stage = "rate-limit-checked"
	StageBodyParsed   Stage = "body-parsed"
	StageValidated    Stage = "field-validated"
	StageHoneypot     Stage = "honeypot-checked"
	StageVerified     Stage = "captcha-verified"
	StageSent         Stage = "email-sent"
	StageRateRecorded Stage = "rate-limit-recorded"
	StageResponded    Stage = "responded"
)

// Response is the JSON body returned to the caller
type Response struct {
	Success    bool     `json:"success"`
	Message    string   `json:"message,omitempty"`
	Error      string   `json:"error,omitempty"`
	Details    []string `json:"details,omitempty"`
	RetryAfter int      `json:"retryAfter,omitempty"`
}

// Result is the outcome of one submission
type Result struct {
	Status   int
	Response Response
	Stage    Stage // last completed stage
}

// Config for the pipeline
type Config struct {
	Limiter   Limiter // nil disables rate limiting, allowed only with AllowUnlimited
	Verifier  Verifier
	Sender    Sender
	From      string
	Recipient string

	AllowUnlimited  bool
	RateCheckPolicy domain.FailurePolicy // limiter check errors, fail-open lets the submission through
	SendPolicy      domain.FailurePolicy // delivery errors, fail-open answers as if sent
}

// Pipeline processes contact submissions
type Pipeline struct {
	limiter   Limiter
	verifier  Verifier
	sender    Sender
	from      string
	recipient string
	newID     func() string

	rateCheckPolicy domain.FailurePolicy
	sendPolicy      domain.FailurePolicy
}

// NewPipeline makes a pipeline. Missing rate limiter is rejected unless explicitly allowed.
func NewPipeline(cfg Config) (*Pipeline, error) {
	if cfg.Verifier == nil || cfg.Sender == nil {
		return nil, errors.New("verifier and sender are required")
	}
	if cfg.Recipient == "" {
		return nil, errors.New("recipient is required")
	}
	if cfg.Limiter == nil && !cfg.AllowUnlimited {
		return nil, errors.New("rate limiter is required")
	}
	if cfg.Limiter == nil {
		lgr.Printf("[WARN] contact rate limiting disabled")
	}
	return &Pipeline{
		limiter:   cfg.Limiter,
		verifier:  cfg.Verifier,
		sender:    cfg.Sender,
		from:      cfg.From,
		recipient: cfg.Recipient,
		newID:     uuid.NewString,

		rateCheckPolicy: cfg.RateCheckPolicy,
		sendPolicy:      cfg.SendPolicy,
	}, nil
}

// Submit runs a submission from ip through rate limiting, validation, honeypot,
// CAPTCHA verification and delivery. It never fails, errors are turned into results.
func (p *Pipeline) Submit(ctx context.Context, ip string, body io.Reader) (res Result) {
	stage := StageReceived
	defer func() {
		if r := recover(); r != nil {
			lgr.Printf("[ERROR] contact submission from %s panicked after %s: %v", ip, stage, r)
			res = failure(http.StatusInternalServerError, MsgUnexpected, stage)
		}
	}()

	if p.limiter != nil {
		d, err := p.limiter.Check(ctx, ip)
		if err != nil {
			lgr.Printf("[WARN] contact rate limit check for %s failed (%s): %v", ip, p.rateCheckPolicy, err)
			if p.rateCheckPolicy != domain.FailOpen {
				return failure(http.StatusInternalServerError, MsgUnexpected, stage)
			}
			d = ratelimit.Decision{Allowed: true}
		}
		if !d.Allowed {
			secs := max(d.RetryAfterSeconds(), 1)
			lgr.Printf("[INFO] contact rate limit exceeded for %s, retry after %ds", ip, secs)
			r := failure(http.StatusTooManyRequests, MsgRateLimited, stage)
			r.Response.RetryAfter = secs
			return r
		}
	}
	stage = StageRateChecked

	raw, err := Decode(body)
	if err != nil {
		return failure(http.StatusBadRequest, MsgInvalidJSON, stage)
	}
	stage = StageBodyParsed

	sub, errs := Validate(raw)
	if len(errs) > 0 {
		r := failure(http.StatusBadRequest, MsgInvalidRequest, stage)
		r.Response.Details = errs
		return r
	}
	stage = StageValidated

	if IsSpam(sub) {
		// same answer as a real send, nothing else happens
		lgr.Printf("[INFO] honeypot triggered for %s", ip)
		return Result{Status: http.StatusOK, Response: Response{Success: true, Message: MsgSent}, Stage: StageHoneypot}
	}
	stage = StageHoneypot

	if err := p.verifier.Verify(ctx, sub.TurnstileToken, ip); err != nil {
		msg := MsgVerifyFailed
		var ve *captcha.VerifyError
		if errors.As(err, &ve) && ve.Message != "" {
			msg = ve.Message
		}
		return failure(http.StatusBadRequest, msg, stage)
	}
	stage = StageVerified

	id := p.newID()
	email, err := mailer.ContactEmail(p.from, p.recipient, sub.Name, sub.Email, sub.Message, id)
	if err != nil {
		lgr.Printf("[ERROR] can't build contact email %s: %v", id, err)
		return failure(http.StatusInternalServerError, MsgUnexpected, stage)
	}
	if err := p.sender.Send(ctx, email); err != nil {
		lgr.Printf("[ERROR] contact email %s from %s not sent (%s): %v", id, ip, p.sendPolicy, err)
		if p.sendPolicy != domain.FailOpen {
			return failure(http.StatusInternalServerError, MsgSendFailed, stage)
		}
		// not delivered, so not counted against the client
		return Result{Status: http.StatusOK, Response: Response{Success: true, Message: MsgSent}, Stage: StageResponded}
	}
	stage = StageSent
	lgr.Printf("[INFO] contact email %s from %s sent", id, ip)

	if p.limiter != nil {
		if err := p.limiter.Record(ctx, ip); err != nil {
			lgr.Printf("[WARN] can't record contact submission for %s: %v", ip, err)
		}
	}
	stage = StageRateRecorded

	return Result{Status: http.StatusOK, Response: Response{Success: true, Message: MsgSent}, Stage: StageResponded}
}

func failure(status int, msg string, stage Stage) Result {
	return Result{Status: status, Response: Response{Success: false, Error: msg}, Stage: stage}
}

// String returns result summary for logs
func (r Result) String() string {
	if r.Response.Success {
		return fmt.Sprintf("%d ok at %s", r.Status, r.Stage)
	}
	return fmt.Sprintf("%d %q at %s", r.Status, r.Response.Error, r.Stage)
}
