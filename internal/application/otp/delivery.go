package otp

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Mailer is satisfied by the SMTP mailer.
type Mailer interface {
	SendEmail(to, subject, body string) error
}

// EventPublisher is satisfied by the SNS topic publisher.
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, payload interface{}) error
}

const otpIssuedEvent = "otp.issued"

type emailDeliverer struct {
	mailer Mailer
}

// NewEmailDeliverer sends the code in a plain-text email.
func NewEmailDeliverer(m Mailer) Deliverer {
	return &emailDeliverer{mailer: m}
}

func (d *emailDeliverer) Deliver(_ context.Context, email, code string, expiresAt time.Time) error {
	body := fmt.Sprintf("Your verification code is %s.\n\nIt expires at %s. If you did not request it, ignore this email.",
		code, expiresAt.UTC().Format(time.RFC1123))
	return d.mailer.SendEmail(email, "Your verification code", body)
}

type otpIssued struct {
	Email     string    `json:"email"`
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expires_at"`
}

type topicDeliverer struct {
	publisher EventPublisher
}

// NewTopicDeliverer hands the code to a topic whose subscribers deliver it.
func NewTopicDeliverer(p EventPublisher) Deliverer {
	return &topicDeliverer{publisher: p}
}

func (d *topicDeliverer) Deliver(ctx context.Context, email, code string, expiresAt time.Time) error {
	return d.publisher.Publish(ctx, otpIssuedEvent, otpIssued{Email: email, Code: code, ExpiresAt: expiresAt})
}

type logDeliverer struct {
	logCode bool
}

// NewLogDeliverer only logs. The code itself is logged only when logCode is
// set, which callers must restrict to non-production environments.
func NewLogDeliverer(logCode bool) Deliverer {
	return &logDeliverer{logCode: logCode}
}

func (d *logDeliverer) Deliver(ctx context.Context, email, code string, expiresAt time.Time) error {
	if d.logCode {
		slog.InfoContext(ctx, "otp delivery (log)", "email", email, "code", code, "expires_at", expiresAt)
		return nil
	}
	slog.InfoContext(ctx, "otp delivery (log)", "email", email, "expires_at", expiresAt)
	return nil
}
