package alert

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
)

// Email sends messages over plain SMTP, the fallback channel when Telegram
// is unreachable. No SMTP SDK travels with this pack; net/smtp's
// SendMail covers the single-message use case this pipeline needs.
type Email struct {
	smtpAddr string
	from     string
	to       []string
}

// NewEmail builds an Email channel. smtpAddr is host:port; authentication
// is intentionally not configured here, matching deployments that run
// against an internal relay.
func NewEmail(smtpAddr, from string, to []string) *Email {
	return &Email{smtpAddr: smtpAddr, from: from, to: to}
}

// Send delivers message as a plain-text email to every configured
// recipient in one SendMail call.
func (e *Email) Send(ctx context.Context, message string) error {
	_ = ctx // net/smtp has no context-aware API; kept for interface symmetry

	subject := "emendas-etl run notification"
	body := fmt.Sprintf("Subject: %s\r\nTo: %s\r\n\r\n%s\r\n", subject, strings.Join(e.to, ", "), message)

	if err := smtp.SendMail(e.smtpAddr, nil, e.from, e.to, []byte(body)); err != nil {
		return fmt.Errorf("email: sending message: %w", err)
	}

	return nil
}
