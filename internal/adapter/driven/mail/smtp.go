// Package mail implements the Mailer port over SMTP.
package mail

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"

	"github.com/kestrelworks/repowarden/internal/domain/port/driven"
)

// Compile-time interface satisfaction checks.
var (
	_ driven.Mailer = (*SMTPMailer)(nil)
	_ driven.Mailer = NopMailer{}
)

// SMTPMailer sends plain-text notification mail through an SMTP relay.
type SMTPMailer struct {
	addr   string // host:port of the relay.
	sender string
	auth   smtp.Auth
}

// NewSMTPMailer creates a mailer targeting the given relay address with the
// given envelope sender. user and password are optional; when user is
// non-empty the relay is authenticated with PLAIN auth.
func NewSMTPMailer(addr, sender, user, password string) *SMTPMailer {
	m := &SMTPMailer{addr: addr, sender: sender}
	if user != "" {
		host := addr
		if i := strings.LastIndex(addr, ":"); i >= 0 {
			host = addr[:i]
		}
		m.auth = smtp.PlainAuth("", user, password, host)
	}
	return m
}

// Send delivers a single plain-text message. The context deadline is not
// plumbed into net/smtp (which predates context); callers treat a send
// failure as a per-unit error.
func (m *SMTPMailer) Send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", m.sender)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("\r\n")
	msg.WriteString(body)

	if err := smtp.SendMail(m.addr, m.auth, m.sender, []string{to}, []byte(msg.String())); err != nil {
		return fmt.Errorf("sending mail to %s via %s: %w", to, m.addr, err)
	}

	return nil
}

// NopMailer discards all mail. Used when no notification transport is
// configured so callers never need a nil check.
type NopMailer struct{}

// Send logs the discarded message at debug level and returns nil.
func (NopMailer) Send(_ context.Context, to, subject, _ string) error {
	slog.Debug("mail transport not configured, dropping message", "to", to, "subject", subject)
	return nil
}
