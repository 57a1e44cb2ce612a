// Package mailer delivers account and reminder mail over SMTP. Delivery is
// best-effort: callers treat mail as a side effect, so every failure is
// logged here and swallowed where the interface allows it.
package mailer

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"
)

const (
	welcomeSubject  = "Task Manager: Thanks for Joining!"
	goodbyeSubject  = "Task Manager: Sorry to let you go."
	reminderSubject = "Task Manager: Tasks"

	reminderBody = "Reminder, your tasks are incomplete! Please login to see the unfinished tasks."
)

// sendFunc matches smtp.SendMail; injectable for tests.
type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPMailer sends plain-text mail through a single SMTP relay. When no
// relay address is configured the mailer runs in log-only mode, so local
// and test deployments work without mail infrastructure.
type SMTPMailer struct {
	addr   string
	from   string
	send   sendFunc
	logger *slog.Logger
}

// New creates a mailer for the given relay address and sender. An empty
// addr yields a log-only mailer.
func New(addr, from string, logger *slog.Logger) *SMTPMailer {
	if logger == nil {
		logger = slog.Default()
	}
	return &SMTPMailer{
		addr:   addr,
		from:   from,
		send:   smtp.SendMail,
		logger: logger.With(slog.String("component", "mailer")),
	}
}

// SendWelcome mails a new account. Failures are logged, never returned.
func (m *SMTPMailer) SendWelcome(ctx context.Context, email, name string) {
	body := fmt.Sprintf("Welcome %s, thank you for joining us. Now get your reminders all in one place.", name)
	m.deliver(ctx, email, welcomeSubject, body)
}

// SendGoodbye mails a deleted account. Failures are logged, never returned.
func (m *SMTPMailer) SendGoodbye(ctx context.Context, email, name string) {
	body := fmt.Sprintf("%s, we are sorry to let you go.", name)
	m.deliver(ctx, email, goodbyeSubject, body)
}

// SendReminder mails an owner with incomplete tasks. The error surfaces so
// the scheduler can count delivery failures per pass.
func (m *SMTPMailer) SendReminder(ctx context.Context, email string) error {
	return m.deliver(ctx, email, reminderSubject, reminderBody)
}

func (m *SMTPMailer) deliver(ctx context.Context, to, subject, body string) error {
	if m.addr == "" {
		m.logger.InfoContext(ctx, "mail delivery skipped, no relay configured",
			slog.String("to", to),
			slog.String("subject", subject))
		return nil
	}

	msg := buildMessage(m.from, to, subject, body)
	if err := m.send(m.addr, nil, m.from, []string{to}, msg); err != nil {
		m.logger.WarnContext(ctx, "mail delivery failed",
			slog.String("to", to),
			slog.String("subject", subject),
			slog.String("error", err.Error()))
		return fmt.Errorf("sending mail to %s: %w", to, err)
	}

	m.logger.DebugContext(ctx, "mail delivered",
		slog.String("to", to),
		slog.String("subject", subject))
	return nil
}

func buildMessage(from, to, subject, body string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	b.WriteString("\r\n")
	return []byte(b.String())
}
