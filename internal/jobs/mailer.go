package jobs

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/sudo-init-do/chatpay/internal/config"
)

// Mailer delivers one plain text or HTML message.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// NewMailer picks the delivery backend from config: Plunk when selected (or
// when only a Plunk key is set), SMTP when fully configured, otherwise a
// mailer that only logs.
func NewMailer(cfg config.MailConfig, log logrus.FieldLogger) Mailer {
	switch {
	case cfg.Provider == "plunk" || (cfg.Provider == "" && cfg.PlunkAPIKey != ""):
		return NewPlunkMailer(cfg, nil)
	case cfg.Host != "" && cfg.Port != "" && cfg.Username != "" && cfg.Password != "" && cfg.From != "":
		return &SMTPMailer{cfg: cfg}
	}
	log.Warn("mail not configured, messages will only be logged")
	return &LogMailer{log: log}
}

// SMTPMailer sends over implicit TLS (port 465 style).
type SMTPMailer struct {
	cfg config.MailConfig
}

func buildMessage(from, to, replyTo, subject, body string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	if replyTo != "" {
		fmt.Fprintf(&b, "Reply-To: %s\r\n", replyTo)
	}
	b.WriteString("MIME-Version: 1.0\r\n")
	contentType := "text/plain"
	lb := strings.ToLower(body)
	if strings.Contains(lb, "<html") || strings.Contains(lb, "<body") || strings.Contains(lb, "<!doctype html") {
		contentType = "text/html"
	}
	fmt.Fprintf(&b, "Content-Type: %s; charset=\"utf-8\"\r\n", contentType)
	b.WriteString("\r\n" + body + "\r\n")
	return b.String()
}

func (m *SMTPMailer) Send(ctx context.Context, to, subject, body string) error {
	cfg := m.cfg
	msg := buildMessage(cfg.From, to, cfg.ReplyTo, subject, body)

	dialer := &tls.Dialer{NetDialer: &net.Dialer{}, Config: &tls.Config{ServerName: cfg.Host}}
	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(cfg.Host, cfg.Port))
	if err != nil {
		return fmt.Errorf("smtp dial: %w", err)
	}
	defer conn.Close()

	c, err := smtp.NewClient(conn, cfg.Host)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	defer c.Close()

	if err := c.Auth(smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)); err != nil {
		return fmt.Errorf("smtp auth: %w", err)
	}
	if err := c.Mail(cfg.From); err != nil {
		return fmt.Errorf("smtp mail from: %w", err)
	}
	if err := c.Rcpt(to); err != nil {
		return fmt.Errorf("smtp rcpt to: %w", err)
	}
	wc, err := c.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := wc.Write([]byte(msg)); err != nil {
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("smtp close: %w", err)
	}
	return c.Quit()
}

// LogMailer records messages in the log instead of sending them.
type LogMailer struct {
	log logrus.FieldLogger
}

func (m *LogMailer) Send(_ context.Context, to, subject, _ string) error {
	m.log.WithFields(logrus.Fields{"to": to, "subject": subject}).Info("mail (not sent)")
	return nil
}
