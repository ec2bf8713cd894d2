package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"gopkg.in/gomail.v2"
)

// SMTPConfig holds the relay settings for SMTPTransport.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
	Timeout  time.Duration
	// InsecureSkipVerify disables certificate checks for local relays such as MailHog.
	InsecureSkipVerify bool
}

// SMTPTransport delivers HTML mail through an SMTP relay.
type SMTPTransport struct {
	cfg    SMTPConfig
	dialer *gomail.Dialer
}

func NewSMTPTransport(cfg SMTPConfig) *SMTPTransport {
	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	if cfg.InsecureSkipVerify {
		d.TLSConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
	}
	return &SMTPTransport{cfg: cfg, dialer: d}
}

// Send builds the MIME message and hands it to the relay.
//
// gomail has no context support, so the dial runs in its own goroutine and
// Send returns when either it finishes or the timeout elapses. An abandoned
// dial keeps running until the relay closes the connection.
func (t *SMTPTransport) Send(ctx context.Context, msg Message) error {
	m := t.buildMessage(msg)

	if t.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.cfg.Timeout)
		defer cancel()
	}

	done := make(chan error, 1)
	go func() { done <- t.dialer.DialAndSend(m) }()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("smtp send: %w", err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("smtp send: %w", ctx.Err())
	}
}

func (t *SMTPTransport) buildMessage(msg Message) *gomail.Message {
	m := gomail.NewMessage()
	m.SetAddressHeader("From", t.cfg.From, t.cfg.FromName)
	m.SetAddressHeader("To", msg.To, msg.DisplayName)
	m.SetHeader("Subject", msg.Subject)
	m.SetHeader("Message-ID", fmt.Sprintf("<%s@%s>", msg.ID, t.cfg.Host))
	if msg.Category != "" {
		m.SetHeader("X-Category", msg.Category)
	}
	m.SetBody("text/html", msg.Body)
	return m
}

var _ Transport = (*SMTPTransport)(nil)
