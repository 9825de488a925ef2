package mailer

import (
	"crypto/tls"
	"fmt"

	mail "github.com/go-mail/mail/v2"

	"github.com/noah-isme/defense-jury-api/pkg/config"
)

// Message is a single outgoing e-mail.
type Message struct {
	To      []string
	Subject string
	HTML    string
}

type sender interface {
	DialAndSend(m ...*mail.Message) error
}

// Mailer delivers notifications over SMTP with mandatory STARTTLS.
type Mailer struct {
	from   string
	dialer sender
}

// New returns a Mailer, or nil when SMTP is not configured.
func New(cfg config.MailerConfig) *Mailer {
	if cfg.Host == "" || cfg.From == "" {
		return nil
	}
	port := cfg.Port
	if port == 0 {
		port = 587
	}
	d := mail.NewDialer(cfg.Host, port, cfg.User, cfg.Password)
	d.StartTLSPolicy = mail.MandatoryStartTLS
	d.TLSConfig = &tls.Config{
		ServerName:         cfg.Host,
		InsecureSkipVerify: cfg.SkipTLSVerify, //nolint:gosec // opt-in for local relays
	}
	return &Mailer{from: cfg.From, dialer: d}
}

// Enabled reports whether messages will actually be delivered.
func (m *Mailer) Enabled() bool {
	return m != nil && m.dialer != nil
}

// Send delivers msg. A nil Mailer or an empty recipient list is a no-op.
func (m *Mailer) Send(msg Message) error {
	if !m.Enabled() || len(msg.To) == 0 {
		return nil
	}
	out := mail.NewMessage()
	out.SetHeader("From", m.from)
	out.SetHeader("To", msg.To...)
	out.SetHeader("Subject", msg.Subject)
	out.SetBody("text/html", msg.HTML)
	if err := m.dialer.DialAndSend(out); err != nil {
		return fmt.Errorf("send mail %q: %w", msg.Subject, err)
	}
	return nil
}
