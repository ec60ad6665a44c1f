package notify

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	netmail "net/mail"
	"strings"
	"time"

	"github.com/go-mail/mail"
	"github.com/google/uuid"
	"github.com/resend/resend-go/v2"
)

// Envelope is a fully rendered message ready for delivery.
type Envelope struct {
	From     string
	FromName string
	To       string
	Subject  string
	HTML     string
}

func (e Envelope) formattedFrom() string {
	if e.FromName == "" {
		return e.From
	}
	return (&netmail.Address{Name: e.FromName, Address: e.From}).String()
}

// Transport hands an Envelope to a mail provider and returns the provider's message id.
type Transport interface {
	Name() string
	Deliver(ctx context.Context, env Envelope) (string, error)
}

type SMTPConfig struct {
	Host     string
	Port     int
	Secure   bool
	Username string
	Password string
	// Timeout bounds dialing and each SMTP command.
	Timeout time.Duration
}

type SMTPTransport struct {
	cfg SMTPConfig
}

func NewSMTPTransport(cfg SMTPConfig) *SMTPTransport {
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &SMTPTransport{cfg: cfg}
}

func (t *SMTPTransport) Name() string { return "smtp" }

// Deliver ignores ctx; go-mail has no cancellation, the Mailer bounds the call instead.
func (t *SMTPTransport) Deliver(_ context.Context, env Envelope) (string, error) {
	if t.cfg.Host == "" {
		return "", errors.New("smtp: host is not configured")
	}

	messageID := newMessageID(env.From)

	m := mail.NewMessage()
	m.SetAddressHeader("From", env.From, env.FromName)
	m.SetHeader("To", env.To)
	m.SetHeader("Subject", env.Subject)
	m.SetHeader("Message-ID", messageID)
	m.SetDateHeader("Date", time.Now())
	m.SetBody("text/html", env.HTML)

	d := mail.NewDialer(t.cfg.Host, t.cfg.Port, t.cfg.Username, t.cfg.Password)
	d.SSL = t.cfg.Secure
	d.Timeout = t.cfg.Timeout
	d.TLSConfig = &tls.Config{ServerName: t.cfg.Host, MinVersion: tls.VersionTLS12}

	if err := d.DialAndSend(m); err != nil {
		return "", fmt.Errorf("smtp send: %w", err)
	}
	return messageID, nil
}

func newMessageID(from string) string {
	domain := "localhost"
	if at := strings.LastIndex(from, "@"); at >= 0 && at < len(from)-1 {
		domain = from[at+1:]
	}
	return fmt.Sprintf("<%s@%s>", uuid.NewString(), domain)
}

// emailSender is the part of the Resend client the transport uses.
type emailSender interface {
	SendWithContext(ctx context.Context, params *resend.SendEmailRequest) (*resend.SendEmailResponse, error)
}

type ResendTransport struct {
	emails emailSender
}

func NewResendTransport(apiKey string) *ResendTransport {
	return &ResendTransport{emails: resend.NewClient(apiKey).Emails}
}

func (t *ResendTransport) Name() string { return "resend" }

func (t *ResendTransport) Deliver(ctx context.Context, env Envelope) (string, error) {
	resp, err := t.emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    env.formattedFrom(),
		To:      []string{env.To},
		Subject: env.Subject,
		Html:    env.HTML,
	})
	if err != nil {
		return "", fmt.Errorf("resend send: %w", err)
	}
	return resp.Id, nil
}
