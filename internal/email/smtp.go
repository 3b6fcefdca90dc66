package email

import (
	"context"
	"crypto/tls"
	"fmt"

	mail "github.com/go-mail/mail"

	"github.com/ji-devs/ji-cloud-sub012/internal/observability/logger"
)

// Sender envía un email con versión HTML y texto plano.
type Sender interface {
	Send(ctx context.Context, to, subject, htmlBody, textBody string) error
}

// SMTPSender implementa Sender usando SMTP.
type SMTPSender struct {
	Host    string
	Port    int
	From    string
	User    string
	Pass    string
	TLSMode string // "auto" | "starttls" | "ssl" | "none"
}

func NewSMTPSender(host string, port int, from, user, pass, tlsMode string) *SMTPSender {
	if tlsMode == "" {
		tlsMode = "auto"
	}
	return &SMTPSender{Host: host, Port: port, From: from, User: user, Pass: pass, TLSMode: tlsMode}
}

// Send arma un multipart/alternative (txt + html) y lo entrega.
func (s *SMTPSender) Send(ctx context.Context, to, subject, htmlBody, textBody string) error {
	log := logger.From(ctx).With(
		logger.Component("smtp"),
		logger.String("host", s.Host),
		logger.Int("port", s.Port),
	)

	m := buildMessage(s.From, to, subject, htmlBody, textBody)

	d := mail.NewDialer(s.Host, s.Port, s.User, s.Pass)
	d.TLSConfig = &tls.Config{ServerName: s.Host}
	switch s.TLSMode {
	case "ssl":
		d.SSL = true
	case "none":
		d.StartTLSPolicy = mail.NoStartTLS
	default:
		// "auto"/"starttls": go-mail negocia STARTTLS si corresponde
	}

	if err := d.DialAndSend(m); err != nil {
		log.Error("smtp send failed", logger.Err(err))
		return fmt.Errorf("smtp send: %w", err)
	}
	log.Info("email sent")
	return nil
}

func buildMessage(from, to, subject, htmlBody, textBody string) *mail.Message {
	m := mail.NewMessage()
	m.SetHeader("From", from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	if textBody != "" {
		m.SetBody("text/plain", textBody)
	}
	if htmlBody != "" {
		if textBody == "" {
			m.SetBody("text/html", htmlBody)
		} else {
			m.AddAlternative("text/html", htmlBody)
		}
	}
	return m
}

// LogSender no envía nada: deja el correo en el log. Se usa en dev sin SMTP_HOST.
type LogSender struct{}

func (LogSender) Send(ctx context.Context, to, subject, _, textBody string) error {
	logger.From(ctx).Info("email (log sender)",
		logger.Email(to), logger.String("subject", subject), logger.String("body", textBody))
	return nil
}
