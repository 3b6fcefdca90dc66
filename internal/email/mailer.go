package email

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// Mailer compone los correos de la plataforma y los entrega por un Sender.
type Mailer struct {
	sender  Sender
	tpl     *Templates
	baseURL string
}

func NewMailer(sender Sender, baseURL string) (*Mailer, error) {
	tpl, err := LoadTemplates()
	if err != nil {
		return nil, fmt.Errorf("email templates: %w", err)
	}
	return &Mailer{sender: sender, tpl: tpl, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// VerifyLink es la URL del SPA que canjea el token email_verify.
func (m *Mailer) VerifyLink(token string) string {
	return m.baseURL + "/user/verify-email?token=" + url.QueryEscape(token)
}

func (m *Mailer) SendVerification(ctx context.Context, to, displayName, token, ttl string) error {
	htmlBody, textBody, err := m.tpl.RenderVerify(VerifyVars{
		DisplayName: displayName,
		Link:        m.VerifyLink(token),
		TTL:         ttl,
	})
	if err != nil {
		return fmt.Errorf("render verify email: %w", err)
	}
	return m.sender.Send(ctx, to, "Verify your email", htmlBody, textBody)
}
