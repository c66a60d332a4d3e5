package smtp

import (
	"bytes"
	"fmt"
	"net/smtp"

	"github.com/altrivo/auth-service/internal/config"
)

// Mailer sends templated emails.
type Mailer interface {
	Send(to, subject, templateKey string, data map[string]any) error
}

type mailer struct {
	host      string
	port      string
	from      string
	username  string
	password  string
	brandName string
	support   string
}

func NewMailer(cfg *config.Config) Mailer {
	return &mailer{
		host:      cfg.SMTPHost,
		port:      cfg.SMTPPort,
		from:      cfg.SMTPFrom,
		username:  cfg.SMTPUsername,
		password:  cfg.SMTPPassword,
		brandName: cfg.BrandName,
		support:   cfg.SupportEmail,
	}
}

func (m *mailer) Send(to, subject, templateKey string, data map[string]any) error {
	tmpl, ok := templates[templateKey]
	if !ok {
		return fmt.Errorf("unknown mail template %q", templateKey)
	}

	// Branding fields are the mailer's concern, not the caller's.
	body := struct {
		Data         map[string]any
		CompanyName  string
		SupportEmail string
	}{Data: data, CompanyName: m.brandName, SupportEmail: m.support}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, body); err != nil {
		return fmt.Errorf("render mail template %q: %w", templateKey, err)
	}

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=\"UTF-8\"\r\n\r\n%s",
		m.from, to, subject, buf.String())
	addr := fmt.Sprintf("%s:%s", m.host, m.port)

	var auth smtp.Auth
	if m.username != "" {
		auth = smtp.PlainAuth("", m.username, m.password, m.host)
	}

	return smtp.SendMail(addr, auth, m.from, []string{to}, []byte(msg))
}
