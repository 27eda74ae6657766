// services/farm/internal/infrastructure/mail.go
package infrastructure

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"example.com/hydrofarm/services/farm/config"
)

// SMTPMailer sends transactional mail over plain SMTP with AUTH.
type SMTPMailer struct {
	cfg  config.MailConfig
	auth smtp.Auth
}

func NewSMTPMailer(cfg config.MailConfig) *SMTPMailer {
	var auth smtp.Auth
	if cfg.Username != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	return &SMTPMailer{cfg: cfg, auth: auth}
}

// SendVerificationCode mails the signup verification code.
func (m *SMTPMailer) SendVerificationCode(ctx context.Context, to, name, code string) error {
	body := fmt.Sprintf("Hi %s,\r\n\r\nYour verification code is %s. It expires in 15 minutes.\r\n", name, code)
	return m.send(ctx, to, "Verify your email", body)
}

// SendPasswordReset mails a password reset token.
func (m *SMTPMailer) SendPasswordReset(ctx context.Context, to, name, token string) error {
	body := fmt.Sprintf("Hi %s,\r\n\r\nUse this token to reset your password: %s\r\nIt expires in 1 hour.\r\n", name, token)
	return m.send(ctx, to, "Reset your password", body)
}

func (m *SMTPMailer) send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := strings.Join([]string{
		"From: " + m.cfg.From,
		"To: " + to,
		"Subject: " + subject,
		"",
		body,
	}, "\r\n")

	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)
	if err := smtp.SendMail(addr, m.auth, m.cfg.From, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("failed to send mail to %s: %w", to, err)
	}
	return nil
}
