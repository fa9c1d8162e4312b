// Package mailer delivers candidate invitation emails over SMTP.
package mailer

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Mailer sends transactional email.
type Mailer interface {
	SendInvitation(ctx context.Context, inv Invitation) error
}

// Invitation is the content of a partner-to-candidate invitation email.
type Invitation struct {
	ToEmail     string
	ToName      string
	PartnerName string
	AcceptURL   string
	ExpiresAt   time.Time
}

type SMTPConfig struct {
	Host      string
	Port      int
	Username  string
	Password  string
	FromEmail string
	FromName  string
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

type SMTPMailer struct {
	config SMTPConfig
	send   sendFunc
}

func NewSMTPMailer(config SMTPConfig) *SMTPMailer {
	return &SMTPMailer{config: config, send: smtp.SendMail}
}

var invitationTemplate = template.Must(template.New("invitation").Parse(`<html>
<body>
	<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
		<p>Hello {{.ToName}},</p>
		<p>{{.PartnerName}} has enrolled you for exam preparation. Accept your invitation to get started:</p>
		<p style="text-align: center; margin: 30px 0;">
			<a href="{{.AcceptURL}}" style="background-color: #4a86e8; color: white; padding: 12px 24px; text-decoration: none; border-radius: 4px;">Accept invitation</a>
		</p>
		<p>This link expires on {{.ExpiresAt.Format "Jan 2, 2006 15:04 MST"}}.</p>
	</div>
</body>
</html>
`))

func (m *SMTPMailer) SendInvitation(ctx context.Context, inv Invitation) error {
	if m.config.Host == "" {
		log.Warn().
			Str("toEmail", inv.ToEmail).
			Str("acceptUrl", inv.AcceptURL).
			Msg("smtp not configured, invitation email not sent")
		return nil
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	var body bytes.Buffer
	if err := invitationTemplate.Execute(&body, inv); err != nil {
		return fmt.Errorf("render invitation: %w", err)
	}

	partner := inv.PartnerName
	if partner == "" {
		partner = m.config.FromName
	}
	msg := m.buildMessage(inv.ToEmail, fmt.Sprintf("You're invited to prepare with %s", partner), body.String())

	var auth smtp.Auth
	if m.config.Username != "" {
		auth = smtp.PlainAuth("", m.config.Username, m.config.Password, m.config.Host)
	}

	addr := m.config.Host + ":" + strconv.Itoa(m.config.Port)
	if err := m.send(addr, auth, m.config.FromEmail, []string{inv.ToEmail}, msg); err != nil {
		return fmt.Errorf("send invitation to %s: %w", inv.ToEmail, err)
	}

	log.Debug().Str("toEmail", inv.ToEmail).Msg("invitation email sent")
	return nil
}

func (m *SMTPMailer) buildMessage(to, subject, htmlBody string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s <%s>\r\n", m.config.FromName, m.config.FromEmail)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(htmlBody)
	return []byte(b.String())
}
