// Package notify sends the transactional emails the order flow triggers:
// payment receipts, shipping confirmations, and cancellation notices. All
// sends are fire and forget; email must never fail or delay an order
// operation.
package notify

import (
	"crypto/tls"
	"fmt"
	"mime"
	"net/smtp"
	"strings"

	"datebox-be/internal/config"
)

// Mailer delivers one HTML email.
type Mailer interface {
	Send(to, subject, htmlBody string) error
}

type smtpMailer struct {
	host string
	port string
	user string
	pass string
	from string
	tls  bool
}

func NewSMTPMailer(cfg *config.Config) Mailer {
	return &smtpMailer{
		host: cfg.SMTPHost,
		port: cfg.SMTPPort,
		user: cfg.SMTPUser,
		pass: cfg.SMTPPass,
		from: cfg.SMTPFrom,
		tls:  cfg.SMTPSecure,
	}
}

func (m *smtpMailer) Send(to, subject, htmlBody string) error {
	msg := m.buildMessage(to, subject, htmlBody)
	addr := m.host + ":" + m.port

	if m.tls {
		return m.sendTLS(addr, to, msg)
	}

	auth := smtp.PlainAuth("", m.user, m.pass, m.host)
	if err := smtp.SendMail(addr, auth, m.from, []string{to}, msg); err != nil {
		return fmt.Errorf("failed to send mail: %w", err)
	}
	return nil
}

// sendTLS dials with implicit TLS for providers that do not offer STARTTLS on
// their submission port.
func (m *smtpMailer) sendTLS(addr, to string, msg []byte) error {
	conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: m.host})
	if err != nil {
		return fmt.Errorf("failed to dial smtp server: %w", err)
	}
	client, err := smtp.NewClient(conn, m.host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to start smtp session: %w", err)
	}
	defer client.Close()

	if err := client.Auth(smtp.PlainAuth("", m.user, m.pass, m.host)); err != nil {
		return fmt.Errorf("smtp auth failed: %w", err)
	}
	if err := client.Mail(m.from); err != nil {
		return err
	}
	if err := client.Rcpt(to); err != nil {
		return err
	}
	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return client.Quit()
}

func (m *smtpMailer) buildMessage(to, subject, htmlBody string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", m.from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"utf-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(htmlBody)
	b.WriteString("\r\n")
	return []byte(b.String())
}
