package mail

import (
	"fmt"
	"net"
	"net/smtp"
)

// Mailer sends transactional email through a single SMTP account.
type Mailer struct {
	host     string
	port     string
	from     string
	password string
}

func New(host, port, from, password string) *Mailer {
	return &Mailer{host: host, port: port, from: from, password: password}
}

func (m *Mailer) Send(to, subject, body string) error {
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=\"utf-8\"\r\n\r\n%s",
		m.from, to, subject, body)

	auth := smtp.PlainAuth("", m.from, m.password, m.host)
	addr := net.JoinHostPort(m.host, m.port)

	// smtp.SendMail negotiates STARTTLS when the server offers it.
	if err := smtp.SendMail(addr, auth, m.from, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("send mail to %s: %w", to, err)
	}
	return nil
}
