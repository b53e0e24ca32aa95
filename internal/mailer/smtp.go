// Package mailer sends transactional account email (activation, two-factor,
// and password-reset codes) over SMTP, decoupled from request handling by a
// bounded dispatch queue.
package mailer

import (
	"crypto/tls"
	"fmt"
	"net/smtp"
)

// Sender delivers a single message. Implementations are best-effort; the
// dispatcher logs failures and never propagates them to request handlers.
type Sender interface {
	Send(to, subject, body string) error
}

// SMTPSender sends mail over implicit TLS (port 465 style) with plain auth.
type SMTPSender struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// NewSMTPSender returns a Sender for the given SMTP server. from defaults to username.
func NewSMTPSender(host string, port int, username, password, from string) *SMTPSender {
	if from == "" {
		from = username
	}
	return &SMTPSender{Host: host, Port: port, Username: username, Password: password, From: from}
}

// Send delivers one message. Connection, auth, and delivery errors are returned as-is.
func (s *SMTPSender) Send(to, subject, body string) error {
	msg := []byte(
		fmt.Sprintf("From: %s\r\n", s.From) +
			fmt.Sprintf("To: %s\r\n", to) +
			fmt.Sprintf("Subject: %s\r\n", subject) +
			"MIME-Version: 1.0\r\n" +
			"Content-Type: text/plain; charset=\"utf-8\"\r\n" +
			"\r\n" +
			body,
	)

	addr := fmt.Sprintf("%s:%d", s.Host, s.Port)
	conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: s.Host})
	if err != nil {
		return err
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, s.Host)
	if err != nil {
		return err
	}
	defer client.Quit()

	auth := smtp.PlainAuth("", s.Username, s.Password, s.Host)
	if err := client.Auth(auth); err != nil {
		return err
	}
	if err := client.Mail(s.From); err != nil {
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
	return w.Close()
}
