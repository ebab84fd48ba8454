package auth

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"
)

// SMTPConfig configures the SMTP mailer.
type SMTPConfig struct {
	Addr     string        `mapstructure:"addr"`
	User     string        `mapstructure:"user"`
	Password string        `mapstructure:"password"`
	From     string        `mapstructure:"from"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// SMTPMailer delivers plain-text mail over SMTP. It satisfies the Mailer
// interface used by the password recovery flow.
type SMTPMailer struct {
	addr    string
	auth    smtp.Auth
	from    string
	timeout time.Duration
	logger  Logger
}

var _ Mailer = (*SMTPMailer)(nil)

// NewSMTPMailer builds a mailer from config, enabling PLAIN auth when
// credentials are present.
func NewSMTPMailer(cfg SMTPConfig) *SMTPMailer {
	var auth smtp.Auth
	if cfg.User != "" || cfg.Password != "" {
		auth = smtp.PlainAuth("", cfg.User, cfg.Password, smtpHost(cfg.Addr))
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	return &SMTPMailer{
		addr:    cfg.Addr,
		auth:    auth,
		from:    cfg.From,
		timeout: timeout,
		logger:  defLogger{},
	}
}

func (m *SMTPMailer) WithLogger(logger Logger) *SMTPMailer {
	if logger != nil {
		m.logger = logger
	}
	return m
}

// Send delivers a single plain-text message. The context bounds the dial.
func (m *SMTPMailer) Send(ctx context.Context, to, subject, body string) error {
	msg := []byte(
		"From: " + m.from + "\r\n" +
			"To: " + to + "\r\n" +
			"Subject: " + subject + "\r\n" +
			"Content-Type: text/plain; charset=utf-8\r\n" +
			"\r\n" + body + "\r\n")

	dialer := net.Dialer{Timeout: m.timeout}

	conn, err := dialer.DialContext(ctx, "tcp", m.addr)
	if err != nil {
		m.logger.Error("smtp dial failed: %v", err)
		return err
	}

	c, err := smtp.NewClient(conn, smtpHost(m.addr))
	if err != nil {
		conn.Close()
		m.logger.Error("smtp client failed: %v", err)
		return err
	}
	defer c.Close()

	if m.auth != nil {
		if ok, _ := c.Extension("AUTH"); ok {
			if err := c.Auth(m.auth); err != nil {
				m.logger.Error("smtp auth failed: %v", err)
				return err
			}
		}
	}

	if err := c.Mail(m.from); err != nil {
		return err
	}
	if err := c.Rcpt(to); err != nil {
		return err
	}

	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}

	m.logger.Info("mail sent", "to", to, "subject", subject)
	return c.Quit()
}

func smtpHost(addr string) string {
	if i := strings.Index(addr, ":"); i >= 0 {
		return addr[:i]
	}
	return addr
}

// printMailer writes the notification to stdout. Default collaborator for
// local development and tests.
type printMailer struct{}

var _ Mailer = printMailer{}

func (printMailer) Send(_ context.Context, to, subject, body string) error {
	fmt.Printf("== mail to %s ==\nSubject: %s\n\n%s\n", to, subject, body)
	return nil
}
