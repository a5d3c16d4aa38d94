// Package mailer sends transactional email over SMTP.
package mailer

import (
	"fmt"
	"mime/multipart"
	"net/smtp"
	"net/textproto"
	"strings"

	"github.com/lumoapp/billing-service/pkg/logger"
)

// Sender delivers an email with both HTML and plain-text alternatives.
type Sender interface {
	Send(to, subject, htmlBody, textBody string) error
}

// Config holds SMTP connection settings.
type Config struct {
	Host     string
	Port     string
	Username string
	Password string
	Sender   string
}

type smtpSender struct {
	cfg Config
	log *logger.Logger

	// sendMail is swapped in tests
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTPSender creates a Sender backed by net/smtp.
func NewSMTPSender(cfg Config, log *logger.Logger) Sender {
	if cfg.Sender == "" {
		cfg.Sender = "no-reply@localhost"
		log.Warnw("SMTP sender not set, using default", "sender", cfg.Sender)
	}
	return &smtpSender{
		cfg:      cfg,
		log:      log,
		sendMail: smtp.SendMail,
	}
}

// Send delivers a multipart/alternative message with text and HTML parts.
func (s *smtpSender) Send(to, subject, htmlBody, textBody string) error {
	var auth smtp.Auth
	if s.cfg.Username != "" && s.cfg.Password != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}

	addr := fmt.Sprintf("%s:%s", s.cfg.Host, s.cfg.Port)

	msg, err := buildMessage(s.cfg.Sender, to, subject, htmlBody, textBody)
	if err != nil {
		return fmt.Errorf("failed to build message: %w", err)
	}

	if err := s.sendMail(addr, auth, s.cfg.Sender, []string{to}, msg); err != nil {
		s.log.Errorw("SMTP send error", "error", err, "to", to, "addr", addr)
		return fmt.Errorf("failed to send mail: %w", err)
	}

	s.log.Infow("Email sent", "to", to, "addr", addr, "subject", subject)
	return nil
}

func buildMessage(from, to, subject, htmlBody, textBody string) ([]byte, error) {
	var body strings.Builder
	writer := multipart.NewWriter(&body)

	textPart, err := writer.CreatePart(textproto.MIMEHeader{
		"Content-Type": {"text/plain; charset=UTF-8"},
	})
	if err != nil {
		return nil, err
	}
	if _, err := textPart.Write([]byte(textBody)); err != nil {
		return nil, err
	}

	htmlPart, err := writer.CreatePart(textproto.MIMEHeader{
		"Content-Type": {"text/html; charset=UTF-8"},
	})
	if err != nil {
		return nil, err
	}
	if _, err := htmlPart.Write([]byte(htmlBody)); err != nil {
		return nil, err
	}

	if err := writer.Close(); err != nil {
		return nil, err
	}

	headers := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n", from, to, subject) +
		"MIME-Version: 1.0\r\n" +
		fmt.Sprintf("Content-Type: multipart/alternative; boundary=%q\r\n\r\n", writer.Boundary())

	return []byte(headers + body.String()), nil
}
