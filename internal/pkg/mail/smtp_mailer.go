package mail

import (
	"errors"
	"fmt"
	"log"
	"net/smtp"
	"strings"

	"github.com/ManuelReschke/StoreFox/internal/pkg/env"
)

// ErrNotConfigured is returned when SMTP_HOST is missing.
var ErrNotConfigured = errors.New("SMTP_HOST is not configured")

// Mailer sends a single HTML email.
type Mailer interface {
	Configured() bool
	Send(to, subject, htmlBody string) error
}

type Config struct {
	Host     string
	Port     string
	Username string
	Password string
	Sender   string
}

func LoadConfig() Config {
	cfg := Config{
		Host:     strings.TrimSpace(env.GetEnv("SMTP_HOST", "")),
		Port:     strings.TrimSpace(env.GetEnv("SMTP_PORT", "587")),
		Username: env.GetEnv("SMTP_USERNAME", ""),
		Password: env.GetEnv("SMTP_PASSWORD", ""),
		Sender:   strings.TrimSpace(env.GetEnv("SMTP_SENDER", "")),
	}
	if cfg.Sender == "" {
		cfg.Sender = "no-reply@localhost"
		log.Printf("SMTP_SENDER not set, using default sender: %s", cfg.Sender)
	}
	return cfg
}

// SMTPMailer sends emails via SMTP.
type SMTPMailer struct {
	cfg      Config
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPMailer(cfg Config) *SMTPMailer {
	return &SMTPMailer{cfg: cfg, sendMail: smtp.SendMail}
}

func NewSMTPMailerFromEnv() *SMTPMailer {
	return NewSMTPMailer(LoadConfig())
}

func (m *SMTPMailer) Configured() bool {
	return m.cfg.Host != ""
}

func (m *SMTPMailer) Send(to, subject, htmlBody string) error {
	if !m.Configured() {
		return ErrNotConfigured
	}
	if strings.ContainsAny(to, "\r\n") || strings.ContainsAny(subject, "\r\n") {
		return errors.New("mail header contains a line break")
	}

	var auth smtp.Auth
	if m.cfg.Username != "" && m.cfg.Password != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}

	addr := fmt.Sprintf("%s:%s", m.cfg.Host, m.cfg.Port)
	msg := []byte(
		fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n", m.cfg.Sender, to, subject) +
			"MIME-Version: 1.0\r\n" +
			"Content-Type: text/html; charset=UTF-8\r\n\r\n" +
			htmlBody,
	)

	err := m.sendMail(addr, auth, m.cfg.Sender, []string{to}, msg)
	if err != nil {
		log.Printf("SMTP send error: %v", err)
	} else {
		log.Printf("Email sent via %s", addr)
	}
	return err
}
