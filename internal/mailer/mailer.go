package mailer

import (
	"crypto/tls"
	"errors"

	"github.com/talkincode/wadesk/config"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

var ErrNoRecipients = errors.New("no mail recipients")

// Sender abstracts gomail's dialer so tests can capture messages
type Sender interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPMailer sends plain text alerts through the configured SMTP relay
type SMTPMailer struct {
	from   string
	sender Sender
}

// New returns nil when no SMTP host is configured
func New(cfg config.SmtpConfig) *SMTPMailer {
	if cfg.Host == "" {
		return nil
	}
	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Passwd)
	if cfg.Port == 465 {
		d.SSL = true
	}
	d.TLSConfig = &tls.Config{ServerName: cfg.Host, MinVersion: tls.VersionTLS12}
	from := cfg.From
	if from == "" {
		from = cfg.User
	}
	return &SMTPMailer{from: from, sender: d}
}

func NewWithSender(from string, sender Sender) *SMTPMailer {
	return &SMTPMailer{from: from, sender: sender}
}

func (m *SMTPMailer) Send(to []string, subject, body string) error {
	if len(to) == 0 {
		return ErrNoRecipients
	}
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to...)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)
	if err := m.sender.DialAndSend(msg); err != nil {
		zap.L().Warn("mail send failed", zap.Strings("to", to), zap.Error(err))
		return err
	}
	zap.L().Info("mail sent", zap.Strings("to", to), zap.String("subject", subject))
	return nil
}
