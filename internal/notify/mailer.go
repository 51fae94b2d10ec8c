package notify

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"github.com/meetingapp/backend/config"
)

// ErrMailDisabled is returned by a mailer with no SMTP host configured.
var ErrMailDisabled = errors.New("smtp delivery is not configured")

// Message is a rendered email.
type Message struct {
	To      string
	Subject string
	HTML    string
}

// Sender delivers rendered messages.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPMailer sends mail through gomail.
type SMTPMailer struct {
	dialer   *gomail.Dialer
	from     string
	fromName string
	logger   *zap.Logger
}

// NewSMTPMailer creates a mailer. Without an SMTP host every send is discarded with ErrMailDisabled.
func NewSMTPMailer(cfg config.EmailConfig, logger *zap.Logger) *SMTPMailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &SMTPMailer{from: cfg.FromAddress, fromName: cfg.FromName, logger: logger}
	if cfg.Enabled() {
		m.dialer = gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass)
	}
	return m
}

// Send delivers msg. gomail has no context support, so ctx is only checked before dialing.
func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if m.dialer == nil {
		m.logger.Info("smtp not configured, dropping email", zap.String("to", msg.To), zap.String("subject", msg.Subject))
		return ErrMailDisabled
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	gm := gomail.NewMessage()
	gm.SetAddressHeader("From", m.from, m.fromName)
	gm.SetHeader("To", msg.To)
	gm.SetHeader("Subject", msg.Subject)
	gm.SetBody("text/html", msg.HTML)
	return m.dialer.DialAndSend(gm)
}
