package mailer

import (
	"fmt"

	"go.uber.org/zap"
	gomail "gopkg.in/gomail.v2"

	"github.com/fieldmed/medrep-api/pkg/config"
)

// Sender delivers plain-text notification emails.
type Sender interface {
	Send(to, subject, body string) error
}

// SMTPSender sends mail through a configured SMTP relay.
type SMTPSender struct {
	dialer *gomail.Dialer
	from   string
}

// NewSMTPSender builds a sender from SMTP configuration.
func NewSMTPSender(cfg config.SMTPConfig) *SMTPSender {
	return &SMTPSender{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
	}
}

// Send delivers a single message synchronously.
func (s *SMTPSender) Send(to, subject, body string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("send mail to %s: %w", to, err)
	}
	return nil
}

// NopSender discards messages. Used when SMTP is disabled.
type NopSender struct{}

// Send implements Sender.
func (NopSender) Send(string, string, string) error { return nil }

// SendAsync fires the message on a goroutine. Delivery failures are logged,
// never propagated; notification mail must not fail committed operations.
func SendAsync(s Sender, logger *zap.Logger, to, subject, body string) {
	if s == nil {
		return
	}
	go func() {
		if err := s.Send(to, subject, body); err != nil && logger != nil {
			logger.Warn("notification email failed",
				zap.String("to", to),
				zap.String("subject", subject),
				zap.Error(err),
			)
		}
	}()
}
