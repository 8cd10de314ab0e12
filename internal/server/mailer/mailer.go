// Package mailer delivers reminder notifications.
package mailer

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/careconnect/internal/common"
	"github.com/dmitrijs2005/careconnect/internal/logging"
	"github.com/wneessen/go-mail"
)

// Sender delivers a single plain-text notification. Failures that may
// succeed on retry wrap common.ErrTransientDelivery.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

type SMTPOptions struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Timeout  time.Duration
}

type SMTPSender struct {
	client *mail.Client
	from   string
}

func NewSMTPSender(o SMTPOptions) (*SMTPSender, error) {
	if o.Host == "" {
		return nil, fmt.Errorf("%w: smtp host is empty", common.ErrConfig)
	}
	if o.From == "" {
		return nil, fmt.Errorf("%w: smtp sender address is empty", common.ErrConfig)
	}
	if o.Timeout == 0 {
		o.Timeout = 10 * time.Second
	}

	opts := []mail.Option{
		mail.WithPort(o.Port),
		mail.WithTimeout(o.Timeout),
		mail.WithTLSPortPolicy(mail.TLSOpportunistic),
	}
	if o.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(o.Username),
			mail.WithPassword(o.Password),
		)
	}

	client, err := mail.NewClient(o.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: smtp client: %v", common.ErrConfig, err)
	}
	return &SMTPSender{client: client, from: o.From}, nil
}

func (s *SMTPSender) Send(ctx context.Context, to, subject, body string) error {
	msg, err := buildMessage(s.from, to, subject, body)
	if err != nil {
		return err
	}
	if err := s.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("%w: %v", common.ErrTransientDelivery, err)
	}
	return nil
}

// buildMessage rejects bad addresses with ErrValidation; retrying them
// would never succeed.
func buildMessage(from, to, subject, body string) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(from); err != nil {
		return nil, fmt.Errorf("%w: from address: %v", common.ErrValidation, err)
	}
	if err := msg.To(to); err != nil {
		return nil, fmt.Errorf("%w: recipient address: %v", common.ErrValidation, err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)
	return msg, nil
}

// LogSender only logs. It is used when no SMTP host is configured.
type LogSender struct {
	log logging.Logger
}

func NewLogSender(l logging.Logger) *LogSender {
	return &LogSender{log: l}
}

func (s *LogSender) Send(ctx context.Context, to, subject, body string) error {
	s.log.Info(ctx, "notification", "to", to, "subject", subject, "body", body)
	return nil
}
