package mail

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	gomail "github.com/wneessen/go-mail"
)

var (
	ErrDelivery = errors.New("delivery_failed")
	ErrClosed   = errors.New("dispatcher_closed")
)

// Message is a single outbound email. HTML is optional; when set, Text becomes
// the plain-text alternative.
type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

func (m Message) validate() error {
	if strings.TrimSpace(m.To) == "" {
		return errors.New("recipient required")
	}
	if strings.TrimSpace(m.Subject) == "" {
		return errors.New("subject required")
	}
	return nil
}

type Sender interface {
	Send(ctx context.Context, m Message) error
}

type SMTPOptions struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Timeout  time.Duration
}

// SMTPSender submits mail over STARTTLS with PLAIN auth. One client is shared;
// each Send opens its own connection.
type SMTPSender struct {
	client *gomail.Client
	from   string
}

func NewSMTPSender(opts SMTPOptions) (*SMTPSender, error) {
	if opts.Host == "" {
		return nil, errors.New("smtp host required")
	}
	from := opts.From
	if from == "" {
		from = opts.Username
	}
	if from == "" {
		return nil, errors.New("smtp from address required")
	}

	clientOpts := []gomail.Option{
		gomail.WithTLSPolicy(gomail.TLSMandatory),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(opts.Username),
		gomail.WithPassword(opts.Password),
	}
	if opts.Port > 0 {
		clientOpts = append(clientOpts, gomail.WithPort(opts.Port))
	}
	if opts.Timeout > 0 {
		clientOpts = append(clientOpts, gomail.WithTimeout(opts.Timeout))
	}

	client, err := gomail.NewClient(opts.Host, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("smtp client: %w", err)
	}
	return &SMTPSender{client: client, from: from}, nil
}

func (s *SMTPSender) Send(ctx context.Context, m Message) error {
	if err := m.validate(); err != nil {
		return err
	}

	msg := gomail.NewMsg()
	if err := msg.From(s.from); err != nil {
		return fmt.Errorf("from: %w", err)
	}
	if err := msg.To(m.To); err != nil {
		return fmt.Errorf("to: %w", err)
	}
	msg.Subject(m.Subject)
	if m.HTML != "" {
		msg.SetBodyString(gomail.TypeTextHTML, m.HTML)
		if m.Text != "" {
			msg.AddAlternativeString(gomail.TypeTextPlain, m.Text)
		}
	} else {
		msg.SetBodyString(gomail.TypeTextPlain, m.Text)
	}

	return s.client.DialAndSendWithContext(ctx, msg)
}

// LogSender only logs recipient and subject. Used when no SMTP account is
// configured.
type LogSender struct {
	Log logrus.FieldLogger
}

func (s LogSender) Send(_ context.Context, m Message) error {
	if err := m.validate(); err != nil {
		return err
	}
	log := s.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	log.WithFields(logrus.Fields{
		"to":      m.To,
		"subject": m.Subject,
	}).Info("mail not sent: smtp disabled")
	return nil
}
