// Package mail delivers account mail over SMTP.
package mail

import (
	"context"
	"time"

	account "github.com/goliatone/go-account"
	goerrors "github.com/goliatone/go-errors"
	gomail "github.com/wneessen/go-mail"
)

// DefaultPort is the SMTP submission port
const DefaultPort = 587

// Sender delivers composed messages, *gomail.Client satisfies it
type Sender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*gomail.Msg) error
}

// Config holds the SMTP settings
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	// RequireTLS refuses servers without STARTTLS
	RequireTLS bool
}

// SMTPMailer implements account.Mailer
type SMTPMailer struct {
	cfg    Config
	sender Sender
	now    func() time.Time
	logger account.Logger
}

var _ account.Mailer = (*SMTPMailer)(nil)

// New creates a mailer. It is meant to be built once at startup and
// shared.
func New(cfg Config) (*SMTPMailer, error) {
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}

	policy := gomail.TLSOpportunistic
	if cfg.RequireTLS {
		policy = gomail.TLSMandatory
	}
	opts := []gomail.Option{
		gomail.WithPort(cfg.Port),
		gomail.WithTLSPortPolicy(policy),
	}
	if cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(cfg.Username),
			gomail.WithPassword(cfg.Password),
		)
	}

	client, err := gomail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid smtp configuration")
	}

	return &SMTPMailer{
		cfg:    cfg,
		sender: client,
		now:    time.Now,
		logger: nopLogger{},
	}, nil
}

// WithSender replaces the transport
func (m *SMTPMailer) WithSender(sender Sender) *SMTPMailer {
	if sender != nil {
		m.sender = sender
	}
	return m
}

// WithLogger sets the logger
func (m *SMTPMailer) WithLogger(logger account.Logger) *SMTPMailer {
	if logger != nil {
		m.logger = logger
	}
	return m
}

// WithClock sets the clock used for the Date header
func (m *SMTPMailer) WithClock(now func() time.Time) *SMTPMailer {
	if now != nil {
		m.now = now
	}
	return m
}

// SendMail composes msg and hands it to the SMTP server
func (m *SMTPMailer) SendMail(ctx context.Context, msg account.MailMessage) error {
	if len(msg.To) == 0 {
		return account.ErrParameterRequired("to")
	}
	if err := ctx.Err(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "mail delivery cancelled")
	}

	message, err := m.Compose(msg)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to compose mail").
			WithCode(goerrors.CodeBadRequest)
	}

	if err := m.sender.DialAndSendWithContext(ctx, message); err != nil {
		m.logger.Error("smtp delivery through %s failed: %v", m.cfg.Host, err)
		return goerrors.Wrap(err, goerrors.CategoryExternal, "smtp delivery failed").
			WithTextCode(account.TextCodeMailDelivery).
			WithCode(goerrors.CodeInternal)
	}

	m.logger.Debug("mail %q sent to %d recipients", msg.Subject, len(msg.To))
	return nil
}

// Compose builds the message. Bodies are quoted-printable UTF-8, with both
// parts present the message is multipart/alternative.
func (m *SMTPMailer) Compose(msg account.MailMessage) (*gomail.Msg, error) {
	message := gomail.NewMsg(
		gomail.WithCharset(gomail.CharsetUTF8),
		gomail.WithEncoding(gomail.EncodingQP),
		gomail.WithNoDefaultUserAgent(),
	)
	if err := message.From(m.cfg.From); err != nil {
		return nil, err
	}
	if err := message.To(msg.To...); err != nil {
		return nil, err
	}
	message.Subject(msg.Subject)
	message.SetDateWithValue(m.now())
	message.SetMessageID()

	switch {
	case msg.HTML != "" && msg.Text != "":
		message.SetBodyString(gomail.TypeTextPlain, msg.Text)
		message.AddAlternativeString(gomail.TypeTextHTML, msg.HTML)
	case msg.HTML != "":
		message.SetBodyString(gomail.TypeTextHTML, msg.HTML)
	default:
		message.SetBodyString(gomail.TypeTextPlain, msg.Text)
	}
	return message, nil
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
