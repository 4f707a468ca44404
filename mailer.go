package auth

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-errors"
	"github.com/wneessen/go-mail"
)

// Mailer delivers account notifications. The lifecycle commands treat it as
// fire-and-forget: a delivery failure never rolls back the operation that
// triggered it.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// MailerFunc adapts a function to the Mailer interface.
type MailerFunc func(ctx context.Context, to, subject, body string) error

// Send implements Mailer.
func (f MailerFunc) Send(ctx context.Context, to, subject, body string) error {
	if f == nil {
		return nil
	}
	return f(ctx, to, subject, body)
}

type noopMailer struct{}

func (noopMailer) Send(context.Context, string, string, string) error { return nil }

func normalizeMailer(m Mailer) Mailer {
	if m == nil {
		return noopMailer{}
	}
	return m
}

// SMTPConfig holds transport options for the SMTP mailer.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
	TLS      bool
}

// SMTPMailer sends notifications over SMTP.
type SMTPMailer struct {
	cfg SMTPConfig
}

var _ Mailer = (*SMTPMailer)(nil)

// NewSMTPMailer validates the transport options and returns a Mailer.
func NewSMTPMailer(cfg SMTPConfig) (*SMTPMailer, error) {
	if cfg.Host == "" {
		return nil, errors.New("SMTP host is required", errors.CategoryBadInput)
	}
	if cfg.From == "" {
		return nil, errors.New("SMTP from address is required", errors.CategoryBadInput)
	}
	return &SMTPMailer{cfg: cfg}, nil
}

// Send delivers a plain text message to a single recipient.
func (s *SMTPMailer) Send(ctx context.Context, to, subject, body string) error {
	msg := mail.NewMsg()

	if s.cfg.FromName != "" {
		if err := msg.FromFormat(s.cfg.FromName, s.cfg.From); err != nil {
			return errors.Wrap(err, errors.CategoryBadInput, "setting from address")
		}
	} else {
		if err := msg.From(s.cfg.From); err != nil {
			return errors.Wrap(err, errors.CategoryBadInput, "setting from address")
		}
	}

	if err := msg.To(to); err != nil {
		return errors.Wrap(err, errors.CategoryBadInput, "setting to address")
	}

	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)

	opts := []mail.Option{
		mail.WithPort(s.cfg.Port),
	}

	if s.cfg.TLS {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
		// Implicit TLS for 465, STARTTLS otherwise
		if s.cfg.Port == 465 {
			opts = append(opts, mail.WithSSL())
		}
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.NoTLS))
	}

	if s.cfg.Username != "" && s.cfg.Password != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.cfg.Username),
			mail.WithPassword(s.cfg.Password),
		)
	}

	client, err := mail.NewClient(s.cfg.Host, opts...)
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "creating mail client")
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "sending email")
	}

	return nil
}

// VerificationEmail builds the subject and body for a verification link.
func VerificationEmail(baseURL, token string) (subject, body string) {
	link := fmt.Sprintf("%s/verify/%s", strings.TrimSuffix(baseURL, "/"), token)
	subject = "Verify your StudyPair account"
	body = fmt.Sprintf("Please verify your email by clicking on this link: %s", link)
	return subject, body
}

// PasswordResetEmail builds the subject and body for a reset link.
func PasswordResetEmail(baseURL, token string) (subject, body string) {
	link := fmt.Sprintf("%s/reset-password/%s", strings.TrimSuffix(baseURL, "/"), token)
	subject = "Reset your StudyPair password"
	body = fmt.Sprintf("Please click this link to reset your password: %s", link)
	return subject, body
}
