package notify

import (
	"context"
	"fmt"
	"html"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

// Email is one outbound HTML message.
type Email struct {
	From    string
	To      []string
	Cc      []string
	Subject string
	Body    string
}

type Mailer interface {
	Send(ctx context.Context, e Email) error
}

type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
}

// SMTPMailer dials the relay for every message.
type SMTPMailer struct {
	dialer *gomail.Dialer
	log    *zap.Logger
}

func NewSMTPMailer(cfg SMTPConfig, log *zap.Logger) *SMTPMailer {
	return &SMTPMailer{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password),
		log:    log,
	}
}

func (m *SMTPMailer) Send(ctx context.Context, e Email) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := gomail.NewMessage()
	msg.SetHeader("From", e.From)
	msg.SetHeader("To", e.To...)
	if len(e.Cc) > 0 {
		msg.SetHeader("Cc", e.Cc...)
	}
	msg.SetHeader("Subject", e.Subject)
	msg.SetBody("text/html", e.Body)

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("send mail to %v: %w", e.To, err)
	}
	m.log.Info("Sent mail", zap.Strings("to", e.To), zap.Strings("cc", e.Cc), zap.String("subject", e.Subject))
	return nil
}

// AdminAlerter mails the configured administrators.
type AdminAlerter struct {
	mailer Mailer
	from   string
	admins []string
}

func NewAdminAlerter(mailer Mailer, from string, admins []string) *AdminAlerter {
	return &AdminAlerter{mailer: mailer, from: from, admins: admins}
}

func (a *AdminAlerter) Alert(ctx context.Context, subject, body string) error {
	if len(a.admins) == 0 {
		return nil
	}
	return a.mailer.Send(ctx, Email{
		From:    a.from,
		To:      a.admins,
		Subject: subject,
		Body:    "<p>" + html.EscapeString(body) + "</p>",
	})
}
