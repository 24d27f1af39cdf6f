package utils

import (
	"context"
	"crypto/tls"
	"errors"

	"github.com/mmdatafocus/mpms/config"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gopkg.in/gomail.v2"
)

type MailMessage struct {
	To      []string
	Subject string
	Body    string
}

type Mailer interface {
	Send(ctx context.Context, msg MailMessage) error
}

type SMTPMailer struct {
	dialer *gomail.Dialer
	sender string
}

func NewSMTPMailer(cfg config.MailConfig) *SMTPMailer {
	d := gomail.NewDialer(cfg.Server, cfg.Port, cfg.User, cfg.Password)
	d.SSL = cfg.UseSSL
	if cfg.UseTLS || cfg.UseSSL {
		d.TLSConfig = &tls.Config{ServerName: cfg.Server}
	}
	return &SMTPMailer{dialer: d, sender: cfg.Sender}
}

func (m *SMTPMailer) Send(ctx context.Context, msg MailMessage) error {
	_, span := tracer.Start(ctx, "mail.send", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(attribute.String("mail.subject", msg.Subject))

	if len(msg.To) == 0 {
		return errors.New("mail has no recipient")
	}
	if m.sender == "" {
		return errors.New("MAIL_SENDER is not configured")
	}
	gm := gomail.NewMessage()
	gm.SetHeader("From", m.sender)
	gm.SetHeader("To", msg.To...)
	gm.SetHeader("Subject", msg.Subject)
	gm.SetBody("text/plain", msg.Body)

	if err := m.dialer.DialAndSend(gm); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

// ResetPasswordMail builds the password reset message for email.
func ResetPasswordMail(email string, resetURL string) MailMessage {
	return MailMessage{
		To:      []string{email},
		Subject: "重置信息的邮件",
		Body:    "点击如下链接进行信息重置 " + resetURL,
	}
}
