// Package mailer delivers HTML mail with optional attachments over SMTP.
package mailer

import (
	"context"
	"fmt"
	"io"

	"gopkg.in/gomail.v2"

	"github.com/noah-isme/staff-remuneration-api/pkg/config"
)

// Attachment is an in-memory file attached to a message.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Message is one outbound mail.
type Message struct {
	To          string
	Subject     string
	HTML        string
	Attachments []Attachment
}

// Mailer sends messages.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// Dialer is the subset of *gomail.Dialer used for delivery.
type Dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPMailer sends through a gomail dialer.
type SMTPMailer struct {
	dialer   Dialer
	fromAddr string
	fromName string
}

// NewSMTPMailer builds a mailer from SMTP configuration.
func NewSMTPMailer(cfg config.MailConfig) *SMTPMailer {
	return NewSMTPMailerWithDialer(gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password), cfg.FromAddress, cfg.FromName)
}

// NewSMTPMailerWithDialer allows callers to supply their own transport.
func NewSMTPMailerWithDialer(d Dialer, fromAddr, fromName string) *SMTPMailer {
	return &SMTPMailer{dialer: d, fromAddr: fromAddr, fromName: fromName}
}

// Send delivers msg once. Delivery is not retried.
func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if msg.To == "" {
		return fmt.Errorf("mail recipient required")
	}
	if err := m.dialer.DialAndSend(m.build(msg)); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}

func (m *SMTPMailer) build(msg Message) *gomail.Message {
	gm := gomail.NewMessage()
	gm.SetAddressHeader("From", m.fromAddr, m.fromName)
	gm.SetHeader("To", msg.To)
	gm.SetHeader("Subject", msg.Subject)
	gm.SetBody("text/html", msg.HTML)

	for _, a := range msg.Attachments {
		data := a.Data
		contentType := a.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		gm.Attach(a.Filename,
			gomail.SetHeader(map[string][]string{"Content-Type": {contentType}}),
			gomail.SetCopyFunc(func(w io.Writer) error {
				_, err := w.Write(data)
				return err
			}),
		)
	}
	return gm
}
