package email

import (
	"context"
	"fmt"
	"io"

	"gopkg.in/gomail.v2"

	"github.com/jwalitptl/labreport/internal/config"
)

type Service interface {
	SendReport(ctx context.Context, to string, subject string, body string, attachment Attachment) error
}

// Attachment is a file sent along with a message.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Dialer sends composed messages. *gomail.Dialer satisfies it.
type Dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

type SMTPService struct {
	dialer Dialer
	from   string
}

func NewSMTPService(cfg config.SMTPConfig) *SMTPService {
	return NewService(gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password), cfg.From)
}

func NewService(dialer Dialer, from string) *SMTPService {
	return &SMTPService{dialer: dialer, from: from}
}

func (s *SMTPService) SendReport(ctx context.Context, to string, subject string, body string, attachment Attachment) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)
	m.Attach(attachment.Filename,
		gomail.SetCopyFunc(func(w io.Writer) error {
			_, err := w.Write(attachment.Data)
			return err
		}),
		gomail.SetHeader(map[string][]string{"Content-Type": {attachment.ContentType}}),
	)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}
