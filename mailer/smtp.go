package mailer

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"
)

// SMTP sends mail through a plain SMTP relay.
type SMTP struct {
	dialer *gomail.Dialer
	from   string
}

func NewSMTP(host string, port int, user, password, from string) *SMTP {
	return &SMTP{
		dialer: gomail.NewDialer(host, port, user, password),
		from:   from,
	}
}

func (s *SMTP) SendOTP(ctx context.Context, to, code string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", "Your Collexa verification code")
	m.SetBody("text/html", fmt.Sprintf(
		"<p>Your Collexa verification code is <b>%s</b>.</p><p>It is valid for 10 minutes. If you did not request it, ignore this email.</p>",
		code,
	))

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("%w: otp to %s: %v", ErrSend, to, err)
	}
	return nil
}
