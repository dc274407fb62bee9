// Package mailer delivers transactional email. Only OTP delivery exists today.
package mailer

import (
	"context"
	"errors"
)

// ErrSend signals the upstream mail relay rejected or dropped the delivery.
var ErrSend = errors.New("mailer: send failed")

// OTPSender delivers a one-time signup code to an address.
type OTPSender interface {
	SendOTP(ctx context.Context, to, code string) error
}
