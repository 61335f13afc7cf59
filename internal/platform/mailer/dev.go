package mailer

import (
	"context"

	"github.com/rs/zerolog"
)

// Dev logs reset links instead of delivering them. Default outside
// production so the flow works without a mail provider.
type Dev struct {
	log zerolog.Logger
}

func NewDev(log zerolog.Logger) *Dev {
	return &Dev{log: log}
}

func (d *Dev) SendPasswordReset(_ context.Context, toEmail, _, resetURL string) error {
	d.log.Info().
		Str("to", toEmail).
		Str("reset_url", resetURL).
		Msg("dev mailer: password reset link")
	return nil
}
