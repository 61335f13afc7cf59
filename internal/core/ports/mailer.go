package ports

import "context"

// Mailer delivers transactional mail. Outbound email is an external
// collaborator; implementations live under internal/platform/mailer.
type Mailer interface {
	SendPasswordReset(ctx context.Context, toEmail, toName, resetURL string) error
}
