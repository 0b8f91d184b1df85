package auth

import (
	"context"

	"github.com/go-monolith/mono/pkg/types"
)

// Mailer delivers account emails.
type Mailer interface {
	SendPasswordReset(ctx context.Context, email, link string) error
}

// LogMailer records deliveries in the application log. The link itself is
// not logged because it carries a credential.
type LogMailer struct {
	logger types.Logger
}

// NewLogMailer creates a LogMailer.
func NewLogMailer(logger types.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

// SendPasswordReset logs that a reset link was issued.
func (m *LogMailer) SendPasswordReset(_ context.Context, email, _ string) error {
	m.logger.Info("Password reset link issued", "email", email)
	return nil
}
