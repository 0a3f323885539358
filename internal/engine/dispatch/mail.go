package dispatch

import (
	"context"
	"fmt"
	"strings"

	"watchtower/internal/engine/alert"
	"watchtower/pkg/mail"
)

// MailChannel delivers alerts over SMTP. SMTP failures are transient more
// often than not (greylisting, connection limits), so they are all treated
// as retryable.
type MailChannel struct {
	name   string
	sender mail.Sender
	to     []string
}

func NewMailChannel(name string, sender mail.Sender, to []string) *MailChannel {
	return &MailChannel{
		name:   name,
		sender: sender,
		to:     to,
	}
}

func (m *MailChannel) Name() string {
	return m.name
}

func (m *MailChannel) Send(_ context.Context, msg alert.Message) error {
	subject := fmt.Sprintf("[watchtower] %s: %s", strings.ToUpper(msg.Severity), msg.Key)
	if err := m.sender.SendMail(m.to, subject, "", msg.Text); err != nil {
		return &RetryableError{Err: fmt.Errorf("MailChannel.Send: %w", err)}
	}
	return nil
}
