// Package mail sends plain-text notification email.
package mail

import (
	"context"
	"log/slog"
	"regexp"
)

// Message is one plain-text email.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Mailer delivers a message. Implementations must be safe for concurrent use.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// tokenParam matches the value of a token= query parameter in a link.
var tokenParam = regexp.MustCompile(`([?&]token=)[^&\s]+`)

// LogMailer writes messages to the log instead of sending them.
// Used when no SMTP host is configured. Token values in links are
// redacted unless ShowTokens is set.
type LogMailer struct {
	Logger     *slog.Logger
	ShowTokens bool
}

func (m LogMailer) Send(ctx context.Context, msg Message) error {
	logger := m.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "mail not sent (no SMTP host configured)",
		"to", msg.To,
		"subject", msg.Subject,
		"body", m.body(msg.Body),
	)
	return nil
}

func (m LogMailer) body(b string) string {
	if m.ShowTokens {
		return b
	}
	return tokenParam.ReplaceAllString(b, "${1}REDACTED")
}
