package email

import (
	"context"

	"github.com/rs/zerolog"
)

// LogAdapter writes emails to the log instead of sending them. Used in
// development and when no provider is configured.
type LogAdapter struct {
	logger zerolog.Logger
}

func NewLogAdapter(logger zerolog.Logger) *LogAdapter {
	return &LogAdapter{logger: logger.With().Str("component", "email").Logger()}
}

func (a *LogAdapter) Name() string { return "log" }

func (a *LogAdapter) Send(_ context.Context, e Email) error {
	a.logger.Info().
		Strs("to", e.To).
		Strs("cc", e.CC).
		Strs("bcc", e.BCC).
		Str("subject", e.Subject).
		Int("html_bytes", len(e.BodyHTML)).
		Str("text", e.BodyText).
		Msg("email (not sent)")
	return nil
}
