package notify

import (
	"context"

	"github.com/rs/zerolog"
)

// LogChannel writes notifications to the run log. It is always enabled so
// every run log carries the same summary the webhook receives.
type LogChannel struct {
	logger zerolog.Logger
}

// NewLogChannel creates a log-backed channel.
func NewLogChannel(logger zerolog.Logger) *LogChannel {
	return &LogChannel{logger: logger.With().Str("component", "notify").Logger()}
}

// Name returns the name of the channel.
func (l *LogChannel) Name() string {
	return "log"
}

// IsEnabled always returns true.
func (l *LogChannel) IsEnabled() bool {
	return true
}

// Send logs the notification at a level matching its type.
func (l *LogChannel) Send(ctx context.Context, n Notification) error {
	event := l.logger.Info()
	switch n.Type {
	case NotificationReview:
		event = l.logger.Warn()
	case NotificationError:
		event = l.logger.Error()
	}
	event.Str("type", string(n.Type)).Str("detail", n.Message).Msg(n.Title)
	return nil
}
