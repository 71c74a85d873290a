package observe

import (
	"context"
	"log/slog"
)

// Event is one processed webhook delivery, including the ones that were
// deliberately ignored. Emitting these as structured data (rather than only
// free-text logs) is what makes no-op behavior assertable in tests.
type Event struct {
	Provider string
	EventTag string
	Kind     string
	Outcome  string
	UserID   string
}

// Observer receives one emission per processed delivery.
type Observer interface {
	WebhookProcessed(ctx context.Context, e Event)
}

type logObserver struct {
	logger *slog.Logger
}

// NewLogObserver emits processed deliveries through slog.
func NewLogObserver(logger *slog.Logger) Observer {
	return &logObserver{logger: logger}
}

func (o *logObserver) WebhookProcessed(ctx context.Context, e Event) {
	o.logger.LogAttrs(ctx, slog.LevelInfo, "webhook processed",
		slog.String("provider", e.Provider),
		slog.String("event_tag", e.EventTag),
		slog.String("kind", e.Kind),
		slog.String("outcome", e.Outcome),
		slog.String("user_id", e.UserID),
	)
}
