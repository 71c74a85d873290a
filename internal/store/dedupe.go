package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pagecraft/subsync/internal/domain"
)

// Deduper keeps a TTL'd marker per processed delivery so an exact provider
// redelivery can be acknowledged without re-touching the profile store.
//
// It is strictly best-effort: redis being down, a marker having expired, or
// two deliveries racing past Seen all degrade to processing the event again,
// which is safe because every reconciliation action is an idempotent upsert.
// The marker is the only event history this system keeps.
type Deduper struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewDeduper(client *redis.Client, ttl time.Duration, logger *slog.Logger) *Deduper {
	return &Deduper{client: client, ttl: ttl, logger: logger}
}

func dedupeKey(p domain.Provider, eventID string) string {
	return fmt.Sprintf("webhook:seen:%s:%s", p, eventID)
}

// Seen reports whether this delivery was already fully processed.
func (d *Deduper) Seen(ctx context.Context, p domain.Provider, eventID string) bool {
	if d == nil || d.client == nil || eventID == "" {
		return false
	}

	n, err := d.client.Exists(ctx, dedupeKey(p, eventID)).Result()
	if err != nil {
		d.logger.Warn("dedupe lookup failed, treating delivery as new",
			"provider", p, "event_id", eventID, "error", err)
		return false
	}
	return n > 0
}

// Mark records a delivery as processed. Called only after a successful
// reconciliation so a store failure leaves the event eligible for redelivery.
func (d *Deduper) Mark(ctx context.Context, p domain.Provider, eventID string) {
	if d == nil || d.client == nil || eventID == "" {
		return
	}

	if err := d.client.SetNX(ctx, dedupeKey(p, eventID), 1, d.ttl).Err(); err != nil {
		d.logger.Warn("dedupe mark failed",
			"provider", p, "event_id", eventID, "error", err)
	}
}
