package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/pagecraft/subsync/internal/domain"
)

// ProfileStore is the single contract this system has with the persistent
// profile store: an atomic full-field upsert keyed by user id.
type ProfileStore interface {
	UpsertSubscription(ctx context.Context, up domain.SubscriptionUpsert) error
}

// Outcome describes what a reconciliation did with an event. Skipped
// outcomes are deliberate no-ops acknowledged with success, not failures.
type Outcome string

const (
	OutcomeActivated           Outcome = "activated"
	OutcomeDowngraded          Outcome = "downgraded"
	OutcomeObserved            Outcome = "observed"
	OutcomeSkippedNoUser       Outcome = "skipped_no_user"
	OutcomeSkippedNoPlan       Outcome = "skipped_no_plan"
	OutcomeSkippedNotActive    Outcome = "skipped_not_active"
	OutcomeSkippedUnrecognized Outcome = "skipped_unrecognized"
)

// Reconciler applies classified events to the profile store. Every apply is
// a self-contained idempotent upsert; concurrent writes for the same user
// are serialized by store-level atomicity, so no per-user locking happens
// here. Last write wins, including a delayed older event arriving after a
// newer one.
type Reconciler struct {
	store    ProfileStore
	freePlan string
	logger   *slog.Logger
	now      func() time.Time
}

// NewReconciler creates a reconciler writing through store. freePlan is the
// plan id a downgrade assigns.
func NewReconciler(store ProfileStore, freePlan string, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		store:    store,
		freePlan: freePlan,
		logger:   logger,
		now:      time.Now,
	}
}

// Apply routes ev to its reconciliation action and executes it. A returned
// error is always a store failure; every logical no-op returns a skipped
// outcome and nil error so the caller can acknowledge the delivery.
func (r *Reconciler) Apply(ctx context.Context, ev domain.CanonicalEvent) (Outcome, error) {
	kind := Classify(ev.Provider, ev.EventTag)

	switch ActionFor(kind) {
	case ActionActivate:
		return r.activate(ctx, ev)
	case ActionDowngrade:
		return r.downgrade(ctx, ev)
	default:
		if kind == domain.KindUnrecognized {
			r.logger.Warn("unrecognized webhook event tag",
				"provider", ev.Provider, "event_tag", ev.EventTag)
			return OutcomeSkippedUnrecognized, nil
		}
		return OutcomeObserved, nil
	}
}

func (r *Reconciler) activate(ctx context.Context, ev domain.CanonicalEvent) (Outcome, error) {
	if ev.UserID == "" {
		return OutcomeSkippedNoUser, nil
	}
	if ev.PlanID == "" {
		r.logger.Warn("activation event without resolvable plan",
			"provider", ev.Provider, "event_tag", ev.EventTag, "user_id", ev.UserID)
		return OutcomeSkippedNoPlan, nil
	}
	if !strings.EqualFold(strings.TrimSpace(ev.Status), "active") {
		return OutcomeSkippedNotActive, nil
	}

	up := domain.SubscriptionUpsert{
		UserID:        ev.UserID,
		Plan:          ev.PlanID,
		PlanUpdatedAt: r.now().UTC(),
	}
	if ev.CustomerRef != "" {
		up.ProviderCustomerRef = &ev.CustomerRef
	}
	if ev.SubscriptionRef != "" {
		up.ProviderSubscriptionRef = &ev.SubscriptionRef
	}

	if err := r.store.UpsertSubscription(ctx, up); err != nil {
		return "", fmt.Errorf("activating %s for user %s: %w", ev.PlanID, ev.UserID, err)
	}
	return OutcomeActivated, nil
}

func (r *Reconciler) downgrade(ctx context.Context, ev domain.CanonicalEvent) (Outcome, error) {
	if ev.UserID == "" {
		return OutcomeSkippedNoUser, nil
	}

	// Provider linkage refs stay nil so the stored values survive the
	// cancellation for later correlation.
	up := domain.SubscriptionUpsert{
		UserID:        ev.UserID,
		Plan:          r.freePlan,
		PlanUpdatedAt: r.now().UTC(),
	}

	if err := r.store.UpsertSubscription(ctx, up); err != nil {
		return "", fmt.Errorf("downgrading user %s: %w", ev.UserID, err)
	}
	return OutcomeDowngraded, nil
}
