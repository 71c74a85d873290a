package engine

import (
	"github.com/pagecraft/subsync/internal/domain"
)

// Per-provider classification tables. This is the single place new provider
// event types are registered; nothing else branches on raw provider tags.
var lemonSqueezyKinds = map[string]domain.EventKind{
	"subscription_created":         domain.KindSubscriptionActivated,
	"subscription_updated":         domain.KindSubscriptionUpdated,
	"subscription_resumed":         domain.KindSubscriptionResumed,
	"subscription_cancelled":       domain.KindSubscriptionCancelled,
	"subscription_expired":         domain.KindSubscriptionExpired,
	"subscription_payment_success": domain.KindPaymentSucceeded,
	"subscription_payment_failed":  domain.KindPaymentFailed,
}

var razorpayKinds = map[string]domain.EventKind{
	"subscription.activated": domain.KindSubscriptionActivated,
	"subscription.updated":   domain.KindSubscriptionUpdated,
	"subscription.resumed":   domain.KindSubscriptionResumed,
	"subscription.cancelled": domain.KindSubscriptionCancelled,
	"subscription.completed": domain.KindSubscriptionExpired,
	"subscription.charged":   domain.KindPaymentSucceeded,
	"subscription.halted":    domain.KindPaymentFailed,
}

// Classify maps a provider's raw event tag to its canonical kind. Unknown
// providers or tags classify as Unrecognized, never as an error.
func Classify(p domain.Provider, tag string) domain.EventKind {
	var table map[string]domain.EventKind
	switch p {
	case domain.ProviderLemonSqueezy:
		table = lemonSqueezyKinds
	case domain.ProviderRazorpay:
		table = razorpayKinds
	}

	if kind, ok := table[tag]; ok {
		return kind
	}
	return domain.KindUnrecognized
}

// Action is the reconciliation step a canonical event kind maps to.
type Action int

const (
	// ActionObserve performs no store mutation; it exists so the routing
	// table is total over every event kind.
	ActionObserve Action = iota
	// ActionActivate upgrades the user to the event's plan when the
	// provider reports the subscription as active.
	ActionActivate
	// ActionDowngrade moves the user to the free tier unconditionally.
	ActionDowngrade
)

func (a Action) String() string {
	switch a {
	case ActionActivate:
		return "activate"
	case ActionDowngrade:
		return "downgrade"
	default:
		return "observe"
	}
}

// ActionFor maps an event kind to its reconciliation action. The table is
// identical across providers.
func ActionFor(kind domain.EventKind) Action {
	switch kind {
	case domain.KindSubscriptionActivated, domain.KindSubscriptionUpdated, domain.KindSubscriptionResumed:
		return ActionActivate
	case domain.KindSubscriptionCancelled, domain.KindSubscriptionExpired:
		return ActionDowngrade
	default:
		return ActionObserve
	}
}
