package domain

import (
	"time"
)

// Provider identifies which payment platform emitted a webhook.
type Provider string

const (
	ProviderLemonSqueezy Provider = "lemonsqueezy"
	ProviderRazorpay     Provider = "razorpay"
)

// EventKind is the canonical classification of a provider event tag.
type EventKind string

const (
	KindSubscriptionActivated EventKind = "subscription_activated"
	KindSubscriptionUpdated   EventKind = "subscription_updated"
	KindSubscriptionResumed   EventKind = "subscription_resumed"
	KindSubscriptionCancelled EventKind = "subscription_cancelled"
	KindSubscriptionExpired   EventKind = "subscription_expired"
	KindPaymentSucceeded      EventKind = "payment_succeeded"
	KindPaymentFailed         EventKind = "payment_failed"
	KindUnrecognized          EventKind = "unrecognized"
)

// CanonicalEvent is the provider-agnostic form of one webhook delivery.
// It lives only for the duration of a single request. Empty string fields
// mean the payload did not carry the value; absence is not a parse failure.
type CanonicalEvent struct {
	Provider        Provider  `json:"provider"`
	EventTag        string    `json:"event_tag"`
	UserID          string    `json:"user_id,omitempty"`
	PlanID          string    `json:"plan_id,omitempty"`
	Status          string    `json:"status,omitempty"`
	CustomerRef     string    `json:"customer_ref,omitempty"`
	SubscriptionRef string    `json:"subscription_ref,omitempty"`
	OccurredAt      time.Time `json:"occurred_at"`
}
