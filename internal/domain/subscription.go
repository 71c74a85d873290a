package domain

import (
	"time"
)

// SubscriptionRecord is the per-user billing state owned by the profile
// store. It is mutated only through reconciliation upserts.
type SubscriptionRecord struct {
	UserID                  string    `json:"user_id"`
	Plan                    string    `json:"plan"`
	PlanUpdatedAt           time.Time `json:"plan_updated_at"`
	ProviderCustomerRef     *string   `json:"provider_customer_ref,omitempty"`
	ProviderSubscriptionRef *string   `json:"provider_subscription_ref,omitempty"`
}

// SubscriptionUpsert is the single write shape accepted by the profile
// store: a full-field upsert keyed by UserID. A nil ref leaves the stored
// value untouched, so a downgrade keeps historical provider linkage.
type SubscriptionUpsert struct {
	UserID                  string
	Plan                    string
	PlanUpdatedAt           time.Time
	ProviderCustomerRef     *string
	ProviderSubscriptionRef *string
}
