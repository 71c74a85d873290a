package provider

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pagecraft/subsync/internal/domain"
)

// lemonSqueezy adapts Lemon Squeezy webhook payloads. Checkout metadata
// (user_id, plan_id) arrives on the top-level envelope under
// meta.custom_data; the subscription entity lives under data.attributes.
type lemonSqueezy struct {
	plans map[string]string
}

// NewLemonSqueezy creates the Lemon Squeezy adapter. plans maps product
// variant names (e.g. "Pro") to internal plan ids.
func NewLemonSqueezy(plans map[string]string) Adapter {
	return &lemonSqueezy{plans: plans}
}

func (a *lemonSqueezy) Provider() domain.Provider { return domain.ProviderLemonSqueezy }
func (a *lemonSqueezy) SignatureHeader() string   { return "X-Signature" }
func (a *lemonSqueezy) EventIDHeader() string     { return "X-Event-Id" }

type lemonSqueezyEnvelope struct {
	Meta struct {
		EventName  string         `json:"event_name"`
		CustomData map[string]any `json:"custom_data"`
	} `json:"meta"`
	Data struct {
		ID         string `json:"id"`
		Attributes struct {
			Status      string `json:"status"`
			VariantName string `json:"variant_name"`
			CustomerID  any    `json:"customer_id"`
		} `json:"attributes"`
	} `json:"data"`
}

func (a *lemonSqueezy) Normalize(body []byte) (domain.CanonicalEvent, error) {
	var env lemonSqueezyEnvelope
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&env); err != nil {
		return domain.CanonicalEvent{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	ev := domain.CanonicalEvent{
		Provider:        domain.ProviderLemonSqueezy,
		EventTag:        env.Meta.EventName,
		UserID:          asString(env.Meta.CustomData["user_id"]),
		Status:          env.Data.Attributes.Status,
		CustomerRef:     asString(env.Data.Attributes.CustomerID),
		SubscriptionRef: env.Data.ID,
		OccurredAt:      time.Now().UTC(),
	}

	// Variant name wins over checkout metadata; neither resolving leaves
	// PlanID empty and turns any activation into a no-op downstream.
	if plan, ok := a.plans[env.Data.Attributes.VariantName]; ok {
		ev.PlanID = plan
	} else {
		ev.PlanID = asString(env.Meta.CustomData["plan_id"])
	}

	return ev, nil
}
