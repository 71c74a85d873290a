package provider

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pagecraft/subsync/internal/domain"
)

// razorpay adapts Razorpay webhook payloads. Checkout metadata rides in the
// free-form notes object nested inside the subscription entity; Razorpay
// serializes empty notes as [] rather than {}, which must not fail parsing.
type razorpay struct {
	plans map[string]string
}

// NewRazorpay creates the Razorpay adapter. plans maps Razorpay plan ids
// (e.g. "plan_Nxy...") to internal plan ids.
func NewRazorpay(plans map[string]string) Adapter {
	return &razorpay{plans: plans}
}

func (a *razorpay) Provider() domain.Provider { return domain.ProviderRazorpay }
func (a *razorpay) SignatureHeader() string   { return "X-Razorpay-Signature" }
func (a *razorpay) EventIDHeader() string     { return "X-Razorpay-Event-Id" }

type razorpayEnvelope struct {
	Event   string `json:"event"`
	Payload struct {
		Subscription struct {
			Entity struct {
				ID         string `json:"id"`
				PlanID     string `json:"plan_id"`
				Status     string `json:"status"`
				CustomerID string `json:"customer_id"`
				Notes      any    `json:"notes"`
			} `json:"entity"`
		} `json:"subscription"`
	} `json:"payload"`
}

func (a *razorpay) Normalize(body []byte) (domain.CanonicalEvent, error) {
	var env razorpayEnvelope
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&env); err != nil {
		return domain.CanonicalEvent{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	entity := env.Payload.Subscription.Entity
	notes := asObject(entity.Notes)

	ev := domain.CanonicalEvent{
		Provider:        domain.ProviderRazorpay,
		EventTag:        env.Event,
		UserID:          asString(notes["user_id"]),
		Status:          entity.Status,
		CustomerRef:     entity.CustomerID,
		SubscriptionRef: entity.ID,
		OccurredAt:      time.Now().UTC(),
	}

	if plan, ok := a.plans[entity.PlanID]; ok {
		ev.PlanID = plan
	} else {
		ev.PlanID = asString(notes["plan_id"])
	}

	return ev, nil
}
