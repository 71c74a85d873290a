package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/pagecraft/subsync/internal/domain"
	"github.com/pagecraft/subsync/internal/engine"
	"github.com/pagecraft/subsync/internal/observe"
	"github.com/pagecraft/subsync/internal/provider"
	"github.com/pagecraft/subsync/internal/signature"
	"github.com/pagecraft/subsync/internal/store"
)

type fakeStore struct {
	mu       sync.Mutex
	records  map[string]domain.SubscriptionRecord
	upserts  int
	failWith error
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: make(map[string]domain.SubscriptionRecord)}
}

func (s *fakeStore) UpsertSubscription(_ context.Context, up domain.SubscriptionUpsert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return s.failWith
	}

	s.upserts++
	rec := s.records[up.UserID]
	rec.UserID = up.UserID
	rec.Plan = up.Plan
	rec.PlanUpdatedAt = up.PlanUpdatedAt
	if up.ProviderCustomerRef != nil {
		rec.ProviderCustomerRef = up.ProviderCustomerRef
	}
	if up.ProviderSubscriptionRef != nil {
		rec.ProviderSubscriptionRef = up.ProviderSubscriptionRef
	}
	s.records[up.UserID] = rec
	return nil
}

func (s *fakeStore) record(userID string) (domain.SubscriptionRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[userID]
	return rec, ok
}

func (s *fakeStore) upsertCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upserts
}

// recordingObserver captures emissions so ignored events are assertable.
type recordingObserver struct {
	mu     sync.Mutex
	events []observe.Event
}

func (o *recordingObserver) WebhookProcessed(_ context.Context, e observe.Event) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, e)
}

func (o *recordingObserver) last(t *testing.T) observe.Event {
	t.Helper()
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.events) == 0 {
		t.Fatal("expected at least one observed event")
	}
	return o.events[len(o.events)-1]
}

const (
	lemonSecret    = "ls-secret"
	razorpaySecret = "rzp-secret"
)

func setupServer(t *testing.T, st *fakeStore, obs *recordingObserver) *httptest.Server {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	router := NewRouter(RouterConfig{
		Reconciler: engine.NewReconciler(st, "free", logger),
		Deduper:    store.NewDeduper(client, time.Hour, logger),
		Observer:   obs,
		Adapters: []provider.Adapter{
			provider.NewLemonSqueezy(map[string]string{"Pro": "pro", "Starter": "starter"}),
			provider.NewRazorpay(map[string]string{"plan_pro_monthly": "pro"}),
		},
		Secrets: map[domain.Provider]string{
			domain.ProviderLemonSqueezy: lemonSecret,
			domain.ProviderRazorpay:     razorpaySecret,
		},
		Logger: logger,
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func postWebhook(t *testing.T, url, header, sig string, body []byte) (*http.Response, webhookAck) {
	t.Helper()

	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if sig != "" {
		req.Header.Set(header, sig)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("sending request: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })

	var ack webhookAck
	_ = json.NewDecoder(resp.Body).Decode(&ack)
	return resp, ack
}

var lemonActivationBody = []byte(`{
	"meta": {"event_name": "subscription_created", "custom_data": {"user_id": "u1"}},
	"data": {"id": "sub_7", "attributes": {"status": "active", "variant_name": "Pro", "customer_id": 42}}
}`)

func TestWebhook_LemonSqueezyActivation(t *testing.T) {
	st := newFakeStore()
	obs := &recordingObserver{}
	srv := setupServer(t, st, obs)

	sig := signature.Sign(lemonActivationBody, lemonSecret)
	resp, ack := postWebhook(t, srv.URL+"/webhooks/lemonsqueezy", "X-Signature", sig, lemonActivationBody)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if !ack.OK || ack.Result != string(engine.OutcomeActivated) {
		t.Errorf("ack = %+v", ack)
	}

	rec, ok := st.record("u1")
	if !ok {
		t.Fatal("record should exist")
	}
	if rec.Plan != "pro" {
		t.Errorf("plan = %q, want pro", rec.Plan)
	}
	if rec.ProviderCustomerRef == nil || *rec.ProviderCustomerRef != "42" {
		t.Errorf("customer ref = %v, want 42", rec.ProviderCustomerRef)
	}
	if rec.ProviderSubscriptionRef == nil || *rec.ProviderSubscriptionRef != "sub_7" {
		t.Errorf("subscription ref = %v, want sub_7", rec.ProviderSubscriptionRef)
	}
}

func TestWebhook_ReplayIsIdempotent(t *testing.T) {
	st := newFakeStore()
	obs := &recordingObserver{}
	srv := setupServer(t, st, obs)

	sig := signature.Sign(lemonActivationBody, lemonSecret)

	resp1, _ := postWebhook(t, srv.URL+"/webhooks/lemonsqueezy", "X-Signature", sig, lemonActivationBody)
	first, _ := st.record("u1")

	resp2, ack2 := postWebhook(t, srv.URL+"/webhooks/lemonsqueezy", "X-Signature", sig, lemonActivationBody)
	second, _ := st.record("u1")

	if resp1.StatusCode != http.StatusOK || resp2.StatusCode != http.StatusOK {
		t.Fatalf("both deliveries should succeed, got %d then %d", resp1.StatusCode, resp2.StatusCode)
	}
	if !ack2.Duplicate {
		t.Error("second identical delivery should be acknowledged as a duplicate")
	}
	if st.upsertCount() != 1 {
		t.Errorf("upserts = %d, want 1 (duplicate suppressed)", st.upsertCount())
	}
	if first != second {
		t.Errorf("record changed across replay: %+v vs %+v", first, second)
	}
	if e := obs.last(t); e.Outcome != "duplicate" {
		t.Errorf("observed outcome = %q, want duplicate", e.Outcome)
	}
}

func TestWebhook_ForgedSignatureRejected(t *testing.T) {
	st := newFakeStore()
	obs := &recordingObserver{}
	srv := setupServer(t, st, obs)

	forged := signature.Sign(lemonActivationBody, "wrong-secret")
	resp, _ := postWebhook(t, srv.URL+"/webhooks/lemonsqueezy", "X-Signature", forged, lemonActivationBody)

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
	if st.upsertCount() != 0 {
		t.Error("rejected request must not touch the store")
	}
	if len(obs.events) != 0 {
		t.Error("rejected request must not be processed at all")
	}
}

func TestWebhook_MissingSignatureRejected(t *testing.T) {
	st := newFakeStore()
	srv := setupServer(t, st, &recordingObserver{})

	resp, _ := postWebhook(t, srv.URL+"/webhooks/lemonsqueezy", "X-Signature", "", lemonActivationBody)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
}

func TestWebhook_MalformedPayloadIsServerError(t *testing.T) {
	st := newFakeStore()
	srv := setupServer(t, st, &recordingObserver{})

	body := []byte(`{"meta": broken`)
	sig := signature.Sign(body, lemonSecret)
	resp, _ := postWebhook(t, srv.URL+"/webhooks/lemonsqueezy", "X-Signature", sig, body)

	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500 so the provider redelivers", resp.StatusCode)
	}
	if st.upsertCount() != 0 {
		t.Error("malformed payload must not touch the store")
	}
}

func TestWebhook_UnrecognizedTagAcksSuccess(t *testing.T) {
	st := newFakeStore()
	obs := &recordingObserver{}
	srv := setupServer(t, st, obs)

	body := []byte(`{
		"meta": {"event_name": "order_refunded", "custom_data": {"user_id": "u1"}},
		"data": {"id": "ord_1", "attributes": {"status": "paid"}}
	}`)
	sig := signature.Sign(body, lemonSecret)
	resp, ack := postWebhook(t, srv.URL+"/webhooks/lemonsqueezy", "X-Signature", sig, body)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200 (no provider retry for ignored events)", resp.StatusCode)
	}
	if !ack.OK {
		t.Errorf("ack = %+v", ack)
	}
	if st.upsertCount() != 0 {
		t.Error("unrecognized events must not mutate the store")
	}
	if e := obs.last(t); e.Kind != string(domain.KindUnrecognized) {
		t.Errorf("observed kind = %q, want unrecognized", e.Kind)
	}
}

func TestWebhook_RazorpayCancellationPreservesLinkage(t *testing.T) {
	st := newFakeStore()
	obs := &recordingObserver{}
	srv := setupServer(t, st, obs)

	// Seed an active pro subscription via Lemon Squeezy.
	sig := signature.Sign(lemonActivationBody, lemonSecret)
	postWebhook(t, srv.URL+"/webhooks/lemonsqueezy", "X-Signature", sig, lemonActivationBody)

	cancel := []byte(`{
		"event": "subscription.cancelled",
		"payload": {"subscription": {"entity": {"notes": {"user_id": "u1"}}}}
	}`)
	cancelSig := signature.Sign(cancel, razorpaySecret)
	resp, ack := postWebhook(t, srv.URL+"/webhooks/razorpay", "X-Razorpay-Signature", cancelSig, cancel)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if ack.Result != string(engine.OutcomeDowngraded) {
		t.Errorf("result = %q, want %s", ack.Result, engine.OutcomeDowngraded)
	}

	rec, _ := st.record("u1")
	if rec.Plan != "free" {
		t.Errorf("plan = %q, want free", rec.Plan)
	}
	if rec.ProviderCustomerRef == nil || *rec.ProviderCustomerRef != "42" {
		t.Error("cancellation should leave customer ref from the activation")
	}
	if rec.ProviderSubscriptionRef == nil || *rec.ProviderSubscriptionRef != "sub_7" {
		t.Error("cancellation should leave subscription ref from the activation")
	}
}

func TestWebhook_StoreFailureIsRetryable(t *testing.T) {
	st := newFakeStore()
	st.failWith = errors.New("connection refused")
	obs := &recordingObserver{}
	srv := setupServer(t, st, obs)

	sig := signature.Sign(lemonActivationBody, lemonSecret)
	resp, _ := postWebhook(t, srv.URL+"/webhooks/lemonsqueezy", "X-Signature", sig, lemonActivationBody)

	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500 so the provider redelivers", resp.StatusCode)
	}
	if e := obs.last(t); e.Outcome != "store_error" {
		t.Errorf("observed outcome = %q, want store_error", e.Outcome)
	}

	// A failed reconciliation must not be marked as seen: the provider's
	// redelivery should be processed, not suppressed as a duplicate.
	st.failWith = nil
	resp2, ack2 := postWebhook(t, srv.URL+"/webhooks/lemonsqueezy", "X-Signature", sig, lemonActivationBody)
	if resp2.StatusCode != http.StatusOK {
		t.Fatalf("redelivery status = %d, want 200", resp2.StatusCode)
	}
	if ack2.Duplicate {
		t.Error("redelivery after failure should be processed, not deduped")
	}
	if _, ok := st.record("u1"); !ok {
		t.Error("redelivery should apply the activation")
	}
}

func TestWebhook_EventWithoutUserIsBenignNoOp(t *testing.T) {
	st := newFakeStore()
	obs := &recordingObserver{}
	srv := setupServer(t, st, obs)

	body := []byte(`{
		"meta": {"event_name": "subscription_created"},
		"data": {"id": "sub_9", "attributes": {"status": "active", "variant_name": "Pro"}}
	}`)
	sig := signature.Sign(body, lemonSecret)
	resp, ack := postWebhook(t, srv.URL+"/webhooks/lemonsqueezy", "X-Signature", sig, body)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if ack.Result != string(engine.OutcomeSkippedNoUser) {
		t.Errorf("result = %q, want %s", ack.Result, engine.OutcomeSkippedNoUser)
	}
	if st.upsertCount() != 0 {
		t.Error("event without user id must not mutate the store")
	}
}
