package api

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/pagecraft/subsync/internal/engine"
	"github.com/pagecraft/subsync/internal/observe"
	"github.com/pagecraft/subsync/internal/provider"
	"github.com/pagecraft/subsync/internal/signature"
	"github.com/pagecraft/subsync/internal/store"
)

// WebhookHandler is the per-provider ingestion entry point. Each request
// runs the full pipeline — verify, normalize, classify, reconcile — and
// terminates with exactly one acknowledgement so provider-side retry
// infrastructure can do its job. This service never retries internally.
type WebhookHandler struct {
	adapter    provider.Adapter
	secret     string
	reconciler *engine.Reconciler
	deduper    *store.Deduper
	observer   observe.Observer
	logger     *slog.Logger
}

func NewWebhookHandler(
	adapter provider.Adapter,
	secret string,
	reconciler *engine.Reconciler,
	deduper *store.Deduper,
	observer observe.Observer,
	logger *slog.Logger,
) *WebhookHandler {
	return &WebhookHandler{
		adapter:    adapter,
		secret:     secret,
		reconciler: reconciler,
		deduper:    deduper,
		observer:   observer,
		logger:     logger,
	}
}

type webhookAck struct {
	OK        bool   `json:"ok"`
	Duplicate bool   `json:"duplicate,omitempty"`
	Result    string `json:"result,omitempty"`
}

func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	prov := h.adapter.Provider()

	// Signature verification needs the complete, exact byte sequence.
	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.logger.Error("reading webhook body", "provider", prov, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to read request body")
		return
	}

	// Fail closed: an unverified body is never parsed or acted on.
	if !signature.Verify(body, r.Header.Get(h.adapter.SignatureHeader()), h.secret) {
		h.logger.Warn("webhook signature rejected", "provider", prov)
		respondError(w, http.StatusUnauthorized, "invalid signature")
		return
	}

	ev, err := h.adapter.Normalize(body)
	if err != nil {
		// Malformed payloads answer 500 so the provider redelivers; a
		// permanently broken payload keeps failing and stays in the logs.
		h.logger.Error("webhook payload rejected", "provider", prov, "error", err)
		respondError(w, http.StatusInternalServerError, "invalid payload")
		return
	}

	kind := engine.Classify(prov, ev.EventTag)
	eventID := h.deliveryID(r, body)

	if h.deduper.Seen(ctx, prov, eventID) {
		h.observer.WebhookProcessed(ctx, observe.Event{
			Provider: string(prov),
			EventTag: ev.EventTag,
			Kind:     string(kind),
			Outcome:  "duplicate",
			UserID:   ev.UserID,
		})
		respondJSON(w, http.StatusOK, webhookAck{OK: true, Duplicate: true})
		return
	}

	outcome, err := h.reconciler.Apply(ctx, ev)
	if err != nil {
		// Retryable: the provider's redelivery is the only retry mechanism.
		h.logger.Error("webhook reconciliation failed",
			"provider", prov, "event_tag", ev.EventTag, "error", err)
		h.observer.WebhookProcessed(ctx, observe.Event{
			Provider: string(prov),
			EventTag: ev.EventTag,
			Kind:     string(kind),
			Outcome:  "store_error",
			UserID:   ev.UserID,
		})
		respondError(w, http.StatusInternalServerError, "failed to update subscription")
		return
	}

	h.deduper.Mark(ctx, prov, eventID)
	h.observer.WebhookProcessed(ctx, observe.Event{
		Provider: string(prov),
		EventTag: ev.EventTag,
		Kind:     string(kind),
		Outcome:  string(outcome),
		UserID:   ev.UserID,
	})
	respondJSON(w, http.StatusOK, webhookAck{OK: true, Result: string(outcome)})
}

// deliveryID prefers the provider's delivery id header and falls back to a
// body digest, so byte-identical redeliveries dedupe even without one.
func (h *WebhookHandler) deliveryID(r *http.Request, body []byte) string {
	if id := strings.TrimSpace(r.Header.Get(h.adapter.EventIDHeader())); id != "" {
		return id
	}
	sum := sha256.Sum256(body)
	return "sha256:" + hex.EncodeToString(sum[:])
}
