package provider

import (
	"encoding/json"
	"errors"

	"github.com/pagecraft/subsync/internal/domain"
)

// ErrMalformedPayload marks a webhook body that is not valid JSON. Missing
// fields inside valid JSON never produce this error; adapters propagate
// absence as empty values on the canonical event.
var ErrMalformedPayload = errors.New("malformed webhook payload")

// Adapter normalizes one provider's webhook payloads into canonical events.
type Adapter interface {
	Provider() domain.Provider

	// SignatureHeader is the request header carrying the HMAC signature.
	SignatureHeader() string

	// EventIDHeader is the request header carrying the provider's delivery
	// id, used for duplicate suppression. May be absent on a request.
	EventIDHeader() string

	// Normalize parses a raw body into a canonical event. It fails only on
	// syntactically invalid JSON.
	Normalize(body []byte) (domain.CanonicalEvent, error)
}

// asString coerces loosely typed JSON values (providers mix strings and
// numbers for ids) into their string form. Unknown shapes become "".
func asString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	default:
		return ""
	}
}

// asObject returns v as a JSON object, tolerating the empty-array shape
// some providers use for "no metadata".
func asObject(v any) map[string]any {
	if m, ok := v.(map[string]any); ok {
		return m
	}
	return nil
}
