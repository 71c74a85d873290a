package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Sign computes the hex-encoded HMAC-SHA256 of body under secret. Providers
// send this value in their signature header; the dev sender uses it too.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether sigHeader matches the HMAC-SHA256 of the exact raw
// body under secret. Comparison is constant-time.
//
// An empty secret disables verification and reports success for any
// signature value. This is a deliberate operational bypass for deployments
// without a shared secret configured, not an oversight; callers must treat
// a false return as fail-closed and stop processing the request.
func Verify(body []byte, sigHeader, secret string) bool {
	if strings.TrimSpace(secret) == "" {
		return true
	}

	sig := strings.TrimSpace(sigHeader)
	if sig == "" {
		return false
	}

	decoded, err := hex.DecodeString(strings.ToLower(sig))
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(mac.Sum(nil), decoded)
}
