// sendhook posts a signed sample webhook to a running server, for manual
// testing without a provider sandbox.
//
//	go run ./cmd/sendhook -provider lemonsqueezy -secret whsec_dev -user u1 -plan Pro
package main

import (
	"bytes"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/pagecraft/subsync/internal/signature"
)

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "server base URL")
	providerName := flag.String("provider", "lemonsqueezy", "lemonsqueezy or razorpay")
	event := flag.String("event", "", "provider event tag (defaults per provider)")
	secret := flag.String("secret", "", "webhook shared secret (empty = unsigned)")
	user := flag.String("user", "u1", "user id carried in checkout metadata")
	plan := flag.String("plan", "Pro", "variant name (lemonsqueezy) or plan id (razorpay)")
	flag.Parse()

	var body []byte
	var header string
	switch *providerName {
	case "lemonsqueezy":
		if *event == "" {
			*event = "subscription_created"
		}
		header = "X-Signature"
		body = []byte(fmt.Sprintf(`{
			"meta": {"event_name": %q, "custom_data": {"user_id": %q}},
			"data": {"id": "sub_dev_1", "attributes": {"status": "active", "variant_name": %q, "customer_id": 42}}
		}`, *event, *user, *plan))
	case "razorpay":
		if *event == "" {
			*event = "subscription.activated"
		}
		header = "X-Razorpay-Signature"
		body = []byte(fmt.Sprintf(`{
			"event": %q,
			"payload": {"subscription": {"entity": {"id": "sub_dev_1", "plan_id": %q, "status": "active", "notes": {"user_id": %q}}}}
		}`, *event, *plan, *user))
	default:
		fmt.Fprintf(os.Stderr, "unknown provider %q\n", *providerName)
		os.Exit(1)
	}

	req, err := http.NewRequest(http.MethodPost, *baseURL+"/webhooks/"+*providerName, bytes.NewReader(body))
	if err != nil {
		fmt.Fprintf(os.Stderr, "building request: %v\n", err)
		os.Exit(1)
	}
	req.Header.Set("Content-Type", "application/json")
	if *secret != "" {
		req.Header.Set(header, signature.Sign(body, *secret))
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sending webhook: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	fmt.Printf("%s\n%s\n", resp.Status, respBody)
}
