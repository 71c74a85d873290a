package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Config holds all configuration for the application. Webhook secrets are
// optional: an empty secret disables signature verification for that
// provider (deliberate bypass for environments without secrets configured).
type Config struct {
	Port        string
	DatabaseURL string
	RedisURL    string

	LemonSqueezySecret string
	RazorpaySecret     string

	// Plan mapping tables: provider plan reference -> internal plan id.
	LemonSqueezyPlans map[string]string
	RazorpayPlans     map[string]string

	FreePlanID      string
	BuildBackendURL string
	DedupeTTL       time.Duration
}

var defaultLemonSqueezyPlans = map[string]string{
	"Starter":  "starter",
	"Pro":      "pro",
	"Business": "business",
}

var defaultRazorpayPlans = map[string]string{
	"plan_starter_monthly":  "starter",
	"plan_pro_monthly":      "pro",
	"plan_business_monthly": "business",
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:               getEnv("PORT", "8080"),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		RedisURL:           getEnv("REDIS_URL", ""),
		LemonSqueezySecret: getEnv("LEMONSQUEEZY_WEBHOOK_SECRET", ""),
		RazorpaySecret:     getEnv("RAZORPAY_WEBHOOK_SECRET", ""),
		FreePlanID:         getEnv("FREE_PLAN_ID", "free"),
		BuildBackendURL:    getEnv("BUILD_BACKEND_URL", ""),
		DedupeTTL:          getEnvDuration("DEDUPE_TTL", 24*time.Hour),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("REDIS_URL is required")
	}

	var err error
	cfg.LemonSqueezyPlans, err = getEnvPlanMap("LEMONSQUEEZY_PLAN_MAP", defaultLemonSqueezyPlans)
	if err != nil {
		return nil, err
	}
	cfg.RazorpayPlans, err = getEnvPlanMap("RAZORPAY_PLAN_MAP", defaultRazorpayPlans)
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		d, err := time.ParseDuration(val)
		if err == nil {
			return d
		}
	}
	return fallback
}

// getEnvPlanMap parses "ProviderRef=plan,OtherRef=other" overrides for the
// static plan mapping tables.
func getEnvPlanMap(key string, fallback map[string]string) (map[string]string, error) {
	val := os.Getenv(key)
	if val == "" {
		return fallback, nil
	}

	plans := make(map[string]string)
	for _, pair := range strings.Split(val, ",") {
		ref, plan, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok || ref == "" || plan == "" {
			return nil, fmt.Errorf("%s: invalid plan mapping %q", key, pair)
		}
		plans[ref] = plan
	}
	return plans, nil
}
