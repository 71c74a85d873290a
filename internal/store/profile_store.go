package store

import (
	"context"
	"fmt"

	"github.com/pagecraft/subsync/internal/domain"
)

// UpsertSubscription writes the subscription fields for one user in a
// single atomic statement. Nil linkage refs keep whatever the row already
// holds, so a downgrade preserves provider correlation. Racing writes for
// the same user are serialized by the database; last commit wins.
func (s *PostgresStore) UpsertSubscription(ctx context.Context, up domain.SubscriptionUpsert) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO user_profiles (user_id, plan, plan_updated_at, provider_customer_ref, provider_subscription_ref)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id) DO UPDATE SET
			plan = EXCLUDED.plan,
			plan_updated_at = EXCLUDED.plan_updated_at,
			provider_customer_ref = COALESCE(EXCLUDED.provider_customer_ref, user_profiles.provider_customer_ref),
			provider_subscription_ref = COALESCE(EXCLUDED.provider_subscription_ref, user_profiles.provider_subscription_ref)
	`, up.UserID, up.Plan, up.PlanUpdatedAt, up.ProviderCustomerRef, up.ProviderSubscriptionRef)
	if err != nil {
		return fmt.Errorf("upserting user profile: %w", err)
	}
	return nil
}
