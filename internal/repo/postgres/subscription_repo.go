package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pawmatch/backend/internal/domain/enums"
)

type SubscriptionRepo struct {
	pool *pgxpool.Pool
}

func NewSubscriptionRepo(pool *pgxpool.Pool) *SubscriptionRepo {
	return &SubscriptionRepo{pool: pool}
}

// GetTier returns the user's subscription tier; users without a
// subscription row are free tier.
func (r *SubscriptionRepo) GetTier(ctx context.Context, userID int64) (enums.Tier, error) {
	if userID <= 0 {
		return "", fmt.Errorf("invalid subscription lookup payload")
	}
	if r.pool == nil {
		return enums.TierFree, nil
	}

	var tier string
	err := r.pool.QueryRow(ctx, `
SELECT subscription_tier
FROM user_subscription_status
WHERE user_id = $1
LIMIT 1
`, userID).Scan(&tier)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return enums.TierFree, nil
		}
		return "", fmt.Errorf("get subscription tier: %w", err)
	}

	parsed := enums.Tier(strings.ToLower(strings.TrimSpace(tier)))
	if !parsed.Valid() {
		return enums.TierFree, nil
	}

	return parsed, nil
}
