package repository

import (
	"context"
	"database/sql"

	"github.com/akylbek/payment-system/upgrade-checkout/internal/models"
)

type EntitlementRepository struct {
	db *sql.DB
}

func NewEntitlementRepository(db *sql.DB) *EntitlementRepository {
	return &EntitlementRepository{db: db}
}

func (r *EntitlementRepository) InitDB() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS user_entitlements (
			user_id VARCHAR(255) PRIMARY KEY,
			tier VARCHAR(50) NOT NULL,
			plan_name VARCHAR(255),
			plan_price VARCHAR(50),
			upgraded_at TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_user_entitlements_tier ON user_entitlements(tier)`,
	}

	for _, query := range queries {
		if _, err := r.db.Exec(query); err != nil {
			return err
		}
	}

	return nil
}

// UpgradeTier records the tier bought with plan. Repeating the same upgrade
// leaves the original upgraded_at in place.
func (r *EntitlementRepository) UpgradeTier(ctx context.Context, userID string, tier models.Tier, plan models.PlanDescriptor) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO user_entitlements (user_id, tier, plan_name, plan_price, upgraded_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		ON CONFLICT (user_id) DO UPDATE
		SET tier = EXCLUDED.tier,
			plan_name = EXCLUDED.plan_name,
			plan_price = EXCLUDED.plan_price,
			upgraded_at = CASE
				WHEN user_entitlements.tier = EXCLUDED.tier THEN user_entitlements.upgraded_at
				ELSE EXCLUDED.upgraded_at
			END,
			updated_at = NOW()
	`, userID, tier, plan.Name, plan.Price)
	return err
}

func (r *EntitlementRepository) GetByUserID(ctx context.Context, userID string) (*models.Entitlement, error) {
	var (
		info       models.Entitlement
		planName   sql.NullString
		planPrice  sql.NullString
		upgradedAt sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT user_id, tier, plan_name, plan_price, upgraded_at, updated_at
		FROM user_entitlements WHERE user_id = $1
	`, userID).Scan(&info.UserID, &info.Tier, &planName, &planPrice, &upgradedAt, &info.UpdatedAt)
	if err != nil {
		return nil, err
	}
	info.PlanName = planName.String
	info.PlanPrice = planPrice.String
	info.UpgradedAt = upgradedAt.Time
	return &info, nil
}
