package interfaces

import (
	"context"

	"github.com/akylbek/payment-system/upgrade-checkout/internal/models"
)

// EntitlementRepository defines the contract for entitlement data access
type EntitlementRepository interface {
	UpgradeTier(ctx context.Context, userID string, tier models.Tier, plan models.PlanDescriptor) error
	GetByUserID(ctx context.Context, userID string) (*models.Entitlement, error)
}

// EntitlementUpgrader elevates a user's tier after a completed checkout.
type EntitlementUpgrader interface {
	Upgrade(ctx context.Context, userID, sessionID string, plan models.PlanDescriptor) error
}
