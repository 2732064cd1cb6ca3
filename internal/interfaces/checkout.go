package interfaces

import (
	"context"

	"github.com/akylbek/payment-system/upgrade-checkout/internal/models"
)

// CheckoutHost is the application that opens checkouts and reacts to their success.
type CheckoutHost interface {
	OnUpgradeSuccess()
}

// CheckoutHostFunc adapts a plain function to CheckoutHost.
type CheckoutHostFunc func()

func (f CheckoutHostFunc) OnUpgradeSuccess() { f() }

// SessionSuccessHost is a CheckoutHost that wants to know which session
// succeeded. The orchestrator calls OnSessionSuccess instead of
// OnUpgradeSuccess when the host implements it.
type SessionSuccessHost interface {
	CheckoutHost
	OnSessionSuccess(sessionID string, plan models.PlanDescriptor)
}

// SuccessGuard claims the single success notification of a session.
// Claim returns false when the session was already claimed.
type SuccessGuard interface {
	Claim(ctx context.Context, sessionID string) (bool, error)
}

// StageEventPublisher delivers stage transitions to downstream consumers.
type StageEventPublisher interface {
	PublishStageChanged(ctx context.Context, event models.StageChangedEvent) error
}

// UpgradePublisher announces completed entitlement upgrades.
type UpgradePublisher interface {
	PublishUpgrade(ctx context.Context, event models.UpgradeEvent) error
}
