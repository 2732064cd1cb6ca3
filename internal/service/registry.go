package service

import (
	"context"
	"sync"
	"time"

	"github.com/facebookgo/clock"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/upgrade-checkout/internal/interfaces"
	"github.com/akylbek/payment-system/upgrade-checkout/internal/models"
	"github.com/akylbek/payment-system/upgrade-checkout/internal/selector"
)

const upgradeTimeout = 10 * time.Second

// UpgradeHost is the CheckoutHost of one user. It upgrades the user's
// entitlement with the plan of the session that succeeded.
type UpgradeHost struct {
	userID   string
	upgrader interfaces.EntitlementUpgrader
	logger   *zap.Logger
}

func (h *UpgradeHost) OnSessionSuccess(sessionID string, plan models.PlanDescriptor) {
	ctx, cancel := context.WithTimeout(context.Background(), upgradeTimeout)
	defer cancel()

	if err := h.upgrader.Upgrade(ctx, h.userID, sessionID, plan); err != nil {
		h.logger.Error("Error upgrading entitlement",
			zap.String("user_id", h.userID),
			zap.String("session_id", sessionID),
			zap.Error(err),
		)
	}
}

// OnUpgradeSuccess carries no session, so there is nothing to upgrade.
func (h *UpgradeHost) OnUpgradeSuccess() {
	h.logger.Warn("Upgrade success without session, ignoring", zap.String("user_id", h.userID))
}

// Checkout bundles a user's orchestrator with its method selector.
type Checkout struct {
	Orchestrator *Orchestrator
	Selector     *selector.Selector

	// mu serialises Open and Prune for this checkout.
	mu      sync.Mutex
	removed bool
}

// OrchestratorFactory builds an orchestrator for host.
type OrchestratorFactory func(host interfaces.CheckoutHost) *Orchestrator

// Registry keeps one reusable checkout per user.
type Registry struct {
	upgrader interfaces.EntitlementUpgrader
	factory  OrchestratorFactory
	logger   *zap.Logger

	mu        sync.Mutex
	checkouts map[string]*Checkout
}

func NewRegistry(upgrader interfaces.EntitlementUpgrader, factory OrchestratorFactory, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		upgrader:  upgrader,
		factory:   factory,
		logger:    logger,
		checkouts: make(map[string]*Checkout),
	}
}

// Open starts a new checkout session for userID.
func (r *Registry) Open(userID string, plan models.PlanDescriptor) models.CheckoutSnapshot {
	for {
		c := r.getOrCreate(userID)
		c.mu.Lock()
		if c.removed {
			// Pruned between lookup and lock.
			c.mu.Unlock()
			continue
		}
		c.Selector.Clear()
		c.Orchestrator.OpenSession(uuid.NewString(), plan)
		snap := c.Orchestrator.Snapshot()
		c.mu.Unlock()
		return snap
	}
}

// Prune tears down and forgets checkouts that are closed and back at
// Selection. It returns how many were removed.
func (r *Registry) Prune() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for userID, c := range r.checkouts {
		c.mu.Lock()
		snap := c.Orchestrator.Snapshot()
		if !snap.Open && snap.Stage == models.StageSelection {
			c.removed = true
			c.Orchestrator.Teardown()
			delete(r.checkouts, userID)
			removed++
		}
		c.mu.Unlock()
	}
	if removed > 0 {
		r.logger.Debug("Pruned idle checkouts", zap.Int("removed", removed), zap.Int("remaining", len(r.checkouts)))
	}
	return removed
}

// RunPruner calls Prune every interval until ctx is done.
func (r *Registry) RunPruner(ctx context.Context, clk clock.Clock, every time.Duration) {
	ticker := clk.Ticker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Prune()
		}
	}
}

// Get returns the user's checkout if one was ever opened.
func (r *Registry) Get(userID string) (*Checkout, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.checkouts[userID]
	return c, ok
}

// Shutdown tears down every orchestrator.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.checkouts {
		c.Orchestrator.Teardown()
	}
	r.logger.Info("Checkout registry shut down", zap.Int("checkouts", len(r.checkouts)))
}

func (r *Registry) getOrCreate(userID string) *Checkout {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.checkouts[userID]; ok {
		return c
	}
	host := &UpgradeHost{userID: userID, upgrader: r.upgrader, logger: r.logger}
	orch := r.factory(host)
	c := &Checkout{
		Orchestrator: orch,
		Selector:     selector.New(orch.SelectMethod),
	}
	r.checkouts[userID] = c
	return c
}
