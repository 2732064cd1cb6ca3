package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/facebookgo/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akylbek/payment-system/upgrade-checkout/internal/interfaces"
	"github.com/akylbek/payment-system/upgrade-checkout/internal/models"
)

type upgradeCall struct {
	userID    string
	sessionID string
	plan      models.PlanDescriptor
}

type recordingUpgrader struct {
	mu    sync.Mutex
	calls []upgradeCall
}

func (u *recordingUpgrader) Upgrade(_ context.Context, userID, sessionID string, plan models.PlanDescriptor) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.calls = append(u.calls, upgradeCall{userID: userID, sessionID: sessionID, plan: plan})
	return nil
}

func newTestRegistry(t *testing.T) (*Registry, *clock.Mock, *recordingUpgrader) {
	t.Helper()
	mock := clock.NewMock()
	upgrader := &recordingUpgrader{}
	r := NewRegistry(upgrader, func(host interfaces.CheckoutHost) *Orchestrator {
		return NewOrchestrator(host, WithClock(mock))
	}, nil)
	t.Cleanup(r.Shutdown)
	return r, mock, upgrader
}

func TestRegistryUpgradesUserOnSuccess(t *testing.T) {
	r, mock, upgrader := newTestRegistry(t)

	snap := r.Open("user-1", premium)
	assert.Equal(t, models.StageSelection, snap.Stage)
	assert.True(t, snap.Open)
	require.NotEmpty(t, snap.SessionID)

	c, ok := r.Get("user-1")
	require.True(t, ok)
	require.NoError(t, c.Selector.Choose(models.MethodRedirect))
	require.NoError(t, c.Orchestrator.Submit())
	mock.Add(4 * time.Second)

	require.Len(t, upgrader.calls, 1)
	assert.Equal(t, upgradeCall{userID: "user-1", sessionID: snap.SessionID, plan: premium}, upgrader.calls[0])
}

func TestRegistryReusesOrchestratorPerUser(t *testing.T) {
	r, _, _ := newTestRegistry(t)

	first := r.Open("user-1", premium)
	c1, _ := r.Get("user-1")
	second := r.Open("user-1", premium)
	c2, _ := r.Get("user-1")

	assert.Same(t, c1.Orchestrator, c2.Orchestrator)
	assert.NotEqual(t, first.SessionID, second.SessionID)

	r.Open("user-2", premium)
	c3, _ := r.Get("user-2")
	assert.NotSame(t, c1.Orchestrator, c3.Orchestrator)

	_, ok := r.Get("nobody")
	assert.False(t, ok)
}

func TestRegistryShutdownStopsPendingCheckouts(t *testing.T) {
	r, mock, upgrader := newTestRegistry(t)

	r.Open("user-1", premium)
	c, _ := r.Get("user-1")
	require.NoError(t, c.Selector.Choose(models.MethodCard))
	require.NoError(t, c.Orchestrator.Submit())

	r.Shutdown()
	mock.Add(time.Minute)

	assert.Empty(t, upgrader.calls)
	assert.Equal(t, models.StageSelection, c.Orchestrator.Stage())
}

// reopeningGuard opens a new session for the same user while the success
// claim is in flight.
type reopeningGuard struct {
	reopen func()
	once   sync.Once
}

func (g *reopeningGuard) Claim(context.Context, string) (bool, error) {
	g.once.Do(g.reopen)
	return true, nil
}

func TestRegistryUpgradesThePaidSessionWhenReopenedDuringSuccess(t *testing.T) {
	family := models.PlanDescriptor{Name: "Family", Price: "$14.99"}
	mock := clock.NewMock()
	upgrader := &recordingUpgrader{}
	guard := &reopeningGuard{}

	r := NewRegistry(upgrader, func(host interfaces.CheckoutHost) *Orchestrator {
		return NewOrchestrator(host, WithClock(mock), WithSuccessGuard(guard))
	}, nil)
	t.Cleanup(r.Shutdown)

	var reopened models.CheckoutSnapshot
	guard.reopen = func() { reopened = r.Open("user-1", family) }

	paid := r.Open("user-1", premium)
	c, _ := r.Get("user-1")
	require.NoError(t, c.Selector.Choose(models.MethodCard))
	require.NoError(t, c.Orchestrator.Submit())
	mock.Add(4 * time.Second)

	require.NotEmpty(t, reopened.SessionID)
	require.NotEqual(t, paid.SessionID, reopened.SessionID)
	require.Len(t, upgrader.calls, 1)
	assert.Equal(t, upgradeCall{userID: "user-1", sessionID: paid.SessionID, plan: premium}, upgrader.calls[0])
}

func TestRegistryPruneForgetsIdleCheckouts(t *testing.T) {
	r, mock, _ := newTestRegistry(t)

	r.Open("idle", premium)
	idle, _ := r.Get("idle")
	idle.Orchestrator.Close()

	r.Open("closing", premium)
	closing, _ := r.Get("closing")
	require.NoError(t, closing.Selector.Choose(models.MethodBank))

	r.Open("active", premium)

	// Still waiting for the close reset.
	closing.Orchestrator.Close()
	mock.Add(100 * time.Millisecond)
	assert.Equal(t, 1, r.Prune())

	_, ok := r.Get("idle")
	assert.False(t, ok)
	_, ok = r.Get("closing")
	assert.True(t, ok)
	_, ok = r.Get("active")
	assert.True(t, ok)

	mock.Add(time.Second)
	assert.Equal(t, 1, r.Prune())
	_, ok = r.Get("closing")
	assert.False(t, ok)

	// A pruned user simply gets a fresh checkout.
	snap := r.Open("idle", premium)
	assert.True(t, snap.Open)
	fresh, ok := r.Get("idle")
	require.True(t, ok)
	assert.NotSame(t, idle, fresh)
}

func TestRegistryRunPrunerStopsWithContext(t *testing.T) {
	r, _, _ := newTestRegistry(t)
	r.Open("idle", premium)
	c, _ := r.Get("idle")
	c.Orchestrator.Close()
	r.Open("active", premium)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.RunPruner(ctx, clock.New(), 5*time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		_, ok := r.Get("idle")
		return !ok
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("pruner did not stop")
	}
	_, ok := r.Get("active")
	assert.True(t, ok)
}
