package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/akylbek/payment-system/upgrade-checkout/internal/models"
)

// --- Mock Implementations ---

type MockEntitlementRepository struct {
	mock.Mock
}

func (m *MockEntitlementRepository) UpgradeTier(ctx context.Context, userID string, tier models.Tier, plan models.PlanDescriptor) error {
	args := m.Called(ctx, userID, tier, plan)
	return args.Error(0)
}

func (m *MockEntitlementRepository) GetByUserID(ctx context.Context, userID string) (*models.Entitlement, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Entitlement), args.Error(1)
}

type MockUpgradePublisher struct {
	mock.Mock
}

func (m *MockUpgradePublisher) PublishUpgrade(ctx context.Context, event models.UpgradeEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func TestUpgradeStoresTierAndAnnounces(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr)))
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	repo := new(MockEntitlementRepository)
	pub := new(MockUpgradePublisher)
	repo.On("UpgradeTier", mock.Anything, "user-1", models.TierPremium, premium).Return(nil)
	pub.On("PublishUpgrade", mock.Anything, mock.MatchedBy(func(evt models.UpgradeEvent) bool {
		return evt.UserID == "user-1" && evt.SessionID == "s-1" && evt.Plan == "Premium" && evt.Tier == models.TierPremium
	})).Return(nil)

	svc := NewEntitlementService(repo, pub, nil)
	require.NoError(t, svc.Upgrade(context.Background(), "user-1", "s-1", premium))

	repo.AssertExpectations(t)
	pub.AssertExpectations(t)

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "EntitlementService.Upgrade", spans[0].Name())
}

func TestUpgradeRepositoryFailure(t *testing.T) {
	repo := new(MockEntitlementRepository)
	pub := new(MockUpgradePublisher)
	boom := errors.New("connection refused")
	repo.On("UpgradeTier", mock.Anything, "user-1", models.TierPremium, premium).Return(boom)

	svc := NewEntitlementService(repo, pub, nil)
	err := svc.Upgrade(context.Background(), "user-1", "s-1", premium)

	assert.ErrorIs(t, err, boom)
	pub.AssertNotCalled(t, "PublishUpgrade", mock.Anything, mock.Anything)
}

func TestUpgradeSurvivesAnnouncementFailure(t *testing.T) {
	repo := new(MockEntitlementRepository)
	pub := new(MockUpgradePublisher)
	repo.On("UpgradeTier", mock.Anything, "user-1", models.TierPremium, premium).Return(nil)
	pub.On("PublishUpgrade", mock.Anything, mock.Anything).Return(errors.New("nats: no responders"))

	svc := NewEntitlementService(repo, pub, nil)
	assert.NoError(t, svc.Upgrade(context.Background(), "user-1", "s-1", premium))
}

func TestGetDefaultsToFreeTier(t *testing.T) {
	repo := new(MockEntitlementRepository)
	repo.On("GetByUserID", mock.Anything, "new-user").Return(nil, sql.ErrNoRows)
	repo.On("GetByUserID", mock.Anything, "paid-user").Return(&models.Entitlement{
		UserID:   "paid-user",
		Tier:     models.TierPremium,
		PlanName: "Premium",
	}, nil)

	svc := NewEntitlementService(repo, nil, nil)

	free, err := svc.Get(context.Background(), "new-user")
	require.NoError(t, err)
	assert.Equal(t, models.TierFree, free.Tier)

	paid, err := svc.Get(context.Background(), "paid-user")
	require.NoError(t, err)
	assert.Equal(t, models.TierPremium, paid.Tier)
	assert.Equal(t, "Premium", paid.PlanName)
}
