package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/upgrade-checkout/internal/interfaces"
	"github.com/akylbek/payment-system/upgrade-checkout/internal/models"
)

// EntitlementService elevates user tiers once a checkout succeeds.
type EntitlementService struct {
	repo      interfaces.EntitlementRepository
	publisher interfaces.UpgradePublisher
	logger    *zap.Logger
}

func NewEntitlementService(
	repo interfaces.EntitlementRepository,
	publisher interfaces.UpgradePublisher,
	logger *zap.Logger,
) *EntitlementService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EntitlementService{
		repo:      repo,
		publisher: publisher,
		logger:    logger,
	}
}

func (s *EntitlementService) Upgrade(ctx context.Context, userID, sessionID string, plan models.PlanDescriptor) error {
	ctx, span := otel.Tracer("upgrade-checkout").Start(ctx, "EntitlementService.Upgrade")
	defer span.End()
	span.SetAttributes(
		attribute.String("user_id", userID),
		attribute.String("session_id", sessionID),
		attribute.String("plan", plan.Name),
	)

	if err := s.repo.UpgradeTier(ctx, userID, models.TierPremium, plan); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "upgrade tier")
		return fmt.Errorf("upgrade tier for %s: %w", userID, err)
	}

	s.logger.Info("Entitlement upgraded",
		zap.String("user_id", userID),
		zap.String("session_id", sessionID),
		zap.String("plan", plan.Name),
	)

	if s.publisher == nil {
		return nil
	}
	// The tier is already stored; a lost announcement is not a failed upgrade.
	if err := s.publisher.PublishUpgrade(ctx, models.UpgradeEvent{
		UserID:    userID,
		SessionID: sessionID,
		Plan:      plan.Name,
		Price:     plan.Price,
		Tier:      models.TierPremium,
		Timestamp: time.Now(),
	}); err != nil {
		span.RecordError(err)
		s.logger.Warn("Failed to announce upgrade",
			zap.String("user_id", userID),
			zap.Error(err),
		)
	}
	return nil
}

// Get returns the user's entitlement; users never upgraded are on the free tier.
func (s *EntitlementService) Get(ctx context.Context, userID string) (*models.Entitlement, error) {
	info, err := s.repo.GetByUserID(ctx, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return &models.Entitlement{UserID: userID, Tier: models.TierFree}, nil
	}
	if err != nil {
		return nil, err
	}
	return info, nil
}
