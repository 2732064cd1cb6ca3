package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/upgrade-checkout/internal/models"
	"github.com/akylbek/payment-system/upgrade-checkout/internal/telemetry"
)

// EntitlementReader resolves a user's current tier.
type EntitlementReader interface {
	Get(ctx context.Context, userID string) (*models.Entitlement, error)
}

type EntitlementHandler struct {
	entitlements EntitlementReader
}

func NewEntitlementHandler(entitlements EntitlementReader) *EntitlementHandler {
	return &EntitlementHandler{entitlements: entitlements}
}

func (h *EntitlementHandler) GetEntitlement(c *gin.Context) {
	userID := c.Param("user_id")

	info, err := h.entitlements.Get(c.Request.Context(), userID)
	if err != nil {
		telemetry.Logger.Error("Error fetching entitlement",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch entitlement"})
		return
	}

	resp := gin.H{
		"user_id": userID,
		"tier":    info.Tier,
	}
	if info.PlanName != "" {
		resp["plan"] = info.PlanName
		resp["price"] = info.PlanPrice
	}
	if !info.UpgradedAt.IsZero() {
		resp["upgraded_at"] = info.UpgradedAt
	}
	if !info.UpdatedAt.IsZero() {
		resp["updated_at"] = info.UpdatedAt
	}
	c.JSON(http.StatusOK, resp)
}
