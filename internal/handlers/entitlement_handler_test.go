package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akylbek/payment-system/upgrade-checkout/internal/models"
)

type entitlementReaderFunc func(ctx context.Context, userID string) (*models.Entitlement, error)

func (f entitlementReaderFunc) Get(ctx context.Context, userID string) (*models.Entitlement, error) {
	return f(ctx, userID)
}

func serveEntitlement(t *testing.T, reader EntitlementReader, userID string) (int, map[string]any) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/entitlements/:user_id", NewEntitlementHandler(reader).GetEntitlement)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/entitlements/"+userID, nil))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec.Code, body
}

func TestGetEntitlementFree(t *testing.T) {
	code, body := serveEntitlement(t, entitlementReaderFunc(func(_ context.Context, userID string) (*models.Entitlement, error) {
		return &models.Entitlement{UserID: userID, Tier: models.TierFree}, nil
	}), "u1")

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, map[string]any{"user_id": "u1", "tier": "FREE"}, body)
}

func TestGetEntitlementPremium(t *testing.T) {
	upgraded := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	code, body := serveEntitlement(t, entitlementReaderFunc(func(_ context.Context, userID string) (*models.Entitlement, error) {
		return &models.Entitlement{
			UserID:     userID,
			Tier:       models.TierPremium,
			PlanName:   "Premium",
			PlanPrice:  "$4.99/mo",
			UpgradedAt: upgraded,
		}, nil
	}), "u2")

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "PREMIUM", body["tier"])
	assert.Equal(t, "Premium", body["plan"])
	assert.Equal(t, "$4.99/mo", body["price"])
	assert.Equal(t, "2024-03-01T12:00:00Z", body["upgraded_at"])
	assert.NotContains(t, body, "updated_at")
}

func TestGetEntitlementError(t *testing.T) {
	code, body := serveEntitlement(t, entitlementReaderFunc(func(context.Context, string) (*models.Entitlement, error) {
		return nil, errors.New("db down")
	}), "u3")

	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, "Failed to fetch entitlement", body["error"])
}
