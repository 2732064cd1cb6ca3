package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/upgrade-checkout/internal/collector"
	"github.com/akylbek/payment-system/upgrade-checkout/internal/models"
	"github.com/akylbek/payment-system/upgrade-checkout/internal/selector"
	"github.com/akylbek/payment-system/upgrade-checkout/internal/service"
	"github.com/akylbek/payment-system/upgrade-checkout/internal/telemetry"
)

type CheckoutHandler struct {
	registry *service.Registry
}

func NewCheckoutHandler(registry *service.Registry) *CheckoutHandler {
	return &CheckoutHandler{registry: registry}
}

type checkoutResponse struct {
	models.CheckoutSnapshot
	Fields []string `json:"fields,omitempty"`
}

type selectMethodRequest struct {
	Method string `json:"method" binding:"required"`
}

type setFieldRequest struct {
	Field string `json:"field" binding:"required"`
	Value string `json:"value"`
}

func (h *CheckoutHandler) ListMethods(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"methods": selector.Options()})
}

func (h *CheckoutHandler) Open(c *gin.Context) {
	userID := c.Param("user_id")

	var plan models.PlanDescriptor
	if err := c.ShouldBindJSON(&plan); err != nil {
		telemetry.Logger.Error("Error decoding plan", zap.String("user_id", userID), zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	h.registry.Open(userID, plan)
	checkout, _ := h.registry.Get(userID)
	c.JSON(http.StatusOK, respond(checkout))
}

func (h *CheckoutHandler) Get(c *gin.Context) {
	checkout, ok := h.checkout(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, respond(checkout))
}

func (h *CheckoutHandler) SelectMethod(c *gin.Context) {
	checkout, ok := h.checkout(c)
	if !ok {
		return
	}

	var req selectMethodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	method, err := selector.ParseMethod(req.Method)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := checkout.Selector.Choose(method); err != nil {
		writeError(c, checkout, err)
		return
	}
	c.JSON(http.StatusOK, respond(checkout))
}

// SetField stores one input and returns its formatted value.
func (h *CheckoutHandler) SetField(c *gin.Context) {
	checkout, ok := h.checkout(c)
	if !ok {
		return
	}

	var req setFieldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	col, ok := activeCollector(checkout)
	if !ok {
		writeError(c, checkout, service.ErrInvalidTransition)
		return
	}
	formatted, err := col.SetField(req.Field, req.Value)
	if err != nil {
		writeError(c, checkout, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"field": req.Field, "value": formatted})
}

// Submit goes through the collector so required fields are enforced.
func (h *CheckoutHandler) Submit(c *gin.Context) {
	checkout, ok := h.checkout(c)
	if !ok {
		return
	}

	col, ok := activeCollector(checkout)
	if !ok {
		writeError(c, checkout, service.ErrInvalidTransition)
		return
	}
	if err := col.Submit(); err != nil {
		writeError(c, checkout, err)
		return
	}
	// A back or close can land between fetching the collector and its signal.
	if snap := checkout.Orchestrator.Snapshot(); snap.Stage != models.StageProcessing {
		writeError(c, checkout, service.ErrInvalidTransition)
		return
	}
	c.JSON(http.StatusOK, respond(checkout))
}

func (h *CheckoutHandler) GoBack(c *gin.Context) {
	checkout, ok := h.checkout(c)
	if !ok {
		return
	}
	if err := checkout.Orchestrator.GoBack(); err != nil {
		writeError(c, checkout, err)
		return
	}
	checkout.Selector.Clear()
	c.JSON(http.StatusOK, respond(checkout))
}

func (h *CheckoutHandler) Close(c *gin.Context) {
	checkout, ok := h.checkout(c)
	if !ok {
		return
	}
	checkout.Orchestrator.Close()
	c.JSON(http.StatusOK, respond(checkout))
}

func (h *CheckoutHandler) checkout(c *gin.Context) (*service.Checkout, bool) {
	userID := c.Param("user_id")
	checkout, ok := h.registry.Get(userID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Checkout not found"})
		return nil, false
	}
	return checkout, true
}

// activeCollector returns the collector of an open, collecting checkout.
func activeCollector(checkout *service.Checkout) (collector.Collector, bool) {
	if !checkout.Orchestrator.IsOpen() {
		return nil, false
	}
	return checkout.Orchestrator.Collector()
}

func respond(checkout *service.Checkout) checkoutResponse {
	resp := checkoutResponse{CheckoutSnapshot: checkout.Orchestrator.Snapshot()}
	if col, ok := activeCollector(checkout); ok {
		resp.Fields = col.Fields()
	}
	return resp
}

func writeError(c *gin.Context, checkout *service.Checkout, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrInvalidTransition),
		errors.Is(err, collector.ErrCollectorDiscarded):
		status = http.StatusConflict
	case errors.Is(err, collector.ErrFieldRequired):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, collector.ErrUnknownField),
		errors.Is(err, collector.ErrUnknownMethod),
		errors.Is(err, selector.ErrUnknownMethod),
		errors.Is(err, service.ErrUnknownMethod):
		status = http.StatusBadRequest
	default:
		telemetry.Logger.Error("Checkout operation failed", zap.Error(err))
	}
	c.JSON(status, gin.H{
		"error":    err.Error(),
		"checkout": checkout.Orchestrator.Snapshot(),
	})
}
