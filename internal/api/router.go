package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/akylbek/payment-system/upgrade-checkout/internal/handlers"
	"github.com/akylbek/payment-system/upgrade-checkout/internal/service"
	"github.com/akylbek/payment-system/upgrade-checkout/internal/telemetry"
)

func NewRouter(registry *service.Registry, entitlements handlers.EntitlementReader) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(telemetry.TracingMiddleware())

	// Prometheus metrics
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "upgrade-checkout"})
	})

	// Checkout routes
	checkoutHandler := handlers.NewCheckoutHandler(registry)
	r.GET("/methods", checkoutHandler.ListMethods)
	checkouts := r.Group("/checkouts/:user_id")
	{
		checkouts.GET("", checkoutHandler.Get)
		checkouts.POST("/open", checkoutHandler.Open)
		checkouts.POST("/method", checkoutHandler.SelectMethod)
		checkouts.POST("/fields", checkoutHandler.SetField)
		checkouts.POST("/submit", checkoutHandler.Submit)
		checkouts.POST("/back", checkoutHandler.GoBack)
		checkouts.POST("/close", checkoutHandler.Close)
	}

	// Entitlement routes
	entitlementHandler := handlers.NewEntitlementHandler(entitlements)
	r.GET("/entitlements/:user_id", entitlementHandler.GetEntitlement)

	return r
}
