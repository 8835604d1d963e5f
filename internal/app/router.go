package app

import (
	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"

	"splitpay/internal/handler"
	"splitpay/internal/middleware"
)

// RouterDeps contains all dependencies needed for the router.
type RouterDeps struct {
	SplitPaymentHandler *handler.SplitPaymentHandler
	IdempotencyStore    middleware.IdempotencyStore
	CORSOrigins         []string
	NewRelicApp         *newrelic.Application
}

// NewRouter creates a new Gin router with all routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()

	// Global middleware.
	router.Use(gin.Recovery())
	router.Use(gin.Logger())
	router.Use(middleware.CORSMiddleware(deps.CORSOrigins))

	// Add New Relic middleware if enabled.
	if deps.NewRelicApp != nil {
		router.Use(nrgin.Middleware(deps.NewRelicApp))
	}

	router.Use(middleware.IdempotencyMiddleware(deps.IdempotencyStore))

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// API v1 routes.
	v1 := router.Group("/v1")
	{
		splits := v1.Group("/split-payments")
		{
			splits.POST("", deps.SplitPaymentHandler.CreateSplitPayment)
			splits.GET("/reconciliation", deps.SplitPaymentHandler.ListNeedingVoid)
			splits.GET("/:id", deps.SplitPaymentHandler.GetSplitPayment)
			splits.DELETE("/:id", deps.SplitPaymentHandler.DeleteSplitPayment)
		}
	}

	return router
}
