package routes

import (
	"net/http"

	"github.com/Dhoini/stream-access-service/internal/http/handlers"
	"github.com/Dhoini/stream-access-service/internal/middleware"
	"github.com/Dhoini/stream-access-service/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handlers обработчики и middleware, из которых собирается роутер
type Handlers struct {
	Access   *handlers.AccessHandler
	Checkout *handlers.CheckoutHandler
	Webhook  *handlers.WebhookHandler // nil, если секрет вебхука не задан
	Health   *handlers.HealthHandler
	Auth     *middleware.JWTMiddleware

	CheckoutRateLimit gin.HandlerFunc
	Metrics           prometheus.Gatherer
}

// SetupRoutes настраивает все маршруты API для Gin роутера
func SetupRoutes(router *gin.Engine, h Handlers, log *logger.Logger) {
	router.Use(middleware.RequestLogger(log))
	router.Use(gin.Recovery())

	router.GET("/health", h.Health.Health)
	if h.Metrics != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(h.Metrics, promhttp.HandlerOpts{})))
	}

	api := router.Group("/api/v1")

	if h.Webhook != nil {
		api.POST("/webhooks/stripe", h.Webhook.HandleStripeWebhook)
	} else {
		log.Warnw("Stripe webhook secret is not set, webhook route is disabled")
	}

	rateLimit := h.CheckoutRateLimit
	if rateLimit == nil {
		rateLimit = func(c *gin.Context) { c.Next() }
	}

	streams := api.Group("/streams/:stream_id")
	{
		streams.GET("/access", h.Auth.OptionalAuth(), h.Access.GetAccess)
		streams.POST("/checkout", h.Auth.RequireAuth(), rateLimit, h.Checkout.CreateCheckout)
		streams.GET("/access/confirm", h.Auth.OptionalAuth(), h.Checkout.ConfirmAccess)
	}

	me := api.Group("/me", h.Auth.RequireAuth())
	me.GET("/entitlements", h.Access.ListEntitlements)

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
	})

	log.Infow("API routes successfully configured")
}
