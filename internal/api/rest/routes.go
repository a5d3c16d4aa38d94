package rest

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lumoapp/billing-service/internal/api/rest/handlers"
	"github.com/lumoapp/billing-service/internal/api/rest/middleware"
	"github.com/lumoapp/billing-service/internal/service"
	"github.com/lumoapp/billing-service/pkg/logger"
	"github.com/lumoapp/billing-service/pkg/mailer"
)

// RouterDeps зависимости маршрутизатора
type RouterDeps struct {
	BillingService service.BillingService
	Reconciler     service.Reconciler
	LedgerService  service.LedgerService
	ConsentService service.ConsentService
	MailSender     mailer.Sender
	JWT            *middleware.JWTMiddleware
	Registry       *prometheus.Registry
	BaseURL        string
	HealthChecks   map[string]func(ctx context.Context) error
	Log            *logger.Logger
}

// SetupRouter настраивает маршрутизатор Gin с маршрутами и middleware
func SetupRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()

	r.Use(middleware.LoggerMiddleware(deps.Log))
	r.Use(gin.Recovery())

	// Endpoint для проверки работоспособности сервиса
	r.GET("/health", handlers.HealthCheck)
	r.GET("/ready", handlers.NewReadinessHandler(deps.HealthChecks).Ready)

	// Prometheus метрики
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{})))

	subscriptionHandler := handlers.NewSubscriptionHandler(deps.BillingService, deps.Log)
	webhookHandler := handlers.NewWebhookHandler(deps.Reconciler, deps.Log)
	consentHandler := handlers.NewConsentHandler(deps.ConsentService, deps.MailSender, deps.BaseURL, deps.Log)
	adminHandler := handlers.NewAdminHandler(deps.Reconciler, deps.LedgerService, deps.Log)

	v1 := r.Group("/api/v1")
	{
		// Подписки
		subscriptions := v1.Group("/subscriptions", deps.JWT.RequireAuth())
		{
			subscriptions.POST("", subscriptionHandler.CreateSubscription)
			subscriptions.GET("", subscriptionHandler.GetSubscriptions)
			subscriptions.GET("/:id", subscriptionHandler.GetSubscription)
			subscriptions.DELETE("/:id", subscriptionHandler.CancelSubscription)
		}

		// Промокоды
		v1.GET("/promotion-codes/:code", deps.JWT.RequireAuth(), subscriptionHandler.GetPromotionCode)

		// Родительское согласие: подтверждение по ссылке из письма без токена доступа
		consent := v1.Group("/consent")
		{
			consent.POST("", deps.JWT.RequireAuth(), consentHandler.RequestConsent)
			consent.GET("/:token/verify", consentHandler.VerifyConsent)
			consent.GET("/:token/status", consentHandler.ConsentStatus)
		}

		// Административные операции
		admin := v1.Group("/admin", deps.JWT.RequireAuth(middleware.ScopeAdmin))
		{
			admin.POST("/subscriptions/:stripeSubscriptionId/resync", adminHandler.ResyncSubscription)
			admin.POST("/users/:userId/anonymize", adminHandler.AnonymizeUserRecords)
			admin.POST("/ledger/sweep", adminHandler.SweepLedger)
		}
	}

	// Вебхуки на корневом уровне роутера
	webhooks := r.Group("/webhooks")
	{
		webhooks.POST("/stripe", webhookHandler.HandleStripeWebhook)
	}

	return r
}
