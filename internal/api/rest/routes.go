package rest

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/stickerai/credits-service/internal/api/rest/handlers"
	"github.com/stickerai/credits-service/internal/api/rest/middleware"
	"github.com/stickerai/credits-service/internal/service"
	"github.com/stickerai/credits-service/pkg/logger"
)

// Services сервисы, обслуживаемые REST API
type Services struct {
	Accounts      service.AccountService
	Ledger        service.LedgerService
	Purchases     service.PurchaseService
	Subscriptions service.SubscriptionService
}

// SetupRouter настраивает маршрутизатор Gin с маршрутами и middleware
func SetupRouter(svc Services, registry *prometheus.Registry, log *logger.Logger) *gin.Engine {
	r := gin.New()

	r.Use(middleware.LoggerMiddleware(log))
	r.Use(gin.Recovery())

	// Endpoint для проверки работоспособности сервиса
	r.GET("/health", handlers.HealthCheck)

	// Prometheus метрики
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	accountHandler := handlers.NewAccountHandler(svc.Accounts, log)
	creditsHandler := handlers.NewCreditsHandler(svc.Ledger, log)
	purchaseHandler := handlers.NewPurchaseHandler(svc.Purchases, log)
	subscriptionHandler := handlers.NewSubscriptionHandler(svc.Subscriptions, log)

	v1 := r.Group("/api/v1")
	{
		// Каталог пакетов и планов
		catalogGroup := v1.Group("/catalog")
		{
			catalogGroup.GET("/packages", handlers.GetPackages)
			catalogGroup.GET("/plans", handlers.GetPlans)
		}

		// Аккаунты
		accounts := v1.Group("/accounts")
		{
			accounts.POST("", accountHandler.Register)
			accounts.GET("/:id", accountHandler.Get)
		}

		// Операции по пользователю
		users := v1.Group("/users/:id")
		{
			// Леджер
			credits := users.Group("/credits")
			{
				credits.POST("/validate", creditsHandler.Validate)
				credits.POST("/deduct", creditsHandler.Deduct)
				credits.POST("/add", creditsHandler.Add)
				credits.POST("/refund", creditsHandler.Refund)
			}
			users.GET("/transactions", creditsHandler.History)
			users.GET("/transactions/totals", creditsHandler.Totals)

			// Покупки
			purchases := users.Group("/purchases")
			{
				purchases.POST("", purchaseHandler.ProcessPurchase)
				purchases.POST("/refund", purchaseHandler.ProcessRefund)
				purchases.GET("", purchaseHandler.History)
			}

			// Подписки
			subscriptions := users.Group("/subscriptions")
			{
				subscriptions.POST("", subscriptionHandler.Create)
				subscriptions.POST("/cancel", subscriptionHandler.Cancel)
				subscriptions.POST("/renew", subscriptionHandler.Renew)
				subscriptions.GET("/active", subscriptionHandler.GetActive)
				subscriptions.GET("/benefits", subscriptionHandler.Benefits)
				subscriptions.GET("", subscriptionHandler.History)
			}
		}
	}

	return r
}
