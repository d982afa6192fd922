// Package routes defines the API routing configuration.
// It sets up all HTTP routes and their corresponding handlers,
// including middleware and authentication requirements.
package routes

import (
	"rede/internal/config"
	"rede/internal/handlers"
	"rede/internal/middleware"
	"rede/internal/models"
	"rede/internal/repositories"
	"rede/internal/services/auth"
	"rede/internal/services/balance"
	"rede/internal/services/commission"
	"rede/internal/services/order"
	"rede/internal/services/referral"
	"rede/internal/services/report"
	"rede/internal/services/settings"
	"rede/internal/services/user"

	"github.com/gofiber/fiber/v2"
)

// Services bundles the wired service layer so the worker entrypoints can
// share the exact instances the HTTP layer uses.
type Services struct {
	Order   order.Service
	Balance balance.Service
}

// SetupRoutes configures all application routes and returns the wired
// services for background workers. publisher may be nil when the engine
// runs without a broker.
func SetupRoutes(app *fiber.App, collector balance.MetricsCollector, publisher order.EventPublisher) *Services {
	// Repositories on the shared connection
	userRepo := repositories.NewUserRepository(repositories.DB)
	orderRepo := repositories.NewOrderRepository(repositories.DB)
	ledgerRepo := repositories.NewLedgerRepository(repositories.DB)
	settingsRepo := repositories.NewSettingsRepository(repositories.DB)
	reportRepo := repositories.NewReportRepository(repositories.DB)

	// Services in dependency order
	authService := auth.NewService(userRepo)
	userService := user.NewService(userRepo)
	settingsService := settings.NewService(settingsRepo, repositories.CacheService)
	referralService := referral.NewService(userRepo, referral.Config{})
	balanceService := balance.NewService(ledgerRepo, userRepo, settingsService, repositories.CacheService, collector)
	commissionService := commission.NewService(ledgerRepo, userRepo, referralService, balanceService, settingsService, commission.Config{
		ReferrerPolicy: commission.ReferrerPolicy(config.GetEnv("REFERRER_POLICY", string(commission.ReferrerReplaces))),
	})
	orderService := order.NewService(orderRepo, commissionService, balanceService, publisher)
	reportService := report.NewService(ledgerRepo, reportRepo, repositories.CacheService)

	// Handlers
	authHandler := handlers.NewAuthHandler(authService, userService)
	userHandler := handlers.NewUserHandler(userService, referralService)
	commissionHandler := handlers.NewCommissionHandler(reportService)
	balanceHandler := handlers.NewBalanceHandler(balanceService, ledgerRepo)
	adminHandler := handlers.NewAdminHandler(balanceService, reportService, settingsService, ledgerRepo)
	webhookHandler := handlers.NewWebhookHandler(orderService)

	authMiddleware := middleware.NewAuthMiddleware(authService)

	app.Get("/health", handlers.HealthCheck)
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message": "Rede commission engine API",
			"version": "1.0.0",
			"docs":    "/api",
		})
	})

	api := app.Group("/api")

	// Public endpoints
	api.Post("/register", authHandler.Register)
	api.Post("/login", authHandler.Login)

	// Storefront webhooks, shared-secret protected
	webhooks := api.Group("/webhooks", webhookHandler.VerifySecret)
	webhooks.Post("/orders/paid", webhookHandler.OrderPaid)
	webhooks.Post("/orders/cancelled", webhookHandler.OrderCancelled)

	// Authenticated user routes
	authenticated := api.Group("/", authMiddleware.Handler)
	authenticated.Post("/logout", authHandler.Logout)
	authenticated.Get("/profile", userHandler.GetProfile)
	authenticated.Put("/payout-details", userHandler.UpdatePayoutDetails)
	authenticated.Get("/network/downline", middleware.HasPermission(models.PermissionNetworkRead), userHandler.GetDownline)
	authenticated.Get("/network/upline", middleware.HasPermission(models.PermissionNetworkRead), userHandler.GetUpline)

	authenticated.Get("/balance", middleware.HasPermission(models.PermissionBalanceRead), balanceHandler.GetBalances)
	authenticated.Get("/commissions", middleware.HasPermission(models.PermissionCommissionRead), commissionHandler.ListMine)
	authenticated.Get("/commissions/summary", middleware.HasPermission(models.PermissionCommissionRead), commissionHandler.GetSummary)

	authenticated.Post("/withdrawals", middleware.HasPermission(models.PermissionWithdrawalWrite), balanceHandler.RequestWithdrawal)
	authenticated.Get("/withdrawals", middleware.HasPermission(models.PermissionWithdrawalRead), balanceHandler.ListMyWithdrawals)

	// Admin routes
	admin := authenticated.Group("/admin", middleware.AdminAuthMiddleware)
	admin.Get("/withdrawals", adminHandler.ListWithdrawals)
	admin.Get("/withdrawals/export", adminHandler.ExportWithdrawals)
	admin.Post("/withdrawals/:id/approve", adminHandler.ApproveWithdrawal)
	admin.Post("/withdrawals/:id/pay", adminHandler.PayWithdrawal)
	admin.Post("/withdrawals/:id/reject", adminHandler.RejectWithdrawal)
	admin.Get("/commissions", adminHandler.ListCommissions)
	admin.Get("/settings", adminHandler.GetSettings)
	admin.Put("/settings", adminHandler.UpdateSettings)
	admin.Get("/ranking", adminHandler.GetRanking)
	admin.Post("/users/:id/reconcile", adminHandler.Reconcile)

	return &Services{
		Order:   orderService,
		Balance: balanceService,
	}
}
