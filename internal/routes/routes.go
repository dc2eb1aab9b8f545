package routes

import (
	"github.com/ahmetcoskunkizilkaya/marketplace-backend/internal/config"
	"github.com/ahmetcoskunkizilkaya/marketplace-backend/internal/handlers"
	"github.com/ahmetcoskunkizilkaya/marketplace-backend/internal/middleware"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

func Setup(
	app *fiber.App,
	cfg *config.Config,
	db *gorm.DB,
	healthHandler *handlers.HealthHandler,
	reportHandler *handlers.ReportHandler,
) {
	// Prometheus scrape endpoint (outside /api, no auth)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := app.Group("/api")

	// Health
	api.Get("/health", healthHandler.Check)

	// Reports (any authenticated user)
	reports := api.Group("/reports", middleware.JWTProtected(cfg), middleware.Identity(db, cfg))
	reports.Post("/", reportHandler.CreateReport)
	// /my must be registered before /:id
	reports.Get("/my", reportHandler.GetMyReports)
	reports.Get("/:id", reportHandler.GetReport)

	// Admin moderation panel (protected + admin required)
	admin := api.Group("/admin", middleware.JWTProtected(cfg), middleware.Identity(db, cfg), middleware.AdminRequired())
	admin.Get("/reports", reportHandler.ListReports)
	admin.Put("/reports/:id/status", reportHandler.UpdateStatus)
	admin.Post("/reports/:id/actions", reportHandler.TakeAction)
	admin.Put("/users/:id/unsuspend", reportHandler.UnsuspendUser)
}
