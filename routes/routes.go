package routes

import (
	"github.com/gofiber/fiber/v2"

	"billing-gateway-backend/config"
	"billing-gateway-backend/controllers"
)

// Register wires all HTTP routes. Admission control is applied globally in
// main.go before this runs, so every route here is behind the rate limiter.
func Register(app *fiber.App, svc controllers.WebhookProcessor, cfg *config.Config) {
	api := app.Group("/api")

	api.Get("/healthz", controllers.Health)

	// Provider webhook ingestion (authenticated by shared-secret header).
	api.Post("/webhooks/payments", controllers.HandlePaymentWebhook(svc, cfg.WebhookToken, cfg.WebhookTokenHeader))
}
