package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
)

// RegisterRoutes mounts the automation API on router, normally the /api/v1
// group.
func RegisterRoutes(router fiber.Router, webhook *WebhookHandler, export *ExportHandler) {
	router.Get("/health", HandleHealth)
	router.Post("/webhook", webhook.HandleWebhook)
	router.Get("/applications/export", export.HandleExport)
}

// HandleHealth handles GET /health
func HandleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "healthy",
		"time":   time.Now().UTC(),
	})
}
