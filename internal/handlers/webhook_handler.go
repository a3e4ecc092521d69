package handlers

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"alfredoptarigan/job-orchestrator/internal/apperr"
	"alfredoptarigan/job-orchestrator/internal/models"
	"alfredoptarigan/job-orchestrator/internal/services"
)

const (
	HeaderAutomationSecret = "x-automation-secret"
	HeaderTenantID         = "x-tenant-id"
	HeaderTenantAPIKey     = "x-tenant-api-key"
)

type WebhookHandler struct {
	auth    services.AuthGate
	router  *services.Router
	timeout time.Duration
}

func NewWebhookHandler(auth services.AuthGate, router *services.Router, timeout time.Duration) *WebhookHandler {
	return &WebhookHandler{
		auth:    auth,
		router:  router,
		timeout: timeout,
	}
}

// HandleWebhook handles POST /webhook
func (h *WebhookHandler) HandleWebhook(c *fiber.Ctx) error {
	tenant, err := h.auth.Authenticate(c.UserContext(), credentialsFrom(c))
	if err != nil {
		return err
	}

	var req models.WebhookRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.Validation(apperr.ReasonInvalidPayload, "invalid request payload")
	}
	req.Action = strings.TrimSpace(req.Action)

	// the pipeline outlives a dropped client connection
	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	exec := services.NewExecution(tenant)
	outcome, err := h.router.Route(ctx, exec, req.Action, req.Data)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusOK).JSON(outcome)
}

func credentialsFrom(c *fiber.Ctx) services.Credentials {
	return services.Credentials{
		Secret:   c.Get(HeaderAutomationSecret),
		TenantID: c.Get(HeaderTenantID),
		APIKey:   c.Get(HeaderTenantAPIKey),
	}
}
