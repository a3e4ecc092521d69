package handlers

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"

	"alfredoptarigan/job-orchestrator/internal/services"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type ExportHandler struct {
	auth   services.AuthGate
	export services.ExportService
}

func NewExportHandler(auth services.AuthGate, export services.ExportService) *ExportHandler {
	return &ExportHandler{auth: auth, export: export}
}

// HandleExport handles GET /applications/export
func (h *ExportHandler) HandleExport(c *fiber.Ctx) error {
	tenant, err := h.auth.Authenticate(c.UserContext(), credentialsFrom(c))
	if err != nil {
		return err
	}

	data, err := h.export.ExportApplications(c.UserContext(), tenant.ID)
	if err != nil {
		return err
	}

	fileName := fmt.Sprintf("applications-%s.xlsx", time.Now().UTC().Format("20060102"))
	c.Set(fiber.HeaderContentType, xlsxContentType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", fileName))
	return c.Status(fiber.StatusOK).Send(data)
}
