package handlers

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"

	"alfredoptarigan/job-orchestrator/internal/apperr"
	"alfredoptarigan/job-orchestrator/internal/models"
)

// ErrorHandler renders every error returned by a handler as the error
// envelope. Untyped errors become a 500 without leaking their text.
func ErrorHandler(c *fiber.Ctx, err error) error {
	resp := models.ErrorResponse{
		StatusCode: fiber.StatusInternalServerError,
		Status:     "error",
		Message:    "internal server error",
	}

	var fiberErr *fiber.Error
	if appErr, ok := apperr.As(err); ok {
		resp.StatusCode = appErr.StatusCode()
		resp.Message = appErr.Message
		resp.ErrorType = string(appErr.Kind)
		resp.Reason = appErr.Reason
		if resp.Message == "" {
			resp.Message = appErr.Reason
		}
	} else if errors.As(err, &fiberErr) {
		resp.StatusCode = fiberErr.Code
		resp.Message = fiberErr.Message
	} else {
		log.Printf("❌ Unhandled error on %s %s: %v", c.Method(), c.Path(), err)
	}

	return c.Status(resp.StatusCode).JSON(resp)
}
