package services

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gofiber/fiber/v2"

	"alfredoptarigan/job-orchestrator/internal/apperr"
	"alfredoptarigan/job-orchestrator/internal/config"
)

// MinResumeChars is the shortest extracted resume worth structuring.
const MinResumeChars = 100

type ExtractedDocument struct {
	Text      string
	PageCount int
}

type ExtractionService interface {
	Extract(ctx context.Context, filePath string) (*ExtractedDocument, error)
}

type extractionService struct {
	url     string
	timeout time.Duration
	local   *pdfTextReader
}

// NewExtractionService calls the extraction sidecar when its URL is set and
// reads the PDF in-process otherwise.
func NewExtractionService(cfg config.ServicesConfig) ExtractionService {
	return &extractionService{
		url:     strings.TrimSpace(cfg.ExtractionURL),
		timeout: cfg.Timeout,
		local:   &pdfTextReader{},
	}
}

type extractionResponse struct {
	Success bool `json:"success"`
	Data    struct {
		RawText   string `json:"raw_text"`
		CharCount int    `json:"char_count"`
		PageCount int    `json:"page_count"`
	} `json:"data"`
	Error string `json:"error"`
}

// Extract implements ExtractionService.
func (s *extractionService) Extract(ctx context.Context, filePath string) (*ExtractedDocument, error) {
	var doc *ExtractedDocument
	var err error

	if s.url == "" {
		log.Printf("📄 Extracting %s locally", filePath)
		doc, err = s.local.Read(filePath)
	} else {
		log.Printf("📄 Extracting %s via %s", filePath, s.url)
		doc, err = s.remote(ctx, filePath)
	}
	if err != nil {
		return nil, apperr.External(apperr.ReasonExtractionFailed, "document extraction failed", err)
	}

	doc.Text = strings.TrimSpace(doc.Text)
	if n := utf8.RuneCountInString(doc.Text); n < MinResumeChars {
		return nil, apperr.External(apperr.ReasonExtractionFailed,
			fmt.Sprintf("extracted text too short: %d characters", n), nil)
	}

	return doc, nil
}

func (s *extractionService) remote(ctx context.Context, filePath string) (*ExtractedDocument, error) {
	var resp extractionResponse
	agent := fiber.Post(s.url).JSON(fiber.Map{"file_path": filePath})
	if err := doJSON(ctx, agent, s.timeout, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, fmt.Errorf("extraction service error: %s", resp.Error)
	}

	return &ExtractedDocument{
		Text:      resp.Data.RawText,
		PageCount: resp.Data.PageCount,
	}, nil
}
