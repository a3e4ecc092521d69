package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"alfredoptarigan/job-orchestrator/internal/repositories"
)

const applicationsSheet = "Applications"

var exportHeaders = []string{"Job Title", "Company", "Job URL", "Fit Score", "Status", "Email Subject", "Sent At", "Updated At"}

// ExportService renders a tenant's application tracker as an Excel workbook.
type ExportService interface {
	ExportApplications(ctx context.Context, userID uuid.UUID) ([]byte, error)
}

type exportService struct {
	appRepo repositories.ApplicationRepository
}

func NewExportService(appRepo repositories.ApplicationRepository) ExportService {
	return &exportService{appRepo: appRepo}
}

// ExportApplications implements ExportService.
func (s *exportService) ExportApplications(ctx context.Context, userID uuid.UUID) ([]byte, error) {
	apps, err := s.appRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", applicationsSheet); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	for col, header := range exportHeaders {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		f.SetCellValue(applicationsSheet, cell, header)
		f.SetCellStyle(applicationsSheet, cell, cell, headerStyle)
	}
	f.SetColWidth(applicationsSheet, "A", "C", 30)
	f.SetColWidth(applicationsSheet, "D", "E", 15)
	f.SetColWidth(applicationsSheet, "F", "F", 45)
	f.SetColWidth(applicationsSheet, "G", "H", 20)

	for i, app := range apps {
		row := i + 2
		var fit interface{}
		if app.Job.FitScore != nil {
			fit = *app.Job.FitScore
		}
		var sentAt string
		if app.SentAt != nil {
			sentAt = app.SentAt.UTC().Format(time.RFC3339)
		}

		values := []interface{}{
			app.Job.JobTitle,
			app.Job.Company.CompanyName,
			app.Job.JobURL,
			fit,
			string(app.Status),
			app.EmailSubject,
			sentAt,
			app.UpdatedAt.UTC().Format(time.RFC3339),
		}
		cell, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(applicationsSheet, cell, &values); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", row, err)
		}
	}

	if len(apps) > 0 {
		f.AutoFilter(applicationsSheet, fmt.Sprintf("A1:H%d", len(apps)+1), []excelize.AutoFilterOptions{})
	}
	f.SetPanes(applicationsSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
