package services

import (
	"context"
	"encoding/json"
	"log"

	"gorm.io/datatypes"

	"alfredoptarigan/job-orchestrator/internal/models"
	"alfredoptarigan/job-orchestrator/internal/repositories"
)

// AuditLogger writes one record per module boundary. A failed write is logged
// and never fails the pipeline that produced it.
type AuditLogger interface {
	Started(ctx context.Context, exec *Execution, module string, input interface{})
	Success(ctx context.Context, exec *Execution, module string, output interface{})
	Skipped(ctx context.Context, exec *Execution, module string, output interface{})
	Failed(ctx context.Context, exec *Execution, module string, err error)
}

type auditLogger struct {
	auditRepo repositories.AuditRepository
}

func NewAuditLogger(auditRepo repositories.AuditRepository) AuditLogger {
	return &auditLogger{auditRepo: auditRepo}
}

// Started implements AuditLogger.
func (a *auditLogger) Started(ctx context.Context, exec *Execution, module string, input interface{}) {
	record := a.record(exec, module, models.AuditStarted)
	record.InputSummary = toJSON(input)
	a.append(ctx, record)
}

// Success implements AuditLogger.
func (a *auditLogger) Success(ctx context.Context, exec *Execution, module string, output interface{}) {
	record := a.record(exec, module, models.AuditSuccess)
	record.OutputSummary = toJSON(output)
	a.append(ctx, record)
}

// Skipped implements AuditLogger.
func (a *auditLogger) Skipped(ctx context.Context, exec *Execution, module string, output interface{}) {
	record := a.record(exec, module, models.AuditSkipped)
	record.OutputSummary = toJSON(output)
	a.append(ctx, record)
}

// Failed implements AuditLogger.
func (a *auditLogger) Failed(ctx context.Context, exec *Execution, module string, err error) {
	record := a.record(exec, module, models.AuditFailed)
	if err != nil {
		record.ErrorMessage = err.Error()
	}
	a.append(ctx, record)
}

func (a *auditLogger) record(exec *Execution, module string, status models.AuditStatus) *models.AuditRecord {
	record := &models.AuditRecord{
		ModuleName:   module,
		ExecutionID:  exec.ID,
		Status:       status,
		LLMModelUsed: exec.Model,
		TokenUsage:   exec.Tokens,
	}
	if exec.Tenant != nil {
		userID := exec.Tenant.ID
		record.UserID = &userID
	}
	return record
}

func (a *auditLogger) append(ctx context.Context, record *models.AuditRecord) {
	// a timed-out pipeline still gets its FAILED record
	if err := a.auditRepo.Append(context.WithoutCancel(ctx), record); err != nil {
		log.Printf("⚠️ Failed to write %s audit for %s: %v", record.Status, record.ModuleName, err)
	}
}

func toJSON(v interface{}) datatypes.JSON {
	if v == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("⚠️ Failed to encode audit summary: %v", err)
		return nil
	}
	return datatypes.JSON(data)
}
