package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"alfredoptarigan/job-orchestrator/internal/models"
)

// AuditRepository only appends and reads; workflow_logs rows are immutable.
type AuditRepository interface {
	Append(ctx context.Context, record *models.AuditRecord) error
	ListByExecution(ctx context.Context, executionID uuid.UUID) ([]models.AuditRecord, error)
}

type auditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) AuditRepository {
	return &auditRepository{db: db}
}

// Append implements AuditRepository.
func (r *auditRepository) Append(ctx context.Context, record *models.AuditRecord) error {
	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		return fmt.Errorf("failed to append audit record: %w", err)
	}

	return nil
}

// ListByExecution implements AuditRepository.
func (r *auditRepository) ListByExecution(ctx context.Context, executionID uuid.UUID) ([]models.AuditRecord, error) {
	var records []models.AuditRecord
	err := r.db.WithContext(ctx).
		Where("execution_id = ?", executionID).
		Order("created_at ASC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list audit records: %w", err)
	}

	return records, nil
}
