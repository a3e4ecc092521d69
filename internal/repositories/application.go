package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"alfredoptarigan/job-orchestrator/internal/models"
)

type ApplicationRepository interface {
	Upsert(ctx context.Context, app *models.Application) (*models.Application, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Application, error)
	UpdateEmail(ctx context.Context, id uuid.UUID, subject, body string) error
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Application, error)
}

type applicationRepository struct {
	db *gorm.DB
}

func NewApplicationRepository(db *gorm.DB) ApplicationRepository {
	return &applicationRepository{db: db}
}

// Upsert keys on (user_id, job_id, resume_version) and returns the stored row.
func (r *applicationRepository) Upsert(ctx context.Context, app *models.Application) (*models.Application, error) {
	if app.ResumeVersion == 0 {
		app.ResumeVersion = models.CurrentResumeVersion
	}

	var saved models.Application
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "job_id"}, {Name: "resume_version"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"tailored_summary",
				"tailored_resume_text",
				"ai_detection_score",
				"humanization_pass",
				"generation_model",
				"status",
				"updated_at",
			}),
		}).Omit(clause.Associations).Create(app).Error; err != nil {
			return err
		}
		return tx.Where("user_id = ? AND job_id = ? AND resume_version = ?", app.UserID, app.JobID, app.ResumeVersion).
			First(&saved).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upsert application: %w", err)
	}

	return &saved, nil
}

// FindByID implements ApplicationRepository.
func (r *applicationRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Application, error) {
	var app models.Application
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&app).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("application not found: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to find application: %w", err)
	}

	return &app, nil
}

// UpdateEmail implements ApplicationRepository.
func (r *applicationRepository) UpdateEmail(ctx context.Context, id uuid.UUID, subject, body string) error {
	result := r.db.WithContext(ctx).Model(&models.Application{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"email_subject": subject,
			"email_body":    body,
			"updated_at":    time.Now().UTC(),
		})

	if result.Error != nil {
		return fmt.Errorf("failed to update email: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		return fmt.Errorf("application not found: %w", ErrNotFound)
	}

	return nil
}

// ListByUser implements ApplicationRepository.
func (r *applicationRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Application, error) {
	var apps []models.Application
	err := r.db.WithContext(ctx).
		Preload("Job.Company").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&apps).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list applications: %w", err)
	}

	return apps, nil
}
