package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"alfredoptarigan/job-orchestrator/internal/models"
)

type InterviewRepository interface {
	Exists(ctx context.Context, userID, jobID uuid.UUID, scheduledAt time.Time) (bool, error)
	Create(ctx context.Context, interview *models.Interview) error
	UpdateConfirmation(ctx context.Context, id uuid.UUID, status, subject, body string) error
}

type interviewRepository struct {
	db *gorm.DB
}

func NewInterviewRepository(db *gorm.DB) InterviewRepository {
	return &interviewRepository{db: db}
}

// Exists implements InterviewRepository.
func (r *interviewRepository) Exists(ctx context.Context, userID, jobID uuid.UUID, scheduledAt time.Time) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Interview{}).
		Where("user_id = ? AND job_id = ? AND scheduled_at = ?", userID, jobID, scheduledAt.UTC()).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check interviews: %w", err)
	}

	return count > 0, nil
}

// Create inserts the interview, returning ErrDuplicate when the slot is
// already recorded for the tenant and job.
func (r *interviewRepository) Create(ctx context.Context, interview *models.Interview) error {
	interview.ScheduledAt = interview.ScheduledAt.UTC()

	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(interview)
	if result.Error != nil {
		return fmt.Errorf("failed to create interview: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrDuplicate
	}

	return nil
}

// UpdateConfirmation implements InterviewRepository.
func (r *interviewRepository) UpdateConfirmation(ctx context.Context, id uuid.UUID, status, subject, body string) error {
	result := r.db.WithContext(ctx).Model(&models.Interview{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"confirmation_status":  status,
			"confirmation_subject": subject,
			"confirmation_body":    body,
			"updated_at":           time.Now().UTC(),
		})

	if result.Error != nil {
		return fmt.Errorf("failed to update confirmation: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		return fmt.Errorf("interview not found: %w", ErrNotFound)
	}

	return nil
}
