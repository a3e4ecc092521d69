package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"alfredoptarigan/job-orchestrator/internal/models"
)

type JobRepository interface {
	UpsertCompany(ctx context.Context, company *models.Company) (*models.Company, error)
	UpsertJob(ctx context.Context, job *models.Job) (*models.Job, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Job, error)
	FindCompanyByID(ctx context.Context, id uuid.UUID) (*models.Company, error)
	UpdateFit(ctx context.Context, id uuid.UUID, fit *FitUpdate) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status models.JobStatus) error
}

type FitUpdate struct {
	FitScore        int
	GapAnalysis     datatypes.JSON
	AlignmentReport string
	StrategicAngle  string
	Status          models.JobStatus
}

type jobRepository struct {
	db *gorm.DB
}

func NewJobRepository(db *gorm.DB) JobRepository {
	return &jobRepository{db: db}
}

// UpsertCompany inserts the company or refreshes the fields that were
// supplied, keyed on company_name. The stored row is returned so the caller
// always sees the original id.
func (r *jobRepository) UpsertCompany(ctx context.Context, company *models.Company) (*models.Company, error) {
	now := time.Now().UTC()
	company.LastScrapedAt = &now

	updates := []string{"last_scraped_at", "updated_at"}
	if company.Industry != "" {
		updates = append(updates, "industry")
	}
	if company.Location != "" {
		updates = append(updates, "location")
	}
	if company.HRContactName != "" {
		updates = append(updates, "hr_contact_name")
	}
	if company.HREmail != "" {
		updates = append(updates, "hr_email")
	}
	if len(company.TechStack) > 0 {
		updates = append(updates, "tech_stack")
	}

	var saved models.Company
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "company_name"}},
			DoUpdates: clause.AssignmentColumns(updates),
		}).Create(company).Error; err != nil {
			return err
		}
		return tx.Where("company_name = ?", company.CompanyName).First(&saved).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upsert company: %w", err)
	}

	return &saved, nil
}

// UpsertJob keys on job_url. Status and fit fields are left untouched on
// conflict so a re-scrape never rolls back an analyzed or interviewing job.
func (r *jobRepository) UpsertJob(ctx context.Context, job *models.Job) (*models.Job, error) {
	if job.Status == "" {
		job.Status = models.JobStatusScraped
	}

	var saved models.Job
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "job_url"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"company_id",
				"job_title",
				"description_raw",
				"description_summary",
				"required_skills",
				"experience_level",
				"employment_type",
				"updated_at",
			}),
		}).Omit(clause.Associations).Create(job).Error; err != nil {
			return err
		}
		return tx.Where("job_url = ?", job.JobURL).First(&saved).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upsert job: %w", err)
	}

	return &saved, nil
}

// FindByID implements JobRepository.
func (r *jobRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	var job models.Job
	if err := r.db.WithContext(ctx).Preload("Company").Where("id = ?", id).First(&job).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("job not found: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to find job: %w", err)
	}

	return &job, nil
}

// FindCompanyByID implements JobRepository.
func (r *jobRepository) FindCompanyByID(ctx context.Context, id uuid.UUID) (*models.Company, error) {
	var company models.Company
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&company).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("company not found: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to find company: %w", err)
	}

	return &company, nil
}

// UpdateFit implements JobRepository.
func (r *jobRepository) UpdateFit(ctx context.Context, id uuid.UUID, fit *FitUpdate) error {
	result := r.db.WithContext(ctx).Model(&models.Job{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"fit_score":        fit.FitScore,
			"gap_analysis":     fit.GapAnalysis,
			"alignment_report": fit.AlignmentReport,
			"strategic_angle":  fit.StrategicAngle,
			"status":           fit.Status,
			"updated_at":       time.Now().UTC(),
		})

	if result.Error != nil {
		return fmt.Errorf("failed to update fit: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		return fmt.Errorf("job not found: %w", ErrNotFound)
	}

	return nil
}

// UpdateStatus implements JobRepository.
func (r *jobRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status models.JobStatus) error {
	result := r.db.WithContext(ctx).Model(&models.Job{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": time.Now().UTC(),
		})

	if result.Error != nil {
		return fmt.Errorf("failed to update status: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		return fmt.Errorf("job not found: %w", ErrNotFound)
	}

	return nil
}
