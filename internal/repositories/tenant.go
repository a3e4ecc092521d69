package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"alfredoptarigan/job-orchestrator/internal/models"
)

type TenantRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, profile *ProfileUpdate) error
}

// ProfileUpdate carries the validated output of resume ingestion. It is
// written in a single statement so a tenant never holds a half-applied profile.
type ProfileUpdate struct {
	FullName       string
	Email          string
	Phone          string
	Location       string
	Summary        string
	Skills         datatypes.JSON
	Experience     datatypes.JSON
	Projects       datatypes.JSON
	Education      datatypes.JSON
	Certifications datatypes.JSON
	PreferredRoles datatypes.JSON
	RawResumeText  string
}

type tenantRepository struct {
	db *gorm.DB
}

func NewTenantRepository(db *gorm.DB) TenantRepository {
	return &tenantRepository{db: db}
}

// FindByID implements TenantRepository.
func (r *tenantRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	var tenant models.Tenant
	if err := r.db.WithContext(ctx).Where("user_id = ?", id).First(&tenant).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("tenant not found: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to find tenant: %w", err)
	}

	return &tenant, nil
}

// UpdateProfile implements TenantRepository.
func (r *tenantRepository) UpdateProfile(ctx context.Context, id uuid.UUID, profile *ProfileUpdate) error {
	now := time.Now().UTC()
	result := r.db.WithContext(ctx).Model(&models.Tenant{}).
		Where("user_id = ?", id).
		Updates(map[string]interface{}{
			"full_name":         profile.FullName,
			"email":             profile.Email,
			"phone":             profile.Phone,
			"location":          profile.Location,
			"summary":           profile.Summary,
			"skills":            profile.Skills,
			"experience":        profile.Experience,
			"projects":          profile.Projects,
			"education":         profile.Education,
			"certifications":    profile.Certifications,
			"preferred_roles":   profile.PreferredRoles,
			"raw_resume_text":   profile.RawResumeText,
			"resume_updated_at": now,
			"updated_at":        now,
		})

	if result.Error != nil {
		return fmt.Errorf("failed to update profile: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		return fmt.Errorf("tenant not found: %w", ErrNotFound)
	}

	return nil
}
