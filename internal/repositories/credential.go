package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"alfredoptarigan/job-orchestrator/internal/models"
)

type CredentialRepository interface {
	FindActive(ctx context.Context, userID uuid.UUID) (*models.EmailCredential, error)
	ListActive(ctx context.Context) ([]models.EmailCredential, error)
}

type credentialRepository struct {
	db *gorm.DB
}

func NewCredentialRepository(db *gorm.DB) CredentialRepository {
	return &credentialRepository{db: db}
}

// FindActive returns the most recently updated active credential.
func (r *credentialRepository) FindActive(ctx context.Context, userID uuid.UUID) (*models.EmailCredential, error) {
	var cred models.EmailCredential
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND is_active = ?", userID, true).
		Order("updated_at DESC").
		First(&cred).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("no active credential: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to find credential: %w", err)
	}

	return &cred, nil
}

// ListActive implements CredentialRepository.
func (r *credentialRepository) ListActive(ctx context.Context) ([]models.EmailCredential, error) {
	var creds []models.EmailCredential
	if err := r.db.WithContext(ctx).Where("is_active = ?", true).Find(&creds).Error; err != nil {
		return nil, fmt.Errorf("failed to list credentials: %w", err)
	}

	return creds, nil
}
