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

type InboundRepository interface {
	Exists(ctx context.Context, userID uuid.UUID, messageID string) (bool, error)
	FindByMessage(ctx context.Context, userID uuid.UUID, messageID string) (*models.InboundLog, error)
	Create(ctx context.Context, entry *models.InboundLog) error
	UpdateAction(ctx context.Context, id uuid.UUID, update *InboundActionUpdate) error
}

type InboundActionUpdate struct {
	Status       models.InboundAction
	DraftSubject string
	DraftBody    string
}

type inboundRepository struct {
	db *gorm.DB
}

func NewInboundRepository(db *gorm.DB) InboundRepository {
	return &inboundRepository{db: db}
}

// Exists implements InboundRepository.
func (r *inboundRepository) Exists(ctx context.Context, userID uuid.UUID, messageID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.InboundLog{}).
		Where("user_id = ? AND message_id = ?", userID, messageID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check inbound ledger: %w", err)
	}

	return count > 0, nil
}

// FindByMessage returns ErrNotFound when the message has never been recorded.
func (r *inboundRepository) FindByMessage(ctx context.Context, userID uuid.UUID, messageID string) (*models.InboundLog, error) {
	var entry models.InboundLog
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND message_id = ?", userID, messageID).
		First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("inbound message not found: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to find inbound message: %w", err)
	}

	return &entry, nil
}

// Create inserts the entry, returning ErrDuplicate when (user_id, message_id)
// is already recorded.
func (r *inboundRepository) Create(ctx context.Context, entry *models.InboundLog) error {
	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(entry)
	if result.Error != nil {
		return fmt.Errorf("failed to create inbound log: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrDuplicate
	}

	return nil
}

// UpdateAction implements InboundRepository.
func (r *inboundRepository) UpdateAction(ctx context.Context, id uuid.UUID, update *InboundActionUpdate) error {
	updates := map[string]interface{}{
		"action_status": update.Status,
		"updated_at":    time.Now().UTC(),
	}
	if update.DraftSubject != "" {
		updates["draft_subject"] = update.DraftSubject
	}
	if update.DraftBody != "" {
		updates["draft_body"] = update.DraftBody
	}

	result := r.db.WithContext(ctx).Model(&models.InboundLog{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to update inbound log: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		return fmt.Errorf("inbound log not found: %w", ErrNotFound)
	}

	return nil
}
