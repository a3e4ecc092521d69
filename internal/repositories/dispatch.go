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

type DispatchRepository interface {
	Reserve(ctx context.Context, reservation *Reservation) error
	Release(ctx context.Context, id uuid.UUID) error
	ReleaseStale(ctx context.Context, before time.Time) (int64, error)
	Finalize(ctx context.Context, id uuid.UUID, receipt *SendReceipt) error
	CountSince(ctx context.Context, userID uuid.UUID, since time.Time) (int64, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.DispatchLog, error)
	FindByThread(ctx context.Context, userID uuid.UUID, threadID string, messageIDs []string) (*models.DispatchLog, error)
	ListSent(ctx context.Context, limit, offset int) ([]models.DispatchLog, error)
}

// Reservation asks for a PENDING ledger row. It is granted only when the
// tenant is under both caps and no row exists for the same content.
type Reservation struct {
	Entry       *models.DispatchLog
	HourlyLimit int
	DailyLimit  int
	Now         time.Time
}

type SendReceipt struct {
	ProviderMessageID string
	ProviderThreadID  string
	SentAt            time.Time
}

type dispatchRepository struct {
	db *gorm.DB
}

func NewDispatchRepository(db *gorm.DB) DispatchRepository {
	return &dispatchRepository{db: db}
}

// Reserve implements DispatchRepository. The tenant row is locked for the
// duration of the transaction so concurrent sends for one tenant are counted
// one after another; the unique index backs the duplicate check.
func (r *dispatchRepository) Reserve(ctx context.Context, reservation *Reservation) error {
	entry := reservation.Entry
	now := reservation.Now

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var tenant models.Tenant
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ?", entry.UserID).
			First(&tenant).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("tenant not found: %w", ErrNotFound)
			}
			return fmt.Errorf("failed to lock tenant: %w", err)
		}

		hourly, err := countSince(tx, entry.UserID, now.Add(-time.Hour))
		if err != nil {
			return err
		}
		if hourly >= int64(reservation.HourlyLimit) {
			return ErrHourlyLimit
		}

		daily, err := countSince(tx, entry.UserID, now.Add(-24*time.Hour))
		if err != nil {
			return err
		}
		if daily >= int64(reservation.DailyLimit) {
			return ErrDailyLimit
		}

		var existing int64
		if err := tx.Model(&models.DispatchLog{}).
			Where("user_id = ? AND job_id = ? AND email_body_hash = ?", entry.UserID, entry.JobID, entry.EmailBodyHash).
			Count(&existing).Error; err != nil {
			return fmt.Errorf("failed to check dispatch ledger: %w", err)
		}
		if existing > 0 {
			return ErrDuplicate
		}

		entry.SentStatus = models.DispatchPending
		entry.CreatedAt = now

		result := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(entry)
		if result.Error != nil {
			return fmt.Errorf("failed to reserve dispatch: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrDuplicate
		}

		return nil
	})
}

// Release drops a reservation whose send never happened.
func (r *dispatchRepository) Release(ctx context.Context, id uuid.UUID) error {
	err := r.db.WithContext(ctx).
		Where("id = ? AND sent_status = ?", id, models.DispatchPending).
		Delete(&models.DispatchLog{}).Error
	if err != nil {
		return fmt.Errorf("failed to release dispatch: %w", err)
	}

	return nil
}

// ReleaseStale drops PENDING reservations created before the cutoff, freeing
// their content hash for another send.
func (r *dispatchRepository) ReleaseStale(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("sent_status = ? AND created_at < ?", models.DispatchPending, before).
		Delete(&models.DispatchLog{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to release stale dispatches: %w", result.Error)
	}

	return result.RowsAffected, nil
}

// Finalize flips the reservation to SENT and, when the dispatch belongs to an
// application, marks that application SENT in the same transaction.
func (r *dispatchRepository) Finalize(ctx context.Context, id uuid.UUID, receipt *SendReceipt) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var entry models.DispatchLog
		if err := tx.Where("id = ? AND sent_status = ?", id, models.DispatchPending).First(&entry).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("pending dispatch not found: %w", ErrNotFound)
			}
			return fmt.Errorf("failed to find dispatch: %w", err)
		}

		if err := tx.Model(&models.DispatchLog{}).
			Where("id = ?", id).
			Updates(map[string]interface{}{
				"sent_status":         models.DispatchSent,
				"provider_message_id": receipt.ProviderMessageID,
				"provider_thread_id":  receipt.ProviderThreadID,
				"sent_at":             receipt.SentAt,
			}).Error; err != nil {
			return fmt.Errorf("failed to finalize dispatch: %w", err)
		}

		if entry.ApplicationID == nil {
			return nil
		}

		result := tx.Model(&models.Application{}).
			Where("id = ?", *entry.ApplicationID).
			Updates(map[string]interface{}{
				"status":     models.ApplicationSent,
				"sent_at":    receipt.SentAt,
				"updated_at": receipt.SentAt,
			})
		if result.Error != nil {
			return fmt.Errorf("failed to mark application sent: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("application not found: %w", ErrNotFound)
		}

		return nil
	})
}

// CountSince counts SENT and in-flight rows created at or after since.
func (r *dispatchRepository) CountSince(ctx context.Context, userID uuid.UUID, since time.Time) (int64, error) {
	return countSince(r.db.WithContext(ctx), userID, since)
}

func countSince(db *gorm.DB, userID uuid.UUID, since time.Time) (int64, error) {
	var count int64
	err := db.Model(&models.DispatchLog{}).
		Where("user_id = ? AND sent_status IN ? AND created_at >= ?",
			userID,
			[]models.DispatchStatus{models.DispatchPending, models.DispatchSent},
			since,
		).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count dispatches: %w", err)
	}

	return count, nil
}

// FindByID implements DispatchRepository.
func (r *dispatchRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.DispatchLog, error) {
	var entry models.DispatchLog
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&entry).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("dispatch not found: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to find dispatch: %w", err)
	}

	return &entry, nil
}

// FindByThread matches an inbound message to the dispatch it answers, by
// provider thread id or by one of the referenced message ids. It returns
// nil, nil when nothing matches.
func (r *dispatchRepository) FindByThread(ctx context.Context, userID uuid.UUID, threadID string, messageIDs []string) (*models.DispatchLog, error) {
	if threadID == "" && len(messageIDs) == 0 {
		return nil, nil
	}

	query := r.db.WithContext(ctx).Where("user_id = ? AND sent_status = ?", userID, models.DispatchSent)
	switch {
	case threadID != "" && len(messageIDs) > 0:
		query = query.Where("(provider_thread_id = ? OR provider_message_id IN ?)", threadID, messageIDs)
	case threadID != "":
		query = query.Where("provider_thread_id = ?", threadID)
	default:
		query = query.Where("provider_message_id IN ?", messageIDs)
	}

	var entry models.DispatchLog
	err := query.Order("created_at DESC").First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to match dispatch: %w", err)
	}

	return &entry, nil
}

// ListSent implements DispatchRepository.
func (r *dispatchRepository) ListSent(ctx context.Context, limit, offset int) ([]models.DispatchLog, error) {
	var entries []models.DispatchLog
	err := r.db.WithContext(ctx).
		Where("sent_status = ?", models.DispatchSent).
		Order("created_at ASC").
		Limit(limit).
		Offset(offset).
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list dispatches: %w", err)
	}

	return entries, nil
}
