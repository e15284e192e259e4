package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/examstack/exam-service/internal/models"
	"github.com/examstack/exam-service/internal/repositories"
)

// IntegrityPostgreSQL stores the append-only integrity event log. Events are
// never updated or deleted.
type IntegrityPostgreSQL struct {
	db *gorm.DB
}

func NewIntegrityPostgreSQL(db *gorm.DB) repositories.IntegrityRepository {
	return &IntegrityPostgreSQL{db: db}
}

func (r *IntegrityPostgreSQL) Create(ctx context.Context, tx *gorm.DB, event *models.IntegrityEvent) error {
	db := r.getDB(tx)
	if err := db.WithContext(ctx).Create(event).Error; err != nil {
		return fmt.Errorf("failed to create integrity event: %w", err)
	}
	return nil
}

func (r *IntegrityPostgreSQL) GetByAttempt(ctx context.Context, tx *gorm.DB, attemptID uint) ([]*models.IntegrityEvent, error) {
	db := r.getDB(tx)
	var events []*models.IntegrityEvent
	if err := db.WithContext(ctx).
		Where("attempt_id = ?", attemptID).
		Order("occurred_at ASC, id ASC").
		Find(&events).Error; err != nil {
		return nil, fmt.Errorf("failed to get integrity events: %w", err)
	}
	return events, nil
}

func (r *IntegrityPostgreSQL) CountByType(ctx context.Context, tx *gorm.DB, attemptID uint) (map[models.IntegrityEventType]int, error) {
	db := r.getDB(tx)
	var rows []struct {
		EventType models.IntegrityEventType
		Count     int
	}

	if err := db.WithContext(ctx).
		Model(&models.IntegrityEvent{}).
		Select("event_type, COUNT(*) as count").
		Where("attempt_id = ?", attemptID).
		Group("event_type").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to count integrity events by type: %w", err)
	}

	breakdown := make(map[models.IntegrityEventType]int, len(rows))
	for _, row := range rows {
		breakdown[row.EventType] = row.Count
	}

	return breakdown, nil
}

func (r *IntegrityPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}
