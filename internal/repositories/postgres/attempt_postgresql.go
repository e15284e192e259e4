package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/examstack/exam-service/internal/cache"
	"github.com/examstack/exam-service/internal/models"
	"github.com/examstack/exam-service/internal/repositories"
)

type AttemptPostgreSQL struct {
	db           *gorm.DB
	helpers      *SharedHelpers
	cacheManager *cache.CacheManager
}

func NewAttemptPostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.AttemptRepository {
	return &AttemptPostgreSQL{
		db:           db,
		helpers:      NewSharedHelpers(db),
		cacheManager: cache.NewCacheManager(redisClient),
	}
}

func (a *AttemptPostgreSQL) Create(ctx context.Context, tx *gorm.DB, attempt *models.Attempt) error {
	db := a.getDB(tx)
	return db.WithContext(ctx).Create(attempt).Error
}

func (a *AttemptPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Attempt, error) {
	db := a.getDB(tx)
	var attempt models.Attempt
	if err := db.WithContext(ctx).First(&attempt, id).Error; err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (a *AttemptPostgreSQL) GetByIDWithDetails(ctx context.Context, tx *gorm.DB, id uint) (*models.Attempt, error) {
	db := a.getDB(tx)
	var attempt models.Attempt
	if err := db.WithContext(ctx).
		Preload("Exam").
		Preload("Exam.Settings").
		Preload("IntegrityEvents", func(db *gorm.DB) *gorm.DB {
			return db.Order("occurred_at ASC, id ASC")
		}).
		First(&attempt, id).Error; err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (a *AttemptPostgreSQL) GetOpenAttempt(ctx context.Context, tx *gorm.DB, examID uint, rollNumber string, now time.Time) (*models.Attempt, error) {
	db := a.getDB(tx)
	var attempt models.Attempt
	if err := db.WithContext(ctx).
		Where("exam_id = ? AND roll_number = ? AND submitted = ? AND end_time > ?",
			examID, rollNumber, false, now).
		Order("created_at DESC").
		First(&attempt).Error; err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (a *AttemptPostgreSQL) CountByStudent(ctx context.Context, tx *gorm.DB, examID uint, rollNumber string) (int64, error) {
	return a.helpers.CountAttemptsByRoll(ctx, examID, rollNumber)
}

// Complete performs the one-way open-to-submitted transition with a
// conditional update. RowsAffected == 0 means another submit won the race or
// the attempt was already closed.
func (a *AttemptPostgreSQL) Complete(ctx context.Context, tx *gorm.DB, id uint, completion repositories.AttemptCompletion) (bool, error) {
	db := a.getDB(tx)

	result := db.WithContext(ctx).Model(&models.Attempt{}).
		Where("id = ? AND submitted = ?", id, false).
		Updates(map[string]interface{}{
			"submitted":       true,
			"completed_at":    completion.CompletedAt,
			"score":           completion.Score,
			"correct_answers": completion.CorrectAnswers,
			"total_questions": completion.TotalQuestions,
			"answers":         completion.Answers,
			"late":            completion.Late,
		})
	if result.Error != nil {
		return false, fmt.Errorf("failed to complete attempt: %w", result.Error)
	}

	return result.RowsAffected > 0, nil
}

// IncrementViolation bumps violation_count with a store-side expression so
// concurrent events never lose updates. The submitted guard rejects events
// arriving after submission.
func (a *AttemptPostgreSQL) IncrementViolation(ctx context.Context, tx *gorm.DB, id uint) (bool, error) {
	db := a.getDB(tx)

	result := db.WithContext(ctx).Model(&models.Attempt{}).
		Where("id = ? AND submitted = ?", id, false).
		UpdateColumn("violation_count", gorm.Expr("violation_count + ?", 1))
	if result.Error != nil {
		return false, fmt.Errorf("failed to increment violation count: %w", result.Error)
	}

	return result.RowsAffected > 0, nil
}

func (a *AttemptPostgreSQL) GetSubmittedByExam(ctx context.Context, tx *gorm.DB, examID uint) ([]*models.Attempt, error) {
	db := a.getDB(tx)
	var attempts []*models.Attempt
	if err := db.WithContext(ctx).
		Where("exam_id = ? AND submitted = ?", examID, true).
		Order("score DESC, completed_at ASC").
		Find(&attempts).Error; err != nil {
		return nil, fmt.Errorf("failed to get submitted attempts: %w", err)
	}
	return attempts, nil
}

func (a *AttemptPostgreSQL) List(ctx context.Context, tx *gorm.DB, filters repositories.AttemptFilters) ([]*models.Attempt, int64, error) {
	db := a.getDB(tx)
	var attempts []*models.Attempt
	var total int64

	// apply filters first
	query := db.WithContext(ctx).Model(&models.Attempt{})
	query = a.helpers.ApplyAttemptFilters(query, filters)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	// then pagination and sorting
	query = a.helpers.ApplyPaginationAndSort(query, filters.SortBy, filters.SortOrder, filters.Limit, filters.Offset)

	if err := query.Find(&attempts).Error; err != nil {
		return nil, 0, err
	}

	return attempts, total, nil
}

// getDB returns the transaction DB if provided, otherwise the default DB.
func (a *AttemptPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return a.db
}
