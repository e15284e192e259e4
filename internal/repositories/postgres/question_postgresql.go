package postgres

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/examstack/exam-service/internal/cache"
	"github.com/examstack/exam-service/internal/models"
	"github.com/examstack/exam-service/internal/repositories"
)

type QuestionPostgreSQL struct {
	db           *gorm.DB
	helpers      *SharedHelpers
	cacheManager *cache.CacheManager
}

func NewQuestionPostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.QuestionRepository {
	return &QuestionPostgreSQL{
		db:           db,
		helpers:      NewSharedHelpers(db),
		cacheManager: cache.NewCacheManager(redisClient),
	}
}

func (q *QuestionPostgreSQL) Create(ctx context.Context, tx *gorm.DB, question *models.Question) error {
	db := q.getDB(tx)
	if err := db.WithContext(ctx).Create(question).Error; err != nil {
		return fmt.Errorf("failed to create question: %w", err)
	}

	q.cacheManager.InvalidateExam(ctx, question.ExamID)
	return nil
}

func (q *QuestionPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Question, error) {
	db := q.getDB(tx)
	var question models.Question
	if err := db.WithContext(ctx).First(&question, id).Error; err != nil {
		return nil, err
	}
	return &question, nil
}

func (q *QuestionPostgreSQL) GetByExam(ctx context.Context, tx *gorm.DB, examID uint) ([]*models.Question, error) {
	db := q.getDB(tx)
	cacheKey := fmt.Sprintf("exam:%d:questions", examID)
	var questions []*models.Question

	err := q.cacheManager.Question.CacheOrExecute(ctx, cacheKey, &questions, cache.QuestionCacheConfig.TTL, func() (interface{}, error) {
		var dbQuestions []*models.Question
		if err := db.WithContext(ctx).
			Where("exam_id = ?", examID).
			Order("display_order ASC, id ASC").
			Find(&dbQuestions).Error; err != nil {
			return nil, fmt.Errorf("failed to get questions by exam: %w", err)
		}
		return dbQuestions, nil
	})

	return questions, err
}

func (q *QuestionPostgreSQL) Update(ctx context.Context, tx *gorm.DB, question *models.Question) error {
	db := q.getDB(tx)
	if err := db.WithContext(ctx).Save(question).Error; err != nil {
		return fmt.Errorf("failed to update question: %w", err)
	}

	q.cacheManager.Question.Delete(ctx, fmt.Sprintf("exam:%d:questions", question.ExamID))
	q.cacheManager.InvalidateExam(ctx, question.ExamID)
	return nil
}

func (q *QuestionPostgreSQL) Delete(ctx context.Context, tx *gorm.DB, id uint) error {
	db := q.getDB(tx)

	// Fetch first so the exam cache can be invalidated.
	question, err := q.GetByID(ctx, tx, id)
	if err != nil {
		return err
	}

	if err := db.WithContext(ctx).Delete(&models.Question{}, id).Error; err != nil {
		return fmt.Errorf("failed to delete question: %w", err)
	}

	q.cacheManager.Question.Delete(ctx, fmt.Sprintf("exam:%d:questions", question.ExamID))
	q.cacheManager.InvalidateExam(ctx, question.ExamID)
	return nil
}

func (q *QuestionPostgreSQL) CountByExam(ctx context.Context, tx *gorm.DB, examID uint) (int64, error) {
	return q.helpers.CountQuestions(ctx, examID)
}

func (q *QuestionPostgreSQL) Reorder(ctx context.Context, tx *gorm.DB, examID uint, orderedIDs []uint) error {
	db := q.getDB(tx)

	err := db.WithContext(ctx).Transaction(func(txInner *gorm.DB) error {
		for position, id := range orderedIDs {
			result := txInner.Model(&models.Question{}).
				Where("id = ? AND exam_id = ?", id, examID).
				Update("display_order", position)
			if result.Error != nil {
				return fmt.Errorf("failed to reorder question %d: %w", id, result.Error)
			}
			if result.RowsAffected == 0 {
				return fmt.Errorf("question %d does not belong to exam %d: %w", id, examID, gorm.ErrRecordNotFound)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	q.cacheManager.Question.Delete(ctx, fmt.Sprintf("exam:%d:questions", examID))
	return nil
}

func (q *QuestionPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return q.db
}
