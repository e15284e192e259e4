package postgres

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/examstack/exam-service/internal/models"
	"github.com/examstack/exam-service/internal/repositories"
)

// SharedHelpers contains common database operations used by several
// repositories.
type SharedHelpers struct {
	db *gorm.DB
}

func NewSharedHelpers(db *gorm.DB) *SharedHelpers {
	return &SharedHelpers{db: db}
}

// CountAttemptsByRoll counts all attempts (open and submitted) by one roll
// number for an exam.
func (h *SharedHelpers) CountAttemptsByRoll(ctx context.Context, examID uint, rollNumber string) (int64, error) {
	var count int64
	err := h.db.WithContext(ctx).
		Model(&models.Attempt{}).
		Where("exam_id = ? AND roll_number = ?", examID, rollNumber).
		Count(&count).Error
	return count, err
}

// CountQuestions counts questions attached to an exam.
func (h *SharedHelpers) CountQuestions(ctx context.Context, examID uint) (int64, error) {
	var count int64
	err := h.db.WithContext(ctx).
		Model(&models.Question{}).
		Where("exam_id = ?", examID).
		Count(&count).Error
	return count, err
}

// ApplyExamFilters applies common filters to exam queries.
func (h *SharedHelpers) ApplyExamFilters(query *gorm.DB, filters repositories.ExamFilters) *gorm.DB {
	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}
	if filters.CreatedBy != nil {
		query = query.Where("created_by = ?", *filters.CreatedBy)
	}
	if filters.Search != nil && strings.TrimSpace(*filters.Search) != "" {
		query = query.Where("title ILIKE ?", "%"+strings.TrimSpace(*filters.Search)+"%")
	}
	if filters.DateFrom != nil {
		query = query.Where("created_at >= ?", *filters.DateFrom)
	}
	if filters.DateTo != nil {
		query = query.Where("created_at <= ?", *filters.DateTo)
	}
	return query
}

// ApplyAttemptFilters applies common filters to attempt queries.
func (h *SharedHelpers) ApplyAttemptFilters(query *gorm.DB, filters repositories.AttemptFilters) *gorm.DB {
	if filters.ExamID != nil {
		query = query.Where("exam_id = ?", *filters.ExamID)
	}
	if filters.RollNumber != nil {
		query = query.Where("roll_number = ?", *filters.RollNumber)
	}
	if filters.Submitted != nil {
		query = query.Where("submitted = ?", *filters.Submitted)
	}
	if filters.Late != nil {
		query = query.Where("late = ?", *filters.Late)
	}
	return query
}

// ApplyPaginationAndSort applies sorting and pagination to a query. Sort
// columns are whitelisted to keep user input out of the ORDER BY clause.
func (h *SharedHelpers) ApplyPaginationAndSort(query *gorm.DB, sortBy, sortOrder string, limit, offset int) *gorm.DB {
	allowedSort := map[string]bool{
		"created_at":   true,
		"updated_at":   true,
		"title":        true,
		"score":        true,
		"completed_at": true,
		"started_at":   true,
	}

	if sortBy != "" && allowedSort[sortBy] {
		order := "ASC"
		if strings.EqualFold(sortOrder, "desc") {
			order = "DESC"
		}
		query = query.Order(fmt.Sprintf("%s %s", sortBy, order))
	} else {
		query = query.Order("created_at DESC")
	}

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	return query
}
