package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/examstack/exam-service/internal/models"
	"github.com/examstack/exam-service/internal/repositories"
)

type BankPostgreSQL struct {
	db *gorm.DB
}

func NewBankPostgreSQL(db *gorm.DB) repositories.BankRepository {
	return &BankPostgreSQL{db: db}
}

// ===== FOLDERS =====

func (b *BankPostgreSQL) CreateFolder(ctx context.Context, tx *gorm.DB, folder *models.BankFolder) error {
	db := b.getDB(tx)
	if err := db.WithContext(ctx).Create(folder).Error; err != nil {
		return fmt.Errorf("failed to create bank folder: %w", err)
	}
	return nil
}

func (b *BankPostgreSQL) GetFolder(ctx context.Context, tx *gorm.DB, id uint) (*models.BankFolder, error) {
	db := b.getDB(tx)
	var folder models.BankFolder
	if err := db.WithContext(ctx).First(&folder, id).Error; err != nil {
		return nil, fmt.Errorf("failed to get bank folder: %w", err)
	}
	return &folder, nil
}

func (b *BankPostgreSQL) UpdateFolder(ctx context.Context, tx *gorm.DB, folder *models.BankFolder) error {
	db := b.getDB(tx)
	if err := db.WithContext(ctx).Save(folder).Error; err != nil {
		return fmt.Errorf("failed to update bank folder: %w", err)
	}
	return nil
}

func (b *BankPostgreSQL) DeleteFolder(ctx context.Context, tx *gorm.DB, id uint) error {
	db := b.getDB(tx)
	result := db.WithContext(ctx).Delete(&models.BankFolder{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete bank folder: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("failed to delete bank folder: %w", gorm.ErrRecordNotFound)
	}
	return nil
}

func (b *BankPostgreSQL) ListFolders(ctx context.Context, tx *gorm.DB, ownerID string) ([]*models.BankFolder, error) {
	db := b.getDB(tx)
	var folders []*models.BankFolder
	if err := db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("name ASC").
		Find(&folders).Error; err != nil {
		return nil, fmt.Errorf("failed to list bank folders: %w", err)
	}
	return folders, nil
}

func (b *BankPostgreSQL) CountFolders(ctx context.Context, tx *gorm.DB, ownerID string) (int64, error) {
	db := b.getDB(tx)
	var count int64
	if err := db.WithContext(ctx).
		Model(&models.BankFolder{}).
		Where("owner_id = ?", ownerID).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count bank folders: %w", err)
	}
	return count, nil
}

// ===== QUESTIONS =====

func (b *BankPostgreSQL) CreateQuestion(ctx context.Context, tx *gorm.DB, question *models.BankQuestion) error {
	db := b.getDB(tx)
	if err := db.WithContext(ctx).Create(question).Error; err != nil {
		return fmt.Errorf("failed to create bank question: %w", err)
	}
	return nil
}

func (b *BankPostgreSQL) GetQuestion(ctx context.Context, tx *gorm.DB, id uint) (*models.BankQuestion, error) {
	db := b.getDB(tx)
	var question models.BankQuestion
	if err := db.WithContext(ctx).First(&question, id).Error; err != nil {
		return nil, fmt.Errorf("failed to get bank question: %w", err)
	}
	return &question, nil
}

func (b *BankPostgreSQL) UpdateQuestion(ctx context.Context, tx *gorm.DB, question *models.BankQuestion) error {
	db := b.getDB(tx)
	if err := db.WithContext(ctx).Save(question).Error; err != nil {
		return fmt.Errorf("failed to update bank question: %w", err)
	}
	return nil
}

func (b *BankPostgreSQL) DeleteQuestion(ctx context.Context, tx *gorm.DB, id uint) error {
	db := b.getDB(tx)
	result := db.WithContext(ctx).Delete(&models.BankQuestion{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete bank question: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("failed to delete bank question: %w", gorm.ErrRecordNotFound)
	}
	return nil
}

func (b *BankPostgreSQL) ListQuestions(ctx context.Context, tx *gorm.DB, ownerID string, folderID *uint) ([]*models.BankQuestion, error) {
	db := b.getDB(tx)
	query := db.WithContext(ctx).Where("owner_id = ?", ownerID)
	if folderID != nil {
		query = query.Where("folder_id = ?", *folderID)
	}

	var questions []*models.BankQuestion
	if err := query.Order("created_at DESC").Find(&questions).Error; err != nil {
		return nil, fmt.Errorf("failed to list bank questions: %w", err)
	}
	return questions, nil
}

func (b *BankPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return b.db
}
