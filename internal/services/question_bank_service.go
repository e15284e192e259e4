package services

import (
	"context"
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"github.com/examstack/exam-service/internal/models"
	"github.com/examstack/exam-service/internal/repositories"
	"github.com/examstack/exam-service/internal/validator"
)

type questionBankService struct {
	repo      repositories.Repository
	db        *gorm.DB
	logger    *slog.Logger
	validator *validator.Validator
}

func NewQuestionBankService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, v *validator.Validator) QuestionBankService {
	return &questionBankService{
		repo:      repo,
		db:        db,
		logger:    logger,
		validator: v,
	}
}

// ===== FOLDERS =====

func (s *questionBankService) CreateFolder(ctx context.Context, req *CreateFolderRequest, ownerID string) (*models.BankFolder, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	if req.ParentID != nil {
		if _, err := s.ownedFolder(ctx, *req.ParentID, ownerID); err != nil {
			return nil, err
		}
	}

	folder := &models.BankFolder{
		Name:     req.Name,
		OwnerID:  ownerID,
		ParentID: req.ParentID,
	}

	if err := s.repo.Bank().CreateFolder(ctx, s.db, folder); err != nil {
		return nil, fmt.Errorf("failed to create folder: %w", err)
	}

	s.logger.Info("Bank folder created", "folder_id", folder.ID, "owner_id", ownerID)
	return folder, nil
}

func (s *questionBankService) UpdateFolder(ctx context.Context, id uint, req *UpdateFolderRequest, ownerID string) (*models.BankFolder, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	folder, err := s.ownedFolder(ctx, id, ownerID)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		folder.Name = *req.Name
	}

	if req.ParentID != nil {
		if *req.ParentID == folder.ID {
			return nil, ErrFolderCycle
		}
		parent, err := s.ownedFolder(ctx, *req.ParentID, ownerID)
		if err != nil {
			return nil, err
		}
		descendant, err := s.isDescendant(ctx, parent, folder.ID, ownerID)
		if err != nil {
			return nil, err
		}
		if descendant {
			return nil, ErrFolderCycle
		}
		folder.ParentID = req.ParentID
	}

	if err := s.repo.Bank().UpdateFolder(ctx, s.db, folder); err != nil {
		return nil, fmt.Errorf("failed to update folder: %w", err)
	}

	return folder, nil
}

func (s *questionBankService) DeleteFolder(ctx context.Context, id uint, ownerID string) error {
	folder, err := s.ownedFolder(ctx, id, ownerID)
	if err != nil {
		return err
	}

	err = s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		// Reparent children and contained questions to the deleted
		// folder's parent so nothing is orphaned.
		folders, err := txRepo.Bank().ListFolders(ctx, nil, ownerID)
		if err != nil {
			return err
		}
		for _, child := range folders {
			if child.ParentID != nil && *child.ParentID == folder.ID {
				child.ParentID = folder.ParentID
				if err := txRepo.Bank().UpdateFolder(ctx, nil, child); err != nil {
					return err
				}
			}
		}

		questions, err := txRepo.Bank().ListQuestions(ctx, nil, ownerID, &folder.ID)
		if err != nil {
			return err
		}
		for _, question := range questions {
			question.FolderID = folder.ParentID
			if err := txRepo.Bank().UpdateQuestion(ctx, nil, question); err != nil {
				return err
			}
		}

		return txRepo.Bank().DeleteFolder(ctx, nil, folder.ID)
	})
	if err != nil {
		return fmt.Errorf("failed to delete folder: %w", err)
	}

	s.logger.Info("Bank folder deleted", "folder_id", id, "owner_id", ownerID)
	return nil
}

func (s *questionBankService) ListFolders(ctx context.Context, ownerID string) ([]*models.BankFolder, error) {
	folders, err := s.repo.Bank().ListFolders(ctx, s.db, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list folders: %w", err)
	}
	return folders, nil
}

// ===== QUESTIONS =====

func (s *questionBankService) CreateQuestion(ctx context.Context, req *CreateBankQuestionRequest, ownerID string) (*models.BankQuestion, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	if err := validateOptions(req.Options, req.CorrectOption); err != nil {
		return nil, err
	}
	if req.FolderID != nil {
		if _, err := s.ownedFolder(ctx, *req.FolderID, ownerID); err != nil {
			return nil, err
		}
	}

	options, err := models.EncodeOptions(req.Options)
	if err != nil {
		return nil, fmt.Errorf("failed to encode options: %w", err)
	}

	question := &models.BankQuestion{
		OwnerID:       ownerID,
		FolderID:      req.FolderID,
		Text:          req.Text,
		Options:       options,
		CorrectOption: req.CorrectOption,
		Marks:         req.Marks,
		NegativeMarks: req.NegativeMarks,
	}

	if err := s.repo.Bank().CreateQuestion(ctx, s.db, question); err != nil {
		return nil, fmt.Errorf("failed to create bank question: %w", err)
	}

	return question, nil
}

func (s *questionBankService) UpdateQuestion(ctx context.Context, id uint, req *CreateBankQuestionRequest, ownerID string) (*models.BankQuestion, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	if err := validateOptions(req.Options, req.CorrectOption); err != nil {
		return nil, err
	}

	question, err := s.ownedQuestion(ctx, id, ownerID)
	if err != nil {
		return nil, err
	}

	if req.FolderID != nil {
		if _, err := s.ownedFolder(ctx, *req.FolderID, ownerID); err != nil {
			return nil, err
		}
	}

	options, err := models.EncodeOptions(req.Options)
	if err != nil {
		return nil, fmt.Errorf("failed to encode options: %w", err)
	}

	question.FolderID = req.FolderID
	question.Text = req.Text
	question.Options = options
	question.CorrectOption = req.CorrectOption
	question.Marks = req.Marks
	question.NegativeMarks = req.NegativeMarks

	if err := s.repo.Bank().UpdateQuestion(ctx, s.db, question); err != nil {
		return nil, fmt.Errorf("failed to update bank question: %w", err)
	}

	return question, nil
}

func (s *questionBankService) DeleteQuestion(ctx context.Context, id uint, ownerID string) error {
	if _, err := s.ownedQuestion(ctx, id, ownerID); err != nil {
		return err
	}

	if err := s.repo.Bank().DeleteQuestion(ctx, s.db, id); err != nil {
		return fmt.Errorf("failed to delete bank question: %w", err)
	}

	return nil
}

func (s *questionBankService) ListQuestions(ctx context.Context, ownerID string, folderID *uint) ([]*models.BankQuestion, error) {
	if folderID != nil {
		if _, err := s.ownedFolder(ctx, *folderID, ownerID); err != nil {
			return nil, err
		}
	}

	questions, err := s.repo.Bank().ListQuestions(ctx, s.db, ownerID, folderID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bank questions: %w", err)
	}
	return questions, nil
}

func (s *questionBankService) CopyToExam(ctx context.Context, bankQuestionID, examID uint, userID string) (*QuestionResponse, error) {
	bankQuestion, err := s.ownedQuestion(ctx, bankQuestionID, userID)
	if err != nil {
		return nil, err
	}

	exam, err := s.repo.Exam().GetByID(ctx, s.db, examID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("failed to get exam: %w", err)
	}
	if exam.CreatedBy != userID {
		return nil, NewPermissionError(userID, exam.ID, "exam", "add_question", "not the exam owner")
	}
	if exam.Status != models.ExamDraft {
		return nil, ErrExamNotEditable
	}

	count, err := s.repo.Question().CountByExam(ctx, s.db, examID)
	if err != nil {
		return nil, fmt.Errorf("failed to count questions: %w", err)
	}

	question := &models.Question{
		ExamID:        examID,
		Text:          bankQuestion.Text,
		Options:       bankQuestion.Options,
		CorrectOption: bankQuestion.CorrectOption,
		Marks:         bankQuestion.Marks,
		NegativeMarks: bankQuestion.NegativeMarks,
		DisplayOrder:  int(count) + 1,
	}

	if err := s.repo.Question().Create(ctx, s.db, question); err != nil {
		return nil, fmt.Errorf("failed to copy question: %w", err)
	}

	s.logger.Info("Bank question copied to exam",
		"bank_question_id", bankQuestionID,
		"exam_id", examID,
		"question_id", question.ID)

	options, err := question.DecodeOptions()
	if err != nil {
		return nil, fmt.Errorf("failed to decode options: %w", err)
	}

	return &QuestionResponse{Question: question, Options: options}, nil
}

// ===== HELPERS =====

func (s *questionBankService) ownedFolder(ctx context.Context, id uint, ownerID string) (*models.BankFolder, error) {
	folder, err := s.repo.Bank().GetFolder(ctx, s.db, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrFolderNotFound
		}
		return nil, fmt.Errorf("failed to get folder: %w", err)
	}
	if folder.OwnerID != ownerID {
		return nil, NewPermissionError(ownerID, folder.ID, "bank_folder", "access", "not the folder owner")
	}
	return folder, nil
}

func (s *questionBankService) ownedQuestion(ctx context.Context, id uint, ownerID string) (*models.BankQuestion, error) {
	question, err := s.repo.Bank().GetQuestion(ctx, s.db, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrQuestionNotFound
		}
		return nil, fmt.Errorf("failed to get bank question: %w", err)
	}
	if question.OwnerID != ownerID {
		return nil, NewPermissionError(ownerID, question.ID, "bank_question", "access", "not the question owner")
	}
	return question, nil
}

// isDescendant walks upward from start following parent references and
// reports whether target is an ancestor of start. The walk is bounded by
// the owner's folder count so a corrupted parent chain cannot loop forever.
func (s *questionBankService) isDescendant(ctx context.Context, start *models.BankFolder, target uint, ownerID string) (bool, error) {
	limit, err := s.repo.Bank().CountFolders(ctx, s.db, ownerID)
	if err != nil {
		return false, fmt.Errorf("failed to count folders: %w", err)
	}

	current := start
	for steps := int64(0); current.ParentID != nil; steps++ {
		if steps > limit {
			return false, ErrFolderCycle
		}
		if *current.ParentID == target {
			return true, nil
		}
		current, err = s.repo.Bank().GetFolder(ctx, s.db, *current.ParentID)
		if err != nil {
			if repositories.IsNotFoundError(err) {
				return false, nil
			}
			return false, fmt.Errorf("failed to get folder: %w", err)
		}
	}

	return false, nil
}
