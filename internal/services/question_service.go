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

type questionService struct {
	repo      repositories.Repository
	db        *gorm.DB
	logger    *slog.Logger
	validator *validator.Validator
}

func NewQuestionService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, validator *validator.Validator) QuestionService {
	return &questionService{
		repo:      repo,
		db:        db,
		logger:    logger,
		validator: validator,
	}
}

func (s *questionService) Create(ctx context.Context, examID uint, req *CreateQuestionRequest, userID string) (*QuestionResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	if err := validateOptions(req.Options, req.CorrectOption); err != nil {
		return nil, err
	}

	exam, err := s.editableExam(ctx, examID, userID, "add_question")
	if err != nil {
		return nil, err
	}

	optionsJSON, err := models.EncodeOptions(req.Options)
	if err != nil {
		return nil, fmt.Errorf("failed to encode options: %w", err)
	}

	question := &models.Question{
		ExamID:        exam.ID,
		Text:          req.Text,
		Options:       optionsJSON,
		CorrectOption: req.CorrectOption,
		Marks:         req.Marks,
		NegativeMarks: req.NegativeMarks,
		DisplayOrder:  req.DisplayOrder,
	}

	if question.DisplayOrder == 0 {
		count, err := s.repo.Question().CountByExam(ctx, s.db, exam.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to count questions: %w", err)
		}
		question.DisplayOrder = int(count) + 1
	}

	if err := s.repo.Question().Create(ctx, s.db, question); err != nil {
		return nil, fmt.Errorf("failed to create question: %w", err)
	}

	s.logger.Info("Question created", "question_id", question.ID, "exam_id", exam.ID)

	return &QuestionResponse{Question: question, Options: req.Options}, nil
}

func (s *questionService) GetByID(ctx context.Context, id uint, userID string) (*QuestionResponse, error) {
	question, err := s.repo.Question().GetByID(ctx, s.db, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrQuestionNotFound
		}
		return nil, fmt.Errorf("failed to get question: %w", err)
	}

	if _, err := s.ownedExam(ctx, question.ExamID, userID, "read_question"); err != nil {
		return nil, err
	}

	options, err := question.DecodeOptions()
	if err != nil {
		return nil, fmt.Errorf("failed to decode options: %w", err)
	}

	return &QuestionResponse{Question: question, Options: options}, nil
}

func (s *questionService) GetByExam(ctx context.Context, examID uint, userID string) ([]*QuestionResponse, error) {
	if _, err := s.ownedExam(ctx, examID, userID, "read_questions"); err != nil {
		return nil, err
	}

	questions, err := s.repo.Question().GetByExam(ctx, s.db, examID)
	if err != nil {
		return nil, fmt.Errorf("failed to get questions: %w", err)
	}

	responses := make([]*QuestionResponse, 0, len(questions))
	for _, question := range questions {
		options, err := question.DecodeOptions()
		if err != nil {
			return nil, fmt.Errorf("failed to decode options for question %d: %w", question.ID, err)
		}
		responses = append(responses, &QuestionResponse{Question: question, Options: options})
	}

	return responses, nil
}

func (s *questionService) Update(ctx context.Context, id uint, req *UpdateQuestionRequest, userID string) (*QuestionResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	question, err := s.repo.Question().GetByID(ctx, s.db, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrQuestionNotFound
		}
		return nil, fmt.Errorf("failed to get question: %w", err)
	}

	if _, err := s.editableExam(ctx, question.ExamID, userID, "update_question"); err != nil {
		return nil, err
	}

	if req.Text != nil {
		question.Text = *req.Text
	}
	if req.Marks != nil {
		question.Marks = *req.Marks
	}
	if req.NegativeMarks != nil {
		question.NegativeMarks = req.NegativeMarks
	}
	if req.DisplayOrder != nil {
		question.DisplayOrder = *req.DisplayOrder
	}
	if req.Options != nil {
		optionsJSON, err := models.EncodeOptions(req.Options)
		if err != nil {
			return nil, fmt.Errorf("failed to encode options: %w", err)
		}
		question.Options = optionsJSON
	}
	if req.CorrectOption != nil {
		question.CorrectOption = *req.CorrectOption
	}

	// Revalidate referential integrity against the final option set
	options, err := question.DecodeOptions()
	if err != nil {
		return nil, fmt.Errorf("failed to decode options: %w", err)
	}
	if err := validateOptions(options, question.CorrectOption); err != nil {
		return nil, err
	}

	if err := s.repo.Question().Update(ctx, s.db, question); err != nil {
		return nil, fmt.Errorf("failed to update question: %w", err)
	}

	return &QuestionResponse{Question: question, Options: options}, nil
}

func (s *questionService) Delete(ctx context.Context, id uint, userID string) error {
	question, err := s.repo.Question().GetByID(ctx, s.db, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrQuestionNotFound
		}
		return fmt.Errorf("failed to get question: %w", err)
	}

	if _, err := s.editableExam(ctx, question.ExamID, userID, "delete_question"); err != nil {
		return err
	}

	if err := s.repo.Question().Delete(ctx, s.db, id); err != nil {
		return fmt.Errorf("failed to delete question: %w", err)
	}

	s.logger.Info("Question deleted", "question_id", id, "exam_id", question.ExamID)
	return nil
}

func (s *questionService) Reorder(ctx context.Context, examID uint, orderedIDs []uint, userID string) error {
	if len(orderedIDs) == 0 {
		return ErrBadRequest
	}

	if _, err := s.editableExam(ctx, examID, userID, "reorder_questions"); err != nil {
		return err
	}

	if err := s.repo.Question().Reorder(ctx, s.db, examID, orderedIDs); err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrQuestionNotFound
		}
		return fmt.Errorf("failed to reorder questions: %w", err)
	}

	return nil
}

// ===== HELPERS =====

func (s *questionService) ownedExam(ctx context.Context, examID uint, userID, action string) (*models.Exam, error) {
	exam, err := s.repo.Exam().GetByID(ctx, s.db, examID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("failed to get exam: %w", err)
	}

	if exam.CreatedBy != userID {
		user, err := s.repo.User().GetByID(ctx, userID)
		if err != nil || user.Role != models.RoleAdmin {
			return nil, NewPermissionError(userID, examID, "exam", action, "not the exam owner")
		}
	}

	return exam, nil
}

func (s *questionService) editableExam(ctx context.Context, examID uint, userID, action string) (*models.Exam, error) {
	exam, err := s.ownedExam(ctx, examID, userID, action)
	if err != nil {
		return nil, err
	}

	if exam.Status != models.ExamDraft {
		return nil, ErrExamNotEditable
	}

	return exam, nil
}

// validateOptions enforces unique option ids and a correct option that
// references one of them.
func validateOptions(options []models.QuestionOption, correctOption string) error {
	seen := make(map[string]bool, len(options))
	correctFound := false

	for _, option := range options {
		if option.ID == "" || option.Text == "" {
			return NewBusinessRuleError("option_fields", "every option needs an id and text", nil)
		}
		if seen[option.ID] {
			return ErrDuplicateOptionID
		}
		seen[option.ID] = true
		if option.ID == correctOption {
			correctFound = true
		}
	}

	if !correctFound {
		return ErrInvalidCorrectOption
	}

	return nil
}
