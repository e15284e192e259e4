package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/examstack/exam-service/internal/events"
	"github.com/examstack/exam-service/internal/models"
	"github.com/examstack/exam-service/internal/repositories"
	"github.com/examstack/exam-service/internal/validator"
)

type examService struct {
	repo      repositories.Repository
	db        *gorm.DB
	logger    *slog.Logger
	validator *validator.Validator
	publisher events.Publisher
}

func NewExamService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, validator *validator.Validator, publisher events.Publisher) ExamService {
	return &examService{
		repo:      repo,
		db:        db,
		logger:    logger,
		validator: validator,
		publisher: publisher,
	}
}

// ===== CORE CRUD OPERATIONS =====

func (s *examService) Create(ctx context.Context, req *CreateExamRequest, creatorID string) (*ExamResponse, error) {
	s.logger.Info("Creating exam", "title", req.Title, "creator_id", creatorID)

	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	if err := s.requireTeacher(ctx, creatorID); err != nil {
		return nil, err
	}

	if req.ScheduledStart != nil && req.ScheduledEnd != nil && !req.ScheduledEnd.After(*req.ScheduledStart) {
		return nil, NewBusinessRuleError("schedule_window", "scheduled end must be after scheduled start", map[string]interface{}{
			"scheduled_start": req.ScheduledStart,
			"scheduled_end":   req.ScheduledEnd,
		})
	}

	if req.RequirePassword && req.Password == "" {
		return nil, NewBusinessRuleError("password_required", "a password must be set when password protection is enabled", nil)
	}

	exam := &models.Exam{
		Title:                  req.Title,
		Description:            req.Description,
		Duration:               req.Duration,
		Status:                 models.ExamDraft,
		PassPercentage:         40,
		NegativeMarking:        req.NegativeMarking,
		NegativeMarks:          req.NegativeMarks,
		RequirePassword:        req.RequirePassword,
		MaxAttempts:            req.MaxAttempts,
		ScheduledStart:         req.ScheduledStart,
		ScheduledEnd:           req.ScheduledEnd,
		AllowLateSubmission:    req.AllowLateSubmission,
		ShowResultsImmediately: req.ShowResultsImmediately,
		CreatedBy:              creatorID,
	}
	if req.PassPercentage != nil {
		exam.PassPercentage = *req.PassPercentage
	}

	if req.RequirePassword {
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash exam password: %w", err)
		}
		hashStr := string(hash)
		exam.PasswordHash = &hashStr
	}

	err := s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		if err := txRepo.Exam().Create(ctx, nil, exam); err != nil {
			return err
		}

		settings := defaultSettings(exam.ID)
		applySettingsRequest(settings, req.Settings)
		return txRepo.Exam().UpdateSettings(ctx, nil, settings)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create exam: %w", err)
	}

	s.logger.Info("Exam created", "exam_id", exam.ID, "creator_id", creatorID)

	return s.toResponse(exam, creatorID), nil
}

func (s *examService) GetByID(ctx context.Context, id uint, userID string) (*ExamResponse, error) {
	exam, err := s.getOwnedExam(ctx, id, userID, "read")
	if err != nil {
		return nil, err
	}
	return s.toResponse(exam, userID), nil
}

func (s *examService) GetByIDWithDetails(ctx context.Context, id uint, userID string) (*ExamResponse, error) {
	exam, err := s.repo.Exam().GetByIDWithDetails(ctx, s.db, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("failed to get exam: %w", err)
	}

	if err := s.requireOwnerOrAdmin(ctx, exam, userID, "read"); err != nil {
		return nil, err
	}

	return s.toResponse(exam, userID), nil
}

func (s *examService) Update(ctx context.Context, id uint, req *UpdateExamRequest, userID string) (*ExamResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	exam, err := s.getOwnedExam(ctx, id, userID, "update")
	if err != nil {
		return nil, err
	}

	if exam.Status == models.ExamArchived {
		return nil, ErrExamNotEditable
	}

	// Published exams only accept window extensions and late-submission
	// toggles; everything else would change the exam under students.
	if exam.Status == models.ExamPublished && hasRestrictedUpdate(req) {
		return nil, ErrExamNotEditable
	}

	applyExamUpdate(exam, req)

	if exam.ScheduledStart != nil && exam.ScheduledEnd != nil && !exam.ScheduledEnd.After(*exam.ScheduledStart) {
		return nil, NewBusinessRuleError("schedule_window", "scheduled end must be after scheduled start", nil)
	}

	if req.Password != nil && *req.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(*req.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash exam password: %w", err)
		}
		hashStr := string(hash)
		exam.PasswordHash = &hashStr
	}
	if exam.RequirePassword && exam.PasswordHash == nil {
		return nil, NewBusinessRuleError("password_required", "a password must be set when password protection is enabled", nil)
	}

	err = s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		if err := txRepo.Exam().Update(ctx, nil, exam); err != nil {
			return err
		}

		if req.Settings != nil {
			settings, err := txRepo.Exam().GetSettings(ctx, nil, exam.ID)
			if err != nil {
				if !repositories.IsNotFoundError(err) {
					return err
				}
				settings = defaultSettings(exam.ID)
			}
			applySettingsRequest(settings, req.Settings)
			return txRepo.Exam().UpdateSettings(ctx, nil, settings)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update exam: %w", err)
	}

	return s.toResponse(exam, userID), nil
}

func (s *examService) Delete(ctx context.Context, id uint, userID string) error {
	exam, err := s.getOwnedExam(ctx, id, userID, "delete")
	if err != nil {
		return err
	}

	_, total, err := s.repo.Attempt().List(ctx, s.db, repositories.AttemptFilters{
		ExamID: &exam.ID,
		Limit:  1,
	})
	if err != nil {
		return fmt.Errorf("failed to count attempts: %w", err)
	}
	if total > 0 {
		return NewBusinessRuleError("exam_has_attempts", "cannot delete an exam students have attempted", map[string]interface{}{
			"exam_id": exam.ID,
		})
	}

	if err := s.repo.Exam().Delete(ctx, s.db, id); err != nil {
		return fmt.Errorf("failed to delete exam: %w", err)
	}

	s.logger.Info("Exam deleted", "exam_id", id, "user_id", userID)
	return nil
}

func (s *examService) List(ctx context.Context, filters repositories.ExamFilters, userID string) (*ExamListResponse, error) {
	user, err := s.repo.User().GetByID(ctx, userID)
	if err != nil {
		return nil, ErrUserNotFound
	}

	// Teachers only see their own exams
	if user.Role != models.RoleAdmin {
		filters.CreatedBy = &userID
	}

	if filters.Limit <= 0 {
		filters.Limit = 20
	}

	exams, total, err := s.repo.Exam().List(ctx, s.db, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list exams: %w", err)
	}

	responses := make([]*ExamResponse, 0, len(exams))
	for _, exam := range exams {
		responses = append(responses, s.toResponse(exam, userID))
	}

	page := 1
	if filters.Limit > 0 {
		page = (filters.Offset / filters.Limit) + 1
	}

	return &ExamListResponse{
		Exams: responses,
		Total: total,
		Page:  page,
		Size:  filters.Limit,
	}, nil
}

// ===== STATUS MANAGEMENT =====

func (s *examService) Publish(ctx context.Context, id uint, userID string) error {
	exam, err := s.getOwnedExam(ctx, id, userID, "publish")
	if err != nil {
		return err
	}

	if exam.Status != models.ExamDraft {
		return NewBusinessRuleError("invalid_transition", fmt.Sprintf("cannot publish exam in %s status", exam.Status), map[string]interface{}{
			"status": exam.Status,
		})
	}

	count, err := s.repo.Question().CountByExam(ctx, s.db, id)
	if err != nil {
		return fmt.Errorf("failed to count questions: %w", err)
	}
	if count == 0 {
		return ErrExamHasNoQuestions
	}

	now := time.Now()
	exam.Status = models.ExamPublished
	exam.PublishedAt = &now

	if err := s.repo.Exam().Update(ctx, s.db, exam); err != nil {
		return fmt.Errorf("failed to publish exam: %w", err)
	}

	s.publishEvent(ctx, events.EventExamPublished, map[string]any{
		"exam_id": exam.ID,
		"title":   exam.Title,
	})

	s.logger.Info("Exam published", "exam_id", id, "user_id", userID)
	return nil
}

func (s *examService) Archive(ctx context.Context, id uint, userID string) error {
	exam, err := s.getOwnedExam(ctx, id, userID, "archive")
	if err != nil {
		return err
	}

	if exam.Status == models.ExamArchived {
		return nil
	}

	exam.Status = models.ExamArchived
	if err := s.repo.Exam().Update(ctx, s.db, exam); err != nil {
		return fmt.Errorf("failed to archive exam: %w", err)
	}

	s.logger.Info("Exam archived", "exam_id", id, "user_id", userID)
	return nil
}

// ===== SETTINGS =====

func (s *examService) GetSettings(ctx context.Context, examID uint, userID string) (*models.ExamSettings, error) {
	if _, err := s.getOwnedExam(ctx, examID, userID, "read_settings"); err != nil {
		return nil, err
	}

	settings, err := s.repo.Exam().GetSettings(ctx, s.db, examID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return defaultSettings(examID), nil
		}
		return nil, fmt.Errorf("failed to get exam settings: %w", err)
	}

	return settings, nil
}

func (s *examService) UpdateSettings(ctx context.Context, examID uint, req *ExamSettingsRequest, userID string) (*models.ExamSettings, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	if _, err := s.getOwnedExam(ctx, examID, userID, "update_settings"); err != nil {
		return nil, err
	}

	settings, err := s.repo.Exam().GetSettings(ctx, s.db, examID)
	if err != nil {
		if !repositories.IsNotFoundError(err) {
			return nil, fmt.Errorf("failed to get exam settings: %w", err)
		}
		settings = defaultSettings(examID)
	}

	applySettingsRequest(settings, req)

	if err := s.repo.Exam().UpdateSettings(ctx, s.db, settings); err != nil {
		return nil, fmt.Errorf("failed to update exam settings: %w", err)
	}

	return settings, nil
}
