package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/examstack/exam-service/internal/events"
	"github.com/examstack/exam-service/internal/metrics"
	"github.com/examstack/exam-service/internal/models"
	"github.com/examstack/exam-service/internal/repositories"
	"github.com/examstack/exam-service/internal/validator"
)

type attemptService struct {
	repo      repositories.Repository
	db        *gorm.DB
	logger    *slog.Logger
	validator *validator.Validator
	publisher events.Publisher

	// injectable clock for tests
	now func() time.Time
}

func NewAttemptService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, validator *validator.Validator, publisher events.Publisher) AttemptService {
	return &attemptService{
		repo:      repo,
		db:        db,
		logger:    logger,
		validator: validator,
		publisher: publisher,
		now:       time.Now,
	}
}

// ===== START =====

func (s *attemptService) Start(ctx context.Context, req *StartAttemptRequest) (*AttemptResponse, error) {
	s.logger.Info("Starting exam attempt",
		"exam_id", req.ExamID,
		"roll_number", req.RollNumber)

	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	exam, err := s.repo.Exam().GetByIDWithDetails(ctx, s.db, req.ExamID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("failed to get exam: %w", err)
	}

	if exam.Status != models.ExamPublished {
		return nil, ErrExamNotPublished
	}

	now := s.now()

	if exam.ScheduledStart != nil && now.Before(*exam.ScheduledStart) {
		return nil, ErrExamNotStarted
	}
	if exam.ScheduledEnd != nil && now.After(*exam.ScheduledEnd) {
		return nil, ErrExamClosed
	}

	if exam.RequirePassword {
		if exam.PasswordHash == nil {
			return nil, ErrWrongPassword
		}
		if err := bcrypt.CompareHashAndPassword([]byte(*exam.PasswordHash), []byte(req.Password)); err != nil {
			return nil, ErrWrongPassword
		}
	}

	// Same student resumes an open attempt instead of starting a new one
	existing, err := s.repo.Attempt().GetOpenAttempt(ctx, s.db, exam.ID, req.RollNumber, now)
	if err == nil {
		s.logger.Info("Resuming existing attempt", "attempt_id", existing.ID)
		return s.buildAttemptResponse(ctx, exam, existing, true, now)
	}
	if !repositories.IsNotFoundError(err) {
		return nil, fmt.Errorf("failed to check open attempts: %w", err)
	}

	if exam.MaxAttempts != nil {
		count, err := s.repo.Attempt().CountByStudent(ctx, s.db, exam.ID, req.RollNumber)
		if err != nil {
			return nil, fmt.Errorf("failed to count attempts: %w", err)
		}
		if count >= int64(*exam.MaxAttempts) {
			return nil, ErrAttemptLimitReached
		}
	}

	attempt := &models.Attempt{
		ExamID:      exam.ID,
		StudentName: req.StudentName,
		RollNumber:  req.RollNumber,
		StartedAt:   now,
		EndTime:     now.Add(time.Duration(exam.Duration) * time.Minute),
		ShuffleSeed: newShuffleSeed(),
	}

	if err := s.repo.Attempt().Create(ctx, s.db, attempt); err != nil {
		return nil, fmt.Errorf("failed to create attempt: %w", err)
	}

	metrics.AttemptsStarted.Inc()
	s.publishEvent(ctx, events.EventAttemptStarted, map[string]any{
		"attempt_id": attempt.ID,
		"exam_id":    exam.ID,
		"roll":       attempt.RollNumber,
	})

	s.logger.Info("Exam attempt started",
		"attempt_id", attempt.ID,
		"exam_id", exam.ID,
		"end_time", attempt.EndTime)

	return s.buildAttemptResponse(ctx, exam, attempt, false, now)
}

// ===== SUBMIT =====

func (s *attemptService) Submit(ctx context.Context, req *SubmitAttemptRequest) (*SubmitResult, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	attempt, err := s.repo.Attempt().GetByID(ctx, s.db, req.AttemptID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to get attempt: %w", err)
	}

	if attempt.Submitted {
		return nil, ErrAttemptAlreadySubmitted
	}

	exam, err := s.repo.Exam().GetByIDWithDetails(ctx, s.db, attempt.ExamID)
	if err != nil {
		return nil, fmt.Errorf("failed to get exam: %w", err)
	}

	now := s.now()
	late := attempt.Expired(now)
	if late && !exam.AllowLateSubmission {
		return nil, ErrAttemptExpired
	}

	questions, err := s.repo.Question().GetByExam(ctx, s.db, exam.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get questions: %w", err)
	}

	score, correct, err := scoreAnswers(exam, questions, req.Answers)
	if err != nil {
		return nil, err
	}

	answersJSON, err := models.EncodeAnswers(req.Answers)
	if err != nil {
		return nil, fmt.Errorf("failed to encode answers: %w", err)
	}

	completion := repositories.AttemptCompletion{
		CompletedAt:    now,
		Score:          score,
		CorrectAnswers: correct,
		TotalQuestions: len(questions),
		Answers:        answersJSON,
		Late:           late,
	}

	// Conditional update: exactly one of two racing submits wins
	updated, err := s.repo.Attempt().Complete(ctx, s.db, attempt.ID, completion)
	if err != nil {
		return nil, fmt.Errorf("failed to complete attempt: %w", err)
	}
	if !updated {
		return nil, ErrAttemptAlreadySubmitted
	}

	metrics.AttemptsSubmitted.Inc()
	s.publishEvent(ctx, events.EventAttemptSubmitted, map[string]any{
		"attempt_id": attempt.ID,
		"exam_id":    exam.ID,
		"score":      score,
		"late":       late,
	})

	s.logger.Info("Exam attempt submitted",
		"attempt_id", attempt.ID,
		"score", score,
		"correct", correct,
		"late", late)

	result := &SubmitResult{
		AttemptID:      attempt.ID,
		Submitted:      true,
		Late:           late,
		ResultsVisible: exam.ShowResultsImmediately,
	}
	if exam.ShowResultsImmediately {
		totalMarks := totalExamMarks(questions)
		passed := passThreshold(score, totalMarks, exam.PassPercentage)
		totalQuestions := len(questions)

		result.Score = &score
		result.TotalMarks = &totalMarks
		result.CorrectAnswers = &correct
		result.TotalQuestions = &totalQuestions
		result.Passed = &passed
		result.CompletedAt = &completion.CompletedAt
	}

	return result, nil
}

// ===== READ OPERATIONS =====

func (s *attemptService) GetStudentResult(ctx context.Context, attemptID uint, rollNumber string) (*StudentResult, error) {
	attempt, err := s.repo.Attempt().GetByIDWithDetails(ctx, s.db, attemptID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to get attempt: %w", err)
	}

	// Roll number doubles as the access token for result lookup
	if attempt.RollNumber != rollNumber {
		return nil, ErrAttemptNotFound
	}

	if !attempt.Submitted {
		return nil, ErrConflict
	}

	exam := attempt.Exam
	result := &StudentResult{
		AttemptID:      attempt.ID,
		ExamTitle:      exam.Title,
		StudentName:    attempt.StudentName,
		RollNumber:     attempt.RollNumber,
		ResultsVisible: exam.ShowResultsImmediately,
		Late:           attempt.Late,
	}

	if !exam.ShowResultsImmediately {
		return result, nil
	}

	questions, err := s.repo.Question().GetByExam(ctx, s.db, exam.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get questions: %w", err)
	}

	totalMarks := totalExamMarks(questions)
	passed := passThreshold(attempt.Score, totalMarks, exam.PassPercentage)

	result.Score = &attempt.Score
	result.TotalMarks = &totalMarks
	result.CorrectAnswers = &attempt.CorrectAnswers
	result.TotalQuestions = &attempt.TotalQuestions
	result.Passed = &passed
	result.CompletedAt = attempt.CompletedAt

	return result, nil
}

func (s *attemptService) GetByID(ctx context.Context, id uint, userID string) (*models.Attempt, error) {
	attempt, err := s.repo.Attempt().GetByIDWithDetails(ctx, s.db, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to get attempt: %w", err)
	}

	if err := s.requireExamOwner(ctx, attempt.ExamID, userID, "read_attempt"); err != nil {
		return nil, err
	}

	return attempt, nil
}

func (s *attemptService) ListByExam(ctx context.Context, examID uint, filters repositories.AttemptFilters, userID string) ([]*models.Attempt, int64, error) {
	if err := s.requireExamOwner(ctx, examID, userID, "list_attempts"); err != nil {
		return nil, 0, err
	}

	filters.ExamID = &examID
	if filters.Limit <= 0 {
		filters.Limit = 50
	}

	attempts, total, err := s.repo.Attempt().List(ctx, s.db, filters)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list attempts: %w", err)
	}

	return attempts, total, nil
}
