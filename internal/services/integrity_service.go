package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/examstack/exam-service/internal/events"
	"github.com/examstack/exam-service/internal/metrics"
	"github.com/examstack/exam-service/internal/models"
	"github.com/examstack/exam-service/internal/repositories"
	"github.com/examstack/exam-service/internal/validator"
)

type integrityService struct {
	repo      repositories.Repository
	db        *gorm.DB
	logger    *slog.Logger
	validator *validator.Validator
	publisher events.Publisher

	now func() time.Time
}

func NewIntegrityService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, validator *validator.Validator, publisher events.Publisher) IntegrityService {
	return &integrityService{
		repo:      repo,
		db:        db,
		logger:    logger,
		validator: validator,
		publisher: publisher,
		now:       time.Now,
	}
}

// ===== EVENT TRACKING =====

func (s *integrityService) TrackEvent(ctx context.Context, req *TrackEventRequest) (*TrackEventResult, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	eventType := models.IntegrityEventType(req.EventType)
	if !eventType.Valid() {
		return nil, ErrInvalidEventType
	}

	attempt, err := s.repo.Attempt().GetByIDWithDetails(ctx, s.db, req.AttemptID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to get attempt: %w", err)
	}

	if attempt.Submitted {
		return nil, ErrAttemptAlreadySubmitted
	}
	if attempt.Expired(s.now()) {
		return nil, ErrAttemptExpired
	}

	settings := attempt.Exam.Settings
	if !settings.AntiCheatEnabled {
		// Recording is off; report the current state without writing
		return &TrackEventResult{
			ViolationCount: attempt.ViolationCount,
			MaxViolations:  settings.MaxViolations,
			LimitExceeded:  attempt.ViolationCount > settings.MaxViolations,
			RiskLevel:      models.RiskLevelFor(attempt.ViolationCount, settings.MaxViolations),
		}, nil
	}

	var metadata datatypes.JSON
	if len(req.Metadata) > 0 {
		raw, err := json.Marshal(req.Metadata)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal event metadata: %w", err)
		}
		metadata = datatypes.JSON(raw)
	}

	event := &models.IntegrityEvent{
		AttemptID:  attempt.ID,
		EventType:  eventType,
		OccurredAt: s.now(),
		Metadata:   metadata,
	}

	// The event append and counter increment commit together. The increment
	// is a single UPDATE in the store, so concurrent trackers never lose
	// counts to read-modify-write races.
	var counted bool
	err = s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		if err := txRepo.Integrity().Create(ctx, nil, event); err != nil {
			return err
		}

		counted, err = txRepo.Attempt().IncrementViolation(ctx, nil, attempt.ID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to track integrity event: %w", err)
	}
	if !counted {
		return nil, ErrAttemptAlreadySubmitted
	}

	fresh, err := s.repo.Attempt().GetByID(ctx, s.db, attempt.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload attempt: %w", err)
	}

	metrics.IntegrityEvents.WithLabelValues(req.EventType).Inc()

	result := &TrackEventResult{
		ViolationCount: fresh.ViolationCount,
		MaxViolations:  settings.MaxViolations,
		LimitExceeded:  fresh.ViolationCount > settings.MaxViolations,
		RiskLevel:      models.RiskLevelFor(fresh.ViolationCount, settings.MaxViolations),
	}

	if result.LimitExceeded {
		s.publishEvent(ctx, events.EventViolationRecorded, map[string]any{
			"attempt_id":      attempt.ID,
			"exam_id":         attempt.ExamID,
			"event_type":      req.EventType,
			"violation_count": fresh.ViolationCount,
		})
	}

	s.logger.Info("Integrity event recorded",
		"attempt_id", attempt.ID,
		"event_type", req.EventType,
		"violation_count", fresh.ViolationCount)

	return result, nil
}

// ===== REPORTS =====

// GenerateReport builds the per-attempt integrity report. Authorization is
// fail-closed: only the exam owner or an admin gets anything back.
func (s *integrityService) GenerateReport(ctx context.Context, attemptID uint, userID string) (*IntegrityReport, error) {
	attempt, err := s.repo.Attempt().GetByIDWithDetails(ctx, s.db, attemptID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to get attempt: %w", err)
	}

	if err := s.requireExamOwner(ctx, &attempt.Exam, userID, "read_integrity"); err != nil {
		return nil, err
	}

	breakdown, err := s.repo.Integrity().CountByType(ctx, s.db, attemptID)
	if err != nil {
		return nil, fmt.Errorf("failed to count events: %w", err)
	}

	timeline, err := s.repo.Integrity().GetByAttempt(ctx, s.db, attemptID)
	if err != nil {
		return nil, fmt.Errorf("failed to get event timeline: %w", err)
	}

	maxViolations := attempt.Exam.Settings.MaxViolations

	return &IntegrityReport{
		AttemptID:      attempt.ID,
		ExamID:         attempt.ExamID,
		StudentName:    attempt.StudentName,
		RollNumber:     attempt.RollNumber,
		Submitted:      attempt.Submitted,
		ViolationCount: attempt.ViolationCount,
		MaxViolations:  maxViolations,
		RiskLevel:      models.RiskLevelFor(attempt.ViolationCount, maxViolations),
		EventsByType:   breakdown,
		Timeline:       timeline,
	}, nil
}

// CalculateExamIntegrity is a pure read across the submitted attempts of an
// exam, one row per attempt.
func (s *integrityService) CalculateExamIntegrity(ctx context.Context, examID uint, userID string) ([]*ExamIntegrityRow, error) {
	exam, err := s.repo.Exam().GetByID(ctx, s.db, examID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("failed to get exam: %w", err)
	}

	if err := s.requireExamOwner(ctx, exam, userID, "read_integrity"); err != nil {
		return nil, err
	}

	settings, err := s.repo.Exam().GetSettings(ctx, s.db, examID)
	if err != nil && !repositories.IsNotFoundError(err) {
		return nil, fmt.Errorf("failed to get exam settings: %w", err)
	}
	maxViolations := 0
	if settings != nil {
		maxViolations = settings.MaxViolations
	}

	submitted := true
	attempts, _, err := s.repo.Attempt().List(ctx, s.db, repositories.AttemptFilters{
		ExamID:    &examID,
		Submitted: &submitted,
		Limit:     10000,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list attempts: %w", err)
	}

	rows := make([]*ExamIntegrityRow, 0, len(attempts))
	for _, attempt := range attempts {
		rows = append(rows, &ExamIntegrityRow{
			AttemptID:      attempt.ID,
			StudentName:    attempt.StudentName,
			RollNumber:     attempt.RollNumber,
			Submitted:      attempt.Submitted,
			ViolationCount: attempt.ViolationCount,
			RiskLevel:      models.RiskLevelFor(attempt.ViolationCount, maxViolations),
		})
	}

	return rows, nil
}

// ===== HELPERS =====

func (s *integrityService) requireExamOwner(ctx context.Context, exam *models.Exam, userID, action string) error {
	if exam.CreatedBy == userID {
		return nil
	}

	user, err := s.repo.User().GetByID(ctx, userID)
	if err != nil || user.Role != models.RoleAdmin {
		return NewPermissionError(userID, exam.ID, "exam", action, "not the exam owner")
	}

	return nil
}

func (s *integrityService) publishEvent(ctx context.Context, eventType string, payload map[string]any) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, events.NewEvent(eventType, payload)); err != nil {
		s.logger.Warn("Failed to publish event", "event_type", eventType, "error", err)
	}
}
