package services

import (
	"context"
	"fmt"

	"github.com/examstack/exam-service/internal/events"
	"github.com/examstack/exam-service/internal/models"
	"github.com/examstack/exam-service/internal/repositories"
)

// getOwnedExam loads the exam and verifies the caller owns it or is an admin.
func (s *examService) getOwnedExam(ctx context.Context, id uint, userID, action string) (*models.Exam, error) {
	exam, err := s.repo.Exam().GetByID(ctx, s.db, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("failed to get exam: %w", err)
	}

	if err := s.requireOwnerOrAdmin(ctx, exam, userID, action); err != nil {
		return nil, err
	}

	return exam, nil
}

func (s *examService) requireOwnerOrAdmin(ctx context.Context, exam *models.Exam, userID, action string) error {
	if exam.CreatedBy == userID {
		return nil
	}

	user, err := s.repo.User().GetByID(ctx, userID)
	if err != nil {
		return NewPermissionError(userID, exam.ID, "exam", action, "user not found")
	}
	if user.Role != models.RoleAdmin {
		return NewPermissionError(userID, exam.ID, "exam", action, "not the exam owner")
	}

	return nil
}

func (s *examService) requireTeacher(ctx context.Context, userID string) error {
	user, err := s.repo.User().GetByID(ctx, userID)
	if err != nil {
		return ErrUserNotFound
	}

	if user.Role != models.RoleTeacher && user.Role != models.RoleAdmin {
		return NewPermissionError(userID, 0, "exam", "create", "insufficient role permissions")
	}

	return nil
}

func (s *examService) toResponse(exam *models.Exam, userID string) *ExamResponse {
	isOwner := exam.CreatedBy == userID
	return &ExamResponse{
		Exam:      exam,
		CanEdit:   isOwner && exam.Status != models.ExamArchived,
		CanDelete: isOwner,
	}
}

func (s *examService) publishEvent(ctx context.Context, eventType string, payload map[string]any) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, events.NewEvent(eventType, payload)); err != nil {
		s.logger.Warn("Failed to publish event", "event_type", eventType, "error", err)
	}
}

func defaultSettings(examID uint) *models.ExamSettings {
	return &models.ExamSettings{
		ExamID:           examID,
		ShuffleQuestions: true,
		ShuffleOptions:   true,
		AntiCheatEnabled: true,
		MaxViolations:    10,
	}
}

func applySettingsRequest(settings *models.ExamSettings, req *ExamSettingsRequest) {
	if req == nil {
		return
	}
	if req.ShuffleQuestions != nil {
		settings.ShuffleQuestions = *req.ShuffleQuestions
	}
	if req.ShuffleOptions != nil {
		settings.ShuffleOptions = *req.ShuffleOptions
	}
	if req.AntiCheatEnabled != nil {
		settings.AntiCheatEnabled = *req.AntiCheatEnabled
	}
	if req.MaxViolations != nil {
		settings.MaxViolations = *req.MaxViolations
	}
	if req.PreventTabSwitching != nil {
		settings.PreventTabSwitching = *req.PreventTabSwitching
	}
	if req.PreventRightClick != nil {
		settings.PreventRightClick = *req.PreventRightClick
	}
	if req.PreventCopyPaste != nil {
		settings.PreventCopyPaste = *req.PreventCopyPaste
	}
	if req.RequireFullScreen != nil {
		settings.RequireFullScreen = *req.RequireFullScreen
	}
}

func applyExamUpdate(exam *models.Exam, req *UpdateExamRequest) {
	if req.Title != nil {
		exam.Title = *req.Title
	}
	if req.Description != nil {
		exam.Description = req.Description
	}
	if req.Duration != nil {
		exam.Duration = *req.Duration
	}
	if req.PassPercentage != nil {
		exam.PassPercentage = *req.PassPercentage
	}
	if req.NegativeMarking != nil {
		exam.NegativeMarking = *req.NegativeMarking
	}
	if req.NegativeMarks != nil {
		exam.NegativeMarks = *req.NegativeMarks
	}
	if req.RequirePassword != nil {
		exam.RequirePassword = *req.RequirePassword
		if !exam.RequirePassword {
			exam.PasswordHash = nil
		}
	}
	if req.MaxAttempts != nil {
		exam.MaxAttempts = req.MaxAttempts
	}
	if req.ScheduledStart != nil {
		exam.ScheduledStart = req.ScheduledStart
	}
	if req.ScheduledEnd != nil {
		exam.ScheduledEnd = req.ScheduledEnd
	}
	if req.AllowLateSubmission != nil {
		exam.AllowLateSubmission = *req.AllowLateSubmission
	}
	if req.ShowResultsImmediately != nil {
		exam.ShowResultsImmediately = *req.ShowResultsImmediately
	}
}

// hasRestrictedUpdate reports whether the update touches fields frozen after
// publishing.
func hasRestrictedUpdate(req *UpdateExamRequest) bool {
	return req.Title != nil ||
		req.Description != nil ||
		req.Duration != nil ||
		req.PassPercentage != nil ||
		req.NegativeMarking != nil ||
		req.NegativeMarks != nil ||
		req.RequirePassword != nil ||
		req.Password != nil ||
		req.MaxAttempts != nil ||
		req.ScheduledStart != nil ||
		req.Settings != nil
}
