package services

import (
	"errors"
	"fmt"

	"github.com/examstack/exam-service/internal/validator"
)

// ===== SENTINEL ERRORS =====

var (
	// Exam errors
	ErrExamNotFound       = errors.New("exam not found")
	ErrExamNotPublished   = errors.New("exam is not published")
	ErrExamNotEditable    = errors.New("exam cannot be modified after publishing")
	ErrExamHasNoQuestions = errors.New("exam has no questions")
	ErrWrongPassword      = errors.New("incorrect exam password")
	ErrExamNotStarted     = errors.New("exam has not opened yet")
	ErrExamClosed         = errors.New("exam window has closed")

	// Attempt errors
	ErrAttemptNotFound         = errors.New("attempt not found")
	ErrAttemptAlreadySubmitted = errors.New("attempt already submitted")
	ErrAttemptExpired          = errors.New("attempt time has expired")
	ErrAttemptLimitReached     = errors.New("maximum attempts reached")

	// Question errors
	ErrQuestionNotFound      = errors.New("question not found")
	ErrInvalidCorrectOption  = errors.New("correct option must reference an option id")
	ErrDuplicateOptionID     = errors.New("option ids must be unique")
	ErrUnknownAnswerOption   = errors.New("answer references an unknown option")
	ErrUnknownAnswerQuestion = errors.New("answer references an unknown question")

	// Integrity errors
	ErrInvalidEventType = errors.New("unrecognized integrity event type")

	// Question bank errors
	ErrFolderNotFound = errors.New("folder not found")
	ErrFolderCycle    = errors.New("folder cannot be moved under its own descendant")

	// Generic errors
	ErrValidationFailed = errors.New("validation failed")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrForbidden        = errors.New("forbidden")
	ErrBadRequest       = errors.New("bad request")
	ErrConflict         = errors.New("resource conflict")
	ErrUserNotFound     = errors.New("user not found")
)

// ===== TYPED ERRORS =====

// ValidationErrors is re-exported so handlers match on one package.
type ValidationErrors = validator.ValidationErrors

// PermissionError carries who tried what on which resource.
type PermissionError struct {
	UserID     string
	ResourceID uint
	Resource   string
	Action     string
	Reason     string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("user %s cannot %s %s %d: %s", e.UserID, e.Action, e.Resource, e.ResourceID, e.Reason)
}

func (e *PermissionError) Unwrap() error {
	return ErrForbidden
}

func NewPermissionError(userID string, resourceID uint, resource, action, reason string) *PermissionError {
	return &PermissionError{
		UserID:     userID,
		ResourceID: resourceID,
		Resource:   resource,
		Action:     action,
		Reason:     reason,
	}
}

// BusinessRuleError reports a domain rule violation with context for the
// client.
type BusinessRuleError struct {
	Rule    string
	Message string
	Context map[string]interface{}
}

func (e *BusinessRuleError) Error() string {
	return fmt.Sprintf("%s: %s", e.Rule, e.Message)
}

func NewBusinessRuleError(rule, message string, context map[string]interface{}) *BusinessRuleError {
	return &BusinessRuleError{
		Rule:    rule,
		Message: message,
		Context: context,
	}
}
