package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/examstack/exam-service/internal/repositories"
	"github.com/examstack/exam-service/internal/services"
	"github.com/examstack/exam-service/internal/utils"
	"github.com/examstack/exam-service/internal/validator"
)

type AttemptHandler struct {
	BaseHandler
	attemptService services.AttemptService
	validator      *validator.Validator
}

func NewAttemptHandler(
	attemptService services.AttemptService,
	validator *validator.Validator,
	logger utils.Logger,
) *AttemptHandler {
	return &AttemptHandler{
		BaseHandler:    NewBaseHandler(logger),
		attemptService: attemptService,
		validator:      validator,
	}
}

// StartAttempt starts a new exam attempt or resumes an open one
// @Summary Start exam attempt
// @Description Starts an attempt for a published exam. Resumes the open attempt for the same roll number.
// @Tags attempts
// @Accept json
// @Produce json
// @Param attempt body services.StartAttemptRequest true "Start attempt data"
// @Success 201 {object} services.AttemptResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 410 {object} ErrorResponse
// @Router /attempts/start [post]
func (h *AttemptHandler) StartAttempt(c *gin.Context) {
	h.LogRequest(c, "Starting exam attempt")

	var req services.StartAttemptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	attempt, err := h.attemptService.Start(c.Request.Context(), &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	status := http.StatusCreated
	if attempt.Resumed {
		status = http.StatusOK
	}
	c.JSON(status, attempt)
}

// SubmitAttempt submits an exam attempt
// @Summary Submit exam attempt
// @Description Submits an attempt with all answers and computes the score
// @Tags attempts
// @Accept json
// @Produce json
// @Param attempt body services.SubmitAttemptRequest true "Submit attempt data"
// @Success 200 {object} services.SubmitResult
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 410 {object} ErrorResponse
// @Router /attempts/submit [post]
func (h *AttemptHandler) SubmitAttempt(c *gin.Context) {
	h.LogRequest(c, "Submitting exam attempt")

	var req services.SubmitAttemptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	result, err := h.attemptService.Submit(c.Request.Context(), &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetStudentResult serves a student their own result
// @Summary Get student result
// @Description Returns the submitted attempt's result for the student who took it
// @Tags attempts
// @Produce json
// @Param id path uint true "Attempt ID"
// @Param roll_number query string true "Roll number used for the attempt"
// @Success 200 {object} services.StudentResult
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /attempts/{id}/result [get]
func (h *AttemptHandler) GetStudentResult(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	rollNumber := strings.TrimSpace(c.Query("roll_number"))
	if rollNumber == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Query parameter 'roll_number' is required",
		})
		return
	}

	result, err := h.attemptService.GetStudentResult(c.Request.Context(), id, rollNumber)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetAttempt retrieves an attempt for the exam owner
// @Summary Get attempt
// @Tags attempts
// @Produce json
// @Param id path uint true "Attempt ID"
// @Success 200 {object} models.Attempt
// @Failure 404 {object} ErrorResponse
// @Router /attempts/{id} [get]
func (h *AttemptHandler) GetAttempt(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	attempt, err := h.attemptService.GetByID(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, attempt)
}

// ListExamAttempts lists attempts of an exam for its owner
// @Summary List exam attempts
// @Tags attempts
// @Produce json
// @Param exam_id path uint true "Exam ID"
// @Param page query int false "Page number"
// @Param size query int false "Page size"
// @Param submitted query bool false "Filter by submitted"
// @Param roll_number query string false "Filter by roll number"
// @Success 200 {object} map[string]interface{}
// @Router /exams/{exam_id}/attempts [get]
func (h *AttemptHandler) ListExamAttempts(c *gin.Context) {
	examID := h.parseIDParam(c, "exam_id")
	if examID == 0 {
		return
	}

	h.LogRequest(c, "Listing exam attempts", "exam_id", examID)

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	filters := h.parseAttemptFilters(c)

	attempts, total, err := h.attemptService.ListByExam(c.Request.Context(), examID, filters, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	page := (filters.Offset / max(filters.Limit, 1)) + 1

	c.JSON(http.StatusOK, map[string]interface{}{
		"attempts": attempts,
		"total":    total,
		"page":     page,
		"size":     filters.Limit,
	})
}

// ===== HELPER METHODS =====

func (h *AttemptHandler) parseAttemptFilters(c *gin.Context) repositories.AttemptFilters {
	limit, offset := parsePagination(c)

	filters := repositories.AttemptFilters{
		Limit:  limit,
		Offset: offset,
	}

	if submittedStr := c.Query("submitted"); submittedStr != "" {
		if submitted, err := strconv.ParseBool(submittedStr); err == nil {
			filters.Submitted = &submitted
		}
	}

	if lateStr := c.Query("late"); lateStr != "" {
		if late, err := strconv.ParseBool(lateStr); err == nil {
			filters.Late = &late
		}
	}

	if rollNumber := strings.TrimSpace(c.Query("roll_number")); rollNumber != "" {
		filters.RollNumber = &rollNumber
	}

	return filters
}

func (h *AttemptHandler) handleServiceError(c *gin.Context, err error) {
	var validationErrors services.ValidationErrors
	if errors.As(err, &validationErrors) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Validation failed",
			Details: validationErrors,
		})
		return
	}

	var businessRuleError *services.BusinessRuleError
	if errors.As(err, &businessRuleError) {
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Message: businessRuleError.Message,
			Details: map[string]interface{}{
				"rule":    businessRuleError.Rule,
				"context": businessRuleError.Context,
			},
		})
		return
	}

	var permissionError *services.PermissionError
	if errors.As(err, &permissionError) {
		c.JSON(http.StatusForbidden, ErrorResponse{
			Message: "Access denied",
			Details: map[string]interface{}{
				"resource": permissionError.Resource,
				"action":   permissionError.Action,
				"reason":   permissionError.Reason,
			},
		})
		return
	}

	switch {
	case errors.Is(err, services.ErrAttemptNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Message: "Attempt not found",
		})
	case errors.Is(err, services.ErrExamNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Message: "Exam not found",
		})
	case errors.Is(err, services.ErrExamNotPublished):
		c.JSON(http.StatusForbidden, ErrorResponse{
			Message: "Exam is not published",
		})
	case errors.Is(err, services.ErrExamNotStarted):
		c.JSON(http.StatusConflict, ErrorResponse{
			Message: "Exam has not started yet",
		})
	case errors.Is(err, services.ErrExamClosed):
		c.JSON(http.StatusGone, ErrorResponse{
			Message: "Exam window has closed",
		})
	case errors.Is(err, services.ErrWrongPassword):
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Message: "Invalid exam password",
		})
	case errors.Is(err, services.ErrAttemptLimitReached):
		c.JSON(http.StatusConflict, ErrorResponse{
			Message: "Maximum attempts reached",
		})
	case errors.Is(err, services.ErrAttemptAlreadySubmitted):
		c.JSON(http.StatusConflict, ErrorResponse{
			Message: "Attempt already submitted",
		})
	case errors.Is(err, services.ErrAttemptExpired):
		c.JSON(http.StatusGone, ErrorResponse{
			Message: "Attempt time has expired",
		})
	case errors.Is(err, services.ErrUnknownAnswerQuestion):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Answer references an unknown question",
		})
	case errors.Is(err, services.ErrUnknownAnswerOption):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Answer references an unknown option",
		})
	case errors.Is(err, services.ErrConflict):
		c.JSON(http.StatusConflict, ErrorResponse{
			Message: "Resource conflict",
		})
	case errors.Is(err, services.ErrForbidden):
		c.JSON(http.StatusForbidden, ErrorResponse{
			Message: "Forbidden - insufficient permissions",
		})
	default:
		h.LogError(c, err, "Unexpected service error")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Message: "Internal server error",
		})
	}
}
