package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/examstack/exam-service/internal/services"
	"github.com/examstack/exam-service/internal/utils"
	"github.com/examstack/exam-service/internal/validator"
)

type IntegrityHandler struct {
	BaseHandler
	integrityService services.IntegrityService
	validator        *validator.Validator
}

func NewIntegrityHandler(integrityService services.IntegrityService, validator *validator.Validator, logger utils.Logger) *IntegrityHandler {
	return &IntegrityHandler{
		BaseHandler:      NewBaseHandler(logger),
		integrityService: integrityService,
		validator:        validator,
	}
}

// TrackEvent records an anti-cheat event for an open attempt
// @Summary Track integrity event
// @Description Appends an integrity event and increments the attempt's violation counter
// @Tags integrity
// @Accept json
// @Produce json
// @Param event body services.TrackEventRequest true "Event data"
// @Success 200 {object} services.TrackEventResult
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /attempts/events [post]
func (h *IntegrityHandler) TrackEvent(c *gin.Context) {
	var req services.TrackEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	result, err := h.integrityService.TrackEvent(c.Request.Context(), &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetIntegrityReport generates the integrity report for an attempt
// @Summary Get attempt integrity report
// @Tags integrity
// @Produce json
// @Param id path uint true "Attempt ID"
// @Success 200 {object} services.IntegrityReport
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /attempts/{id}/integrity [get]
func (h *IntegrityHandler) GetIntegrityReport(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	h.LogRequest(c, "Generating integrity report", "attempt_id", id)

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	report, err := h.integrityService.GenerateReport(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}

// GetExamIntegrity summarizes integrity across all attempts of an exam
// @Summary Get exam integrity overview
// @Tags integrity
// @Produce json
// @Param exam_id path uint true "Exam ID"
// @Success 200 {array} services.ExamIntegrityRow
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /exams/{exam_id}/integrity [get]
func (h *IntegrityHandler) GetExamIntegrity(c *gin.Context) {
	examID := h.parseIDParam(c, "exam_id")
	if examID == 0 {
		return
	}

	h.LogRequest(c, "Calculating exam integrity", "exam_id", examID)

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	rows, err := h.integrityService.CalculateExamIntegrity(c.Request.Context(), examID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, rows)
}

func (h *IntegrityHandler) handleServiceError(c *gin.Context, err error) {
	var validationErrors services.ValidationErrors
	if errors.As(err, &validationErrors) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Validation failed",
			Details: validationErrors,
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
	case errors.Is(err, services.ErrAttemptAlreadySubmitted):
		c.JSON(http.StatusConflict, ErrorResponse{
			Message: "Attempt already submitted",
		})
	case errors.Is(err, services.ErrInvalidEventType):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Unknown integrity event type",
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
