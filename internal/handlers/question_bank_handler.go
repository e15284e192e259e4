package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/examstack/exam-service/internal/services"
	"github.com/examstack/exam-service/internal/utils"
)

type QuestionBankHandler struct {
	BaseHandler
	bankService services.QuestionBankService
}

func NewQuestionBankHandler(bankService services.QuestionBankService, logger utils.Logger) *QuestionBankHandler {
	return &QuestionBankHandler{
		BaseHandler: NewBaseHandler(logger),
		bankService: bankService,
	}
}

// ===== FOLDERS =====

// CreateFolder creates a folder in the caller's question bank
// @Summary Create bank folder
// @Tags question-bank
// @Accept json
// @Produce json
// @Param folder body services.CreateFolderRequest true "Folder data"
// @Success 201 {object} models.BankFolder
// @Failure 400 {object} ErrorResponse
// @Router /bank/folders [post]
func (h *QuestionBankHandler) CreateFolder(c *gin.Context) {
	var req services.CreateFolderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	folder, err := h.bankService.CreateFolder(c.Request.Context(), &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, folder)
}

// UpdateFolder renames or moves a folder
// @Summary Update bank folder
// @Tags question-bank
// @Accept json
// @Produce json
// @Param id path uint true "Folder ID"
// @Param folder body services.UpdateFolderRequest true "Update data"
// @Success 200 {object} models.BankFolder
// @Failure 409 {object} ErrorResponse
// @Router /bank/folders/{id} [put]
func (h *QuestionBankHandler) UpdateFolder(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	var req services.UpdateFolderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	folder, err := h.bankService.UpdateFolder(c.Request.Context(), id, &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, folder)
}

// DeleteFolder deletes a folder, reparenting its contents
// @Summary Delete bank folder
// @Tags question-bank
// @Param id path uint true "Folder ID"
// @Success 204
// @Failure 404 {object} ErrorResponse
// @Router /bank/folders/{id} [delete]
func (h *QuestionBankHandler) DeleteFolder(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	h.LogRequest(c, "Deleting bank folder", "folder_id", id)

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	if err := h.bankService.DeleteFolder(c.Request.Context(), id, userID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// ListFolders lists the caller's folders
// @Summary List bank folders
// @Tags question-bank
// @Produce json
// @Success 200 {array} models.BankFolder
// @Router /bank/folders [get]
func (h *QuestionBankHandler) ListFolders(c *gin.Context) {
	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	folders, err := h.bankService.ListFolders(c.Request.Context(), userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, folders)
}

// ===== QUESTIONS =====

// CreateBankQuestion creates a reusable question
// @Summary Create bank question
// @Tags question-bank
// @Accept json
// @Produce json
// @Param question body services.CreateBankQuestionRequest true "Question data"
// @Success 201 {object} models.BankQuestion
// @Failure 422 {object} ErrorResponse
// @Router /bank/questions [post]
func (h *QuestionBankHandler) CreateBankQuestion(c *gin.Context) {
	var req services.CreateBankQuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	question, err := h.bankService.CreateQuestion(c.Request.Context(), &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, question)
}

// UpdateBankQuestion updates a reusable question
// @Summary Update bank question
// @Tags question-bank
// @Accept json
// @Produce json
// @Param id path uint true "Question ID"
// @Param question body services.CreateBankQuestionRequest true "Question data"
// @Success 200 {object} models.BankQuestion
// @Failure 404 {object} ErrorResponse
// @Router /bank/questions/{id} [put]
func (h *QuestionBankHandler) UpdateBankQuestion(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	var req services.CreateBankQuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	question, err := h.bankService.UpdateQuestion(c.Request.Context(), id, &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, question)
}

// DeleteBankQuestion deletes a reusable question
// @Summary Delete bank question
// @Tags question-bank
// @Param id path uint true "Question ID"
// @Success 204
// @Failure 404 {object} ErrorResponse
// @Router /bank/questions/{id} [delete]
func (h *QuestionBankHandler) DeleteBankQuestion(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	if err := h.bankService.DeleteQuestion(c.Request.Context(), id, userID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// ListBankQuestions lists the caller's questions, optionally by folder
// @Summary List bank questions
// @Tags question-bank
// @Produce json
// @Param folder_id query uint false "Filter by folder"
// @Success 200 {array} models.BankQuestion
// @Router /bank/questions [get]
func (h *QuestionBankHandler) ListBankQuestions(c *gin.Context) {
	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	var folderID *uint
	if folderStr := c.Query("folder_id"); folderStr != "" {
		parsed, err := strconv.ParseUint(folderStr, 10, 32)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Message: "Invalid folder_id parameter",
			})
			return
		}
		id := uint(parsed)
		folderID = &id
	}

	questions, err := h.bankService.ListQuestions(c.Request.Context(), userID, folderID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, questions)
}

// CopyToExam copies a bank question into a draft exam
// @Summary Copy bank question to exam
// @Tags question-bank
// @Produce json
// @Param id path uint true "Bank question ID"
// @Param exam_id path uint true "Exam ID"
// @Success 201 {object} services.QuestionResponse
// @Failure 409 {object} ErrorResponse
// @Router /bank/questions/{id}/copy/{exam_id} [post]
func (h *QuestionBankHandler) CopyToExam(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	examID := h.parseIDParam(c, "exam_id")
	if examID == 0 {
		return
	}

	h.LogRequest(c, "Copying bank question to exam", "bank_question_id", id, "exam_id", examID)

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	question, err := h.bankService.CopyToExam(c.Request.Context(), id, examID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, question)
}

func (h *QuestionBankHandler) handleServiceError(c *gin.Context, err error) {
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
	case errors.Is(err, services.ErrFolderNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Message: "Folder not found",
		})
	case errors.Is(err, services.ErrFolderCycle):
		c.JSON(http.StatusConflict, ErrorResponse{
			Message: "Moving the folder would create a cycle",
		})
	case errors.Is(err, services.ErrQuestionNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Message: "Question not found",
		})
	case errors.Is(err, services.ErrExamNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Message: "Exam not found",
		})
	case errors.Is(err, services.ErrExamNotEditable):
		c.JSON(http.StatusConflict, ErrorResponse{
			Message: "Exam can no longer be edited",
		})
	case errors.Is(err, services.ErrDuplicateOptionID):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Message: "Option ids must be unique",
		})
	case errors.Is(err, services.ErrInvalidCorrectOption):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Message: "Correct option must reference one of the options",
		})
	default:
		h.LogError(c, err, "Unexpected service error")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Message: "Internal server error",
		})
	}
}
