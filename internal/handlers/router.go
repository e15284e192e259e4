package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/examstack/exam-service/internal/config"
	"github.com/examstack/exam-service/internal/models"
	"github.com/examstack/exam-service/internal/repositories"
	"github.com/examstack/exam-service/internal/services"
	"github.com/examstack/exam-service/internal/utils"
	"github.com/examstack/exam-service/internal/validator"
)

type HandlerManager struct {
	examHandler         *ExamHandler
	questionHandler     *QuestionHandler
	attemptHandler      *AttemptHandler
	integrityHandler    *IntegrityHandler
	resultsHandler      *ResultsHandler
	questionBankHandler *QuestionBankHandler
	userHandler         *UserHandler
	authMiddleware      *CasdoorAuthMiddleware
	serviceManager      services.ServiceManager
}

func NewHandlerManager(
	serviceManager services.ServiceManager,
	validator *validator.Validator,
	logger utils.Logger,
	casdoorConfig config.CasdoorConfig,
	userRepo repositories.UserRepository,
) *HandlerManager {
	authMiddleware := NewCasdoorAuthMiddleware(casdoorConfig, userRepo)

	return &HandlerManager{
		examHandler:         NewExamHandler(serviceManager.Exam(), validator, logger),
		questionHandler:     NewQuestionHandler(serviceManager.Question(), validator, logger),
		attemptHandler:      NewAttemptHandler(serviceManager.Attempt(), validator, logger),
		integrityHandler:    NewIntegrityHandler(serviceManager.Integrity(), validator, logger),
		resultsHandler:      NewResultsHandler(serviceManager.Results(), logger),
		questionBankHandler: NewQuestionBankHandler(serviceManager.Bank(), logger),
		userHandler:         NewUserHandler(userRepo, logger),
		authMiddleware:      authMiddleware,
		serviceManager:      serviceManager,
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	v1 := router.Group("/api/v1")

	// Student endpoints. Exam takers are not accounts; access is gated by
	// exam password and roll number inside the services.
	attempts := v1.Group("/attempts")
	{
		attempts.POST("/start", hm.attemptHandler.StartAttempt)
		attempts.POST("/submit", hm.attemptHandler.SubmitAttempt)
		attempts.POST("/events", hm.integrityHandler.TrackEvent)
		attempts.GET("/:id/result", hm.attemptHandler.GetStudentResult)
	}

	// Teacher/admin endpoints behind Casdoor authentication
	authed := v1.Group("")
	authed.Use(hm.authMiddleware.AuthMiddleware())
	teacherOnly := hm.authMiddleware.RequireRoleMiddleware(models.RoleTeacher)
	{
		exams := authed.Group("/exams", teacherOnly)
		{
			exams.POST("", hm.examHandler.CreateExam)
			exams.GET("", hm.examHandler.ListExams)
			exams.GET("/:exam_id", hm.examHandler.GetExam)
			exams.GET("/:exam_id/details", hm.examHandler.GetExamWithDetails)
			exams.PUT("/:exam_id", hm.examHandler.UpdateExam)
			exams.DELETE("/:exam_id", hm.examHandler.DeleteExam)
			exams.POST("/:exam_id/publish", hm.examHandler.PublishExam)
			exams.POST("/:exam_id/archive", hm.examHandler.ArchiveExam)
			exams.GET("/:exam_id/settings", hm.examHandler.GetExamSettings)
			exams.PUT("/:exam_id/settings", hm.examHandler.UpdateExamSettings)

			exams.POST("/:exam_id/questions", hm.questionHandler.CreateQuestion)
			exams.GET("/:exam_id/questions", hm.questionHandler.GetExamQuestions)
			exams.PUT("/:exam_id/questions/reorder", hm.questionHandler.ReorderQuestions)

			exams.GET("/:exam_id/attempts", hm.attemptHandler.ListExamAttempts)
			exams.GET("/:exam_id/integrity", hm.integrityHandler.GetExamIntegrity)
			exams.GET("/:exam_id/results", hm.resultsHandler.GetExamResults)
			exams.GET("/:exam_id/results/export", hm.resultsHandler.ExportExamResults)
		}

		questions := authed.Group("/questions", teacherOnly)
		{
			questions.GET("/:id", hm.questionHandler.GetQuestion)
			questions.PUT("/:id", hm.questionHandler.UpdateQuestion)
			questions.DELETE("/:id", hm.questionHandler.DeleteQuestion)
		}

		authedAttempts := authed.Group("/attempts", teacherOnly)
		{
			authedAttempts.GET("/:id", hm.attemptHandler.GetAttempt)
			authedAttempts.GET("/:id/integrity", hm.integrityHandler.GetIntegrityReport)
		}

		bank := authed.Group("/bank", teacherOnly)
		{
			bank.POST("/folders", hm.questionBankHandler.CreateFolder)
			bank.GET("/folders", hm.questionBankHandler.ListFolders)
			bank.PUT("/folders/:id", hm.questionBankHandler.UpdateFolder)
			bank.DELETE("/folders/:id", hm.questionBankHandler.DeleteFolder)

			bank.POST("/questions", hm.questionBankHandler.CreateBankQuestion)
			bank.GET("/questions", hm.questionBankHandler.ListBankQuestions)
			bank.PUT("/questions/:id", hm.questionBankHandler.UpdateBankQuestion)
			bank.DELETE("/questions/:id", hm.questionBankHandler.DeleteBankQuestion)
			bank.POST("/questions/:id/copy/:exam_id", hm.questionBankHandler.CopyToExam)
		}

		users := authed.Group("/users", teacherOnly)
		{
			users.GET("", hm.userHandler.ListUsers)
			users.GET("/:id", hm.userHandler.GetUser)
		}
	}

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.GET("/health", func(c *gin.Context) {
		if err := hm.serviceManager.HealthCheck(c.Request.Context()); err != nil {
			c.JSON(503, gin.H{
				"status":  "unhealthy",
				"service": "exam-service",
				"error":   err.Error(),
			})
			return
		}
		c.JSON(200, gin.H{
			"status":  "healthy",
			"service": "exam-service",
		})
	})
}
