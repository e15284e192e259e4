package services

import (
	"context"
	"time"

	"github.com/examstack/exam-service/internal/models"
	"github.com/examstack/exam-service/internal/repositories"
)

// ===== EXAM DTOs =====

type ExamSettingsRequest struct {
	ShuffleQuestions    *bool `json:"shuffle_questions"`
	ShuffleOptions      *bool `json:"shuffle_options"`
	AntiCheatEnabled    *bool `json:"anti_cheat_enabled"`
	MaxViolations       *int  `json:"max_violations" validate:"omitempty,min=0"`
	PreventTabSwitching *bool `json:"prevent_tab_switching"`
	PreventRightClick   *bool `json:"prevent_right_click"`
	PreventCopyPaste    *bool `json:"prevent_copy_paste"`
	RequireFullScreen   *bool `json:"require_full_screen"`
}

type CreateExamRequest struct {
	Title                  string               `json:"title" validate:"required,exam_title"`
	Description            *string              `json:"description" validate:"omitempty,max=2000"`
	Duration               int                  `json:"duration" validate:"required,exam_duration"`
	PassPercentage         *float64             `json:"pass_percentage" validate:"omitempty,pass_percentage"`
	NegativeMarking        bool                 `json:"negative_marking"`
	NegativeMarks          float64              `json:"negative_marks" validate:"omitempty,min=0"`
	RequirePassword        bool                 `json:"require_password"`
	Password               string               `json:"password" validate:"omitempty,min=4,max=72"`
	MaxAttempts            *int                 `json:"max_attempts" validate:"omitempty,max_attempts"`
	ScheduledStart         *time.Time           `json:"scheduled_start"`
	ScheduledEnd           *time.Time           `json:"scheduled_end" validate:"omitempty,future_date"`
	AllowLateSubmission    bool                 `json:"allow_late_submission"`
	ShowResultsImmediately bool                 `json:"show_results_immediately"`
	Settings               *ExamSettingsRequest `json:"settings"`
}

type UpdateExamRequest struct {
	Title                  *string              `json:"title" validate:"omitempty,exam_title"`
	Description            *string              `json:"description" validate:"omitempty,max=2000"`
	Duration               *int                 `json:"duration" validate:"omitempty,exam_duration"`
	PassPercentage         *float64             `json:"pass_percentage" validate:"omitempty,pass_percentage"`
	NegativeMarking        *bool                `json:"negative_marking"`
	NegativeMarks          *float64             `json:"negative_marks" validate:"omitempty,min=0"`
	RequirePassword        *bool                `json:"require_password"`
	Password               *string              `json:"password" validate:"omitempty,min=4,max=72"`
	MaxAttempts            *int                 `json:"max_attempts" validate:"omitempty,max_attempts"`
	ScheduledStart         *time.Time           `json:"scheduled_start"`
	ScheduledEnd           *time.Time           `json:"scheduled_end"`
	AllowLateSubmission    *bool                `json:"allow_late_submission"`
	ShowResultsImmediately *bool                `json:"show_results_immediately"`
	Settings               *ExamSettingsRequest `json:"settings"`
}

type ExamResponse struct {
	*models.Exam
	CanEdit   bool `json:"can_edit"`
	CanDelete bool `json:"can_delete"`
}

type ExamListResponse struct {
	Exams []*ExamResponse `json:"exams"`
	Total int64           `json:"total"`
	Page  int             `json:"page"`
	Size  int             `json:"size"`
}

// ===== QUESTION DTOs =====

type CreateQuestionRequest struct {
	Text          string                  `json:"text" validate:"required,min=1,max=2000"`
	Options       []models.QuestionOption `json:"options" validate:"required,min=2,max=10,dive"`
	CorrectOption string                  `json:"correct_option" validate:"required"`
	Marks         float64                 `json:"marks" validate:"required,gt=0"`
	NegativeMarks *float64                `json:"negative_marks" validate:"omitempty,min=0"`
	DisplayOrder  int                     `json:"display_order" validate:"omitempty,min=0"`
}

type UpdateQuestionRequest struct {
	Text          *string                 `json:"text" validate:"omitempty,min=1,max=2000"`
	Options       []models.QuestionOption `json:"options" validate:"omitempty,min=2,max=10,dive"`
	CorrectOption *string                 `json:"correct_option"`
	Marks         *float64                `json:"marks" validate:"omitempty,gt=0"`
	NegativeMarks *float64                `json:"negative_marks" validate:"omitempty,min=0"`
	DisplayOrder  *int                    `json:"display_order" validate:"omitempty,min=0"`
}

type QuestionResponse struct {
	*models.Question
	Options []models.QuestionOption `json:"options"`
}

// ===== ATTEMPT DTOs =====

type StartAttemptRequest struct {
	ExamID      uint   `json:"exam_id" validate:"required"`
	StudentName string `json:"student_name" validate:"required,min=1,max=100"`
	RollNumber  string `json:"roll_number" validate:"required,roll_number"`
	Password    string `json:"password"`
}

// AttemptQuestion is the sanitized question view served to students. The
// correct option and marks breakdown never leave the server.
type AttemptQuestion struct {
	ID      uint                    `json:"id"`
	Text    string                  `json:"text"`
	Options []models.QuestionOption `json:"options"`
	Marks   float64                 `json:"marks"`
}

type AttemptResponse struct {
	AttemptID     uint              `json:"attempt_id"`
	ExamID        uint              `json:"exam_id"`
	ExamTitle     string            `json:"exam_title"`
	StudentName   string            `json:"student_name"`
	RollNumber    string            `json:"roll_number"`
	StartedAt     time.Time         `json:"started_at"`
	EndTime       time.Time         `json:"end_time"`
	TimeRemaining int               `json:"time_remaining"`
	Resumed       bool              `json:"resumed"`
	Answers       map[uint]string   `json:"answers,omitempty"`
	Questions     []AttemptQuestion `json:"questions"`
}

type SubmitAttemptRequest struct {
	AttemptID uint            `json:"attempt_id" validate:"required"`
	Answers   map[uint]string `json:"answers"`
}

type SubmitResult struct {
	AttemptID      uint       `json:"attempt_id"`
	Submitted      bool       `json:"submitted"`
	Late           bool       `json:"late"`
	ResultsVisible bool       `json:"results_visible"`
	Score          *float64   `json:"score,omitempty"`
	TotalMarks     *float64   `json:"total_marks,omitempty"`
	CorrectAnswers *int       `json:"correct_answers,omitempty"`
	TotalQuestions *int       `json:"total_questions,omitempty"`
	Passed         *bool      `json:"passed,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

// ===== INTEGRITY DTOs =====

type TrackEventRequest struct {
	AttemptID uint                   `json:"attempt_id" validate:"required"`
	EventType string                 `json:"event_type" validate:"required,event_type"`
	Metadata  map[string]interface{} `json:"metadata"`
}

type TrackEventResult struct {
	ViolationCount int              `json:"violation_count"`
	MaxViolations  int              `json:"max_violations"`
	LimitExceeded  bool             `json:"limit_exceeded"`
	RiskLevel      models.RiskLevel `json:"risk_level"`
}

type IntegrityReport struct {
	AttemptID      uint                              `json:"attempt_id"`
	ExamID         uint                              `json:"exam_id"`
	StudentName    string                            `json:"student_name"`
	RollNumber     string                            `json:"roll_number"`
	Submitted      bool                              `json:"submitted"`
	ViolationCount int                               `json:"violation_count"`
	MaxViolations  int                               `json:"max_violations"`
	RiskLevel      models.RiskLevel                  `json:"risk_level"`
	EventsByType   map[models.IntegrityEventType]int `json:"events_by_type"`
	Timeline       []*models.IntegrityEvent          `json:"timeline"`
}

type ExamIntegrityRow struct {
	AttemptID      uint             `json:"attempt_id"`
	StudentName    string           `json:"student_name"`
	RollNumber     string           `json:"roll_number"`
	Submitted      bool             `json:"submitted"`
	ViolationCount int              `json:"violation_count"`
	RiskLevel      models.RiskLevel `json:"risk_level"`
}

// ===== RESULTS DTOs =====

type RankingEntry struct {
	Rank        int       `json:"rank"`
	AttemptID   uint      `json:"attempt_id"`
	StudentName string    `json:"student_name"`
	RollNumber  string    `json:"roll_number"`
	Score       float64   `json:"score"`
	Passed      bool      `json:"passed"`
	Late        bool      `json:"late"`
	CompletedAt time.Time `json:"completed_at"`
}

type QuestionStat struct {
	QuestionID uint    `json:"question_id"`
	Text       string  `json:"text"`
	Attempted  int     `json:"attempted"`
	Correct    int     `json:"correct"`
	Skipped    int     `json:"skipped"`
	Accuracy   float64 `json:"accuracy"`
	SkipRate   float64 `json:"skip_rate"`
	Difficulty string  `json:"difficulty"`
}

type ExamResults struct {
	ExamID         uint           `json:"exam_id"`
	Title          string         `json:"title"`
	TotalMarks     float64        `json:"total_marks"`
	PassPercentage float64        `json:"pass_percentage"`
	TotalAttempts  int            `json:"total_attempts"`
	AverageScore   float64        `json:"average_score"`
	HighestScore   float64        `json:"highest_score"`
	LowestScore    float64        `json:"lowest_score"`
	PassRate       float64        `json:"pass_rate"`
	Rankings       []RankingEntry `json:"rankings"`
	QuestionStats  []QuestionStat `json:"question_stats"`
}

// StudentResult is the post-submission view served to the student who took
// the attempt.
type StudentResult struct {
	AttemptID      uint             `json:"attempt_id"`
	ExamTitle      string           `json:"exam_title"`
	StudentName    string           `json:"student_name"`
	RollNumber     string           `json:"roll_number"`
	ResultsVisible bool             `json:"results_visible"`
	Score          *float64         `json:"score,omitempty"`
	TotalMarks     *float64         `json:"total_marks,omitempty"`
	CorrectAnswers *int             `json:"correct_answers,omitempty"`
	TotalQuestions *int             `json:"total_questions,omitempty"`
	Passed         *bool            `json:"passed,omitempty"`
	Late           bool             `json:"late"`
	CompletedAt    *time.Time       `json:"completed_at,omitempty"`
	Rank           *int             `json:"rank,omitempty"`
}

// ===== QUESTION BANK DTOs =====

type CreateFolderRequest struct {
	Name     string `json:"name" validate:"required,min=1,max=200"`
	ParentID *uint  `json:"parent_id"`
}

type UpdateFolderRequest struct {
	Name     *string `json:"name" validate:"omitempty,min=1,max=200"`
	ParentID *uint   `json:"parent_id"`
}

type CreateBankQuestionRequest struct {
	FolderID      *uint                   `json:"folder_id"`
	Text          string                  `json:"text" validate:"required,min=1,max=2000"`
	Options       []models.QuestionOption `json:"options" validate:"required,min=2,max=10,dive"`
	CorrectOption string                  `json:"correct_option" validate:"required"`
	Marks         float64                 `json:"marks" validate:"required,gt=0"`
	NegativeMarks *float64                `json:"negative_marks" validate:"omitempty,min=0"`
}

type FolderResponse struct {
	*models.BankFolder
	QuestionCount int `json:"question_count"`
}

// ===== SERVICE INTERFACES =====

type ExamService interface {
	Create(ctx context.Context, req *CreateExamRequest, creatorID string) (*ExamResponse, error)
	GetByID(ctx context.Context, id uint, userID string) (*ExamResponse, error)
	GetByIDWithDetails(ctx context.Context, id uint, userID string) (*ExamResponse, error)
	Update(ctx context.Context, id uint, req *UpdateExamRequest, userID string) (*ExamResponse, error)
	Delete(ctx context.Context, id uint, userID string) error
	List(ctx context.Context, filters repositories.ExamFilters, userID string) (*ExamListResponse, error)

	Publish(ctx context.Context, id uint, userID string) error
	Archive(ctx context.Context, id uint, userID string) error

	GetSettings(ctx context.Context, examID uint, userID string) (*models.ExamSettings, error)
	UpdateSettings(ctx context.Context, examID uint, req *ExamSettingsRequest, userID string) (*models.ExamSettings, error)
}

type QuestionService interface {
	Create(ctx context.Context, examID uint, req *CreateQuestionRequest, userID string) (*QuestionResponse, error)
	GetByID(ctx context.Context, id uint, userID string) (*QuestionResponse, error)
	GetByExam(ctx context.Context, examID uint, userID string) ([]*QuestionResponse, error)
	Update(ctx context.Context, id uint, req *UpdateQuestionRequest, userID string) (*QuestionResponse, error)
	Delete(ctx context.Context, id uint, userID string) error
	Reorder(ctx context.Context, examID uint, orderedIDs []uint, userID string) error
}

type AttemptService interface {
	// Start creates a new attempt or resumes the open one for the same
	// student identity.
	Start(ctx context.Context, req *StartAttemptRequest) (*AttemptResponse, error)
	Submit(ctx context.Context, req *SubmitAttemptRequest) (*SubmitResult, error)

	GetStudentResult(ctx context.Context, attemptID uint, rollNumber string) (*StudentResult, error)
	GetByID(ctx context.Context, id uint, userID string) (*models.Attempt, error)
	ListByExam(ctx context.Context, examID uint, filters repositories.AttemptFilters, userID string) ([]*models.Attempt, int64, error)
}

type IntegrityService interface {
	// TrackEvent appends an event and atomically increments the attempt's
	// violation counter. Safe under concurrent calls.
	TrackEvent(ctx context.Context, req *TrackEventRequest) (*TrackEventResult, error)

	GenerateReport(ctx context.Context, attemptID uint, userID string) (*IntegrityReport, error)
	CalculateExamIntegrity(ctx context.Context, examID uint, userID string) ([]*ExamIntegrityRow, error)
}

type ResultsService interface {
	GetExamResults(ctx context.Context, examID uint, userID string) (*ExamResults, error)
	ExportResults(ctx context.Context, examID uint, userID string) ([]byte, string, error)
}

type QuestionBankService interface {
	CreateFolder(ctx context.Context, req *CreateFolderRequest, ownerID string) (*models.BankFolder, error)
	UpdateFolder(ctx context.Context, id uint, req *UpdateFolderRequest, ownerID string) (*models.BankFolder, error)
	DeleteFolder(ctx context.Context, id uint, ownerID string) error
	ListFolders(ctx context.Context, ownerID string) ([]*models.BankFolder, error)

	CreateQuestion(ctx context.Context, req *CreateBankQuestionRequest, ownerID string) (*models.BankQuestion, error)
	UpdateQuestion(ctx context.Context, id uint, req *CreateBankQuestionRequest, ownerID string) (*models.BankQuestion, error)
	DeleteQuestion(ctx context.Context, id uint, ownerID string) error
	ListQuestions(ctx context.Context, ownerID string, folderID *uint) ([]*models.BankQuestion, error)

	// CopyToExam copies a bank question into an exam as a fresh question.
	CopyToExam(ctx context.Context, bankQuestionID, examID uint, userID string) (*QuestionResponse, error)
}

// ===== SERVICE MANAGER =====

type ServiceManager interface {
	Exam() ExamService
	Question() QuestionService
	Attempt() AttemptService
	Integrity() IntegrityService
	Results() ResultsService
	Bank() QuestionBankService

	Initialize(ctx context.Context) error
	HealthCheck(ctx context.Context) error
	Shutdown(ctx context.Context) error
}
