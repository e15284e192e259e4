package repositories

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/examstack/exam-service/internal/models"
)

// ===== EXAM DOMAIN =====

type ExamRepository interface {
	Create(ctx context.Context, tx *gorm.DB, exam *models.Exam) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Exam, error)
	GetByIDWithDetails(ctx context.Context, tx *gorm.DB, id uint) (*models.Exam, error)
	Update(ctx context.Context, tx *gorm.DB, exam *models.Exam) error
	Delete(ctx context.Context, tx *gorm.DB, id uint) error
	List(ctx context.Context, tx *gorm.DB, filters ExamFilters) ([]*models.Exam, int64, error)

	GetSettings(ctx context.Context, tx *gorm.DB, examID uint) (*models.ExamSettings, error)
	UpdateSettings(ctx context.Context, tx *gorm.DB, settings *models.ExamSettings) error
}

type QuestionRepository interface {
	Create(ctx context.Context, tx *gorm.DB, question *models.Question) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Question, error)
	GetByExam(ctx context.Context, tx *gorm.DB, examID uint) ([]*models.Question, error)
	Update(ctx context.Context, tx *gorm.DB, question *models.Question) error
	Delete(ctx context.Context, tx *gorm.DB, id uint) error
	CountByExam(ctx context.Context, tx *gorm.DB, examID uint) (int64, error)
	Reorder(ctx context.Context, tx *gorm.DB, examID uint, orderedIDs []uint) error
}

// ===== ATTEMPT DOMAIN =====

// AttemptCompletion carries the fields written by the one-way open to
// submitted transition.
type AttemptCompletion struct {
	CompletedAt    time.Time
	Score          float64
	CorrectAnswers int
	TotalQuestions int
	Answers        []byte
	Late           bool
}

type AttemptRepository interface {
	Create(ctx context.Context, tx *gorm.DB, attempt *models.Attempt) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Attempt, error)
	GetByIDWithDetails(ctx context.Context, tx *gorm.DB, id uint) (*models.Attempt, error)

	// GetOpenAttempt returns the open, non-expired attempt for an
	// (exam, roll number) pair, or gorm.ErrRecordNotFound.
	GetOpenAttempt(ctx context.Context, tx *gorm.DB, examID uint, rollNumber string, now time.Time) (*models.Attempt, error)
	CountByStudent(ctx context.Context, tx *gorm.DB, examID uint, rollNumber string) (int64, error)

	// Complete performs the conditional open-to-submitted update. It returns
	// false without error when the attempt was already submitted, so a
	// double-submit race cannot produce two score computations.
	Complete(ctx context.Context, tx *gorm.DB, id uint, completion AttemptCompletion) (bool, error)

	// IncrementViolation atomically bumps the violation counter in the store,
	// guarded on submitted = false. Returns false when the guard failed.
	IncrementViolation(ctx context.Context, tx *gorm.DB, id uint) (bool, error)

	GetSubmittedByExam(ctx context.Context, tx *gorm.DB, examID uint) ([]*models.Attempt, error)
	List(ctx context.Context, tx *gorm.DB, filters AttemptFilters) ([]*models.Attempt, int64, error)
}

type IntegrityRepository interface {
	Create(ctx context.Context, tx *gorm.DB, event *models.IntegrityEvent) error
	GetByAttempt(ctx context.Context, tx *gorm.DB, attemptID uint) ([]*models.IntegrityEvent, error)
	CountByType(ctx context.Context, tx *gorm.DB, attemptID uint) (map[models.IntegrityEventType]int, error)
}

// ===== QUESTION BANK DOMAIN =====

type BankRepository interface {
	CreateFolder(ctx context.Context, tx *gorm.DB, folder *models.BankFolder) error
	GetFolder(ctx context.Context, tx *gorm.DB, id uint) (*models.BankFolder, error)
	UpdateFolder(ctx context.Context, tx *gorm.DB, folder *models.BankFolder) error
	DeleteFolder(ctx context.Context, tx *gorm.DB, id uint) error
	ListFolders(ctx context.Context, tx *gorm.DB, ownerID string) ([]*models.BankFolder, error)
	CountFolders(ctx context.Context, tx *gorm.DB, ownerID string) (int64, error)

	CreateQuestion(ctx context.Context, tx *gorm.DB, question *models.BankQuestion) error
	GetQuestion(ctx context.Context, tx *gorm.DB, id uint) (*models.BankQuestion, error)
	UpdateQuestion(ctx context.Context, tx *gorm.DB, question *models.BankQuestion) error
	DeleteQuestion(ctx context.Context, tx *gorm.DB, id uint) error
	ListQuestions(ctx context.Context, tx *gorm.DB, ownerID string, folderID *uint) ([]*models.BankQuestion, error)
}

// ===== USER DOMAIN =====

// UserRepository is read-only; accounts live in the identity provider.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	List(ctx context.Context, filters UserFilters) ([]*models.User, error)
}

// ===== FILTERS =====

type ExamFilters struct {
	Status    *models.ExamStatus
	CreatedBy *string
	Search    *string
	DateFrom  *time.Time
	DateTo    *time.Time

	Limit     int
	Offset    int
	SortBy    string
	SortOrder string
}

type AttemptFilters struct {
	ExamID     *uint
	RollNumber *string
	Submitted  *bool
	Late       *bool

	Limit     int
	Offset    int
	SortBy    string
	SortOrder string
}

type UserFilters struct {
	Role   *models.UserRole
	Search *string
	Limit  int
	Offset int
}

// IsNotFoundError reports whether err means the row does not exist.
func IsNotFoundError(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
