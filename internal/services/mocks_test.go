package services

import (
	"context"
	"io"
	"log/slog"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/examstack/exam-service/internal/models"
	"github.com/examstack/exam-service/internal/repositories"
)

// mockRepository implements repositories.Repository with overridable function
// fields so each test wires only the calls it expects. Unset getters return
// gorm.ErrRecordNotFound, unset writers succeed.
type mockRepository struct {
	exam      mockExamRepo
	question  mockQuestionRepo
	attempt   mockAttemptRepo
	integrity mockIntegrityRepo
	bank      mockBankRepo
	user      mockUserRepo
}

func (m *mockRepository) Exam() repositories.ExamRepository           { return &m.exam }
func (m *mockRepository) Question() repositories.QuestionRepository   { return &m.question }
func (m *mockRepository) Attempt() repositories.AttemptRepository     { return &m.attempt }
func (m *mockRepository) Integrity() repositories.IntegrityRepository { return &m.integrity }
func (m *mockRepository) Bank() repositories.BankRepository           { return &m.bank }
func (m *mockRepository) User() repositories.UserRepository           { return &m.user }

func (m *mockRepository) WithTransaction(ctx context.Context, fn func(repositories.Repository) error) error {
	return fn(m)
}

func (m *mockRepository) Ping(ctx context.Context) error { return nil }
func (m *mockRepository) Close() error                   { return nil }

// ===== EXAM =====

type mockExamRepo struct {
	create             func(exam *models.Exam) error
	getByID            func(id uint) (*models.Exam, error)
	getByIDWithDetails func(id uint) (*models.Exam, error)
	update             func(exam *models.Exam) error
	deleteFn           func(id uint) error
	list               func(filters repositories.ExamFilters) ([]*models.Exam, int64, error)
	getSettings        func(examID uint) (*models.ExamSettings, error)
	updateSettings     func(settings *models.ExamSettings) error
}

func (m *mockExamRepo) Create(ctx context.Context, tx *gorm.DB, exam *models.Exam) error {
	if m.create == nil {
		return nil
	}
	return m.create(exam)
}

func (m *mockExamRepo) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Exam, error) {
	if m.getByID == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return m.getByID(id)
}

func (m *mockExamRepo) GetByIDWithDetails(ctx context.Context, tx *gorm.DB, id uint) (*models.Exam, error) {
	if m.getByIDWithDetails == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return m.getByIDWithDetails(id)
}

func (m *mockExamRepo) Update(ctx context.Context, tx *gorm.DB, exam *models.Exam) error {
	if m.update == nil {
		return nil
	}
	return m.update(exam)
}

func (m *mockExamRepo) Delete(ctx context.Context, tx *gorm.DB, id uint) error {
	if m.deleteFn == nil {
		return nil
	}
	return m.deleteFn(id)
}

func (m *mockExamRepo) List(ctx context.Context, tx *gorm.DB, filters repositories.ExamFilters) ([]*models.Exam, int64, error) {
	if m.list == nil {
		return nil, 0, nil
	}
	return m.list(filters)
}

func (m *mockExamRepo) GetSettings(ctx context.Context, tx *gorm.DB, examID uint) (*models.ExamSettings, error) {
	if m.getSettings == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return m.getSettings(examID)
}

func (m *mockExamRepo) UpdateSettings(ctx context.Context, tx *gorm.DB, settings *models.ExamSettings) error {
	if m.updateSettings == nil {
		return nil
	}
	return m.updateSettings(settings)
}

// ===== QUESTION =====

type mockQuestionRepo struct {
	create      func(question *models.Question) error
	getByID     func(id uint) (*models.Question, error)
	getByExam   func(examID uint) ([]*models.Question, error)
	update      func(question *models.Question) error
	deleteFn    func(id uint) error
	countByExam func(examID uint) (int64, error)
	reorder     func(examID uint, orderedIDs []uint) error
}

func (m *mockQuestionRepo) Create(ctx context.Context, tx *gorm.DB, question *models.Question) error {
	if m.create == nil {
		return nil
	}
	return m.create(question)
}

func (m *mockQuestionRepo) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Question, error) {
	if m.getByID == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return m.getByID(id)
}

func (m *mockQuestionRepo) GetByExam(ctx context.Context, tx *gorm.DB, examID uint) ([]*models.Question, error) {
	if m.getByExam == nil {
		return nil, nil
	}
	return m.getByExam(examID)
}

func (m *mockQuestionRepo) Update(ctx context.Context, tx *gorm.DB, question *models.Question) error {
	if m.update == nil {
		return nil
	}
	return m.update(question)
}

func (m *mockQuestionRepo) Delete(ctx context.Context, tx *gorm.DB, id uint) error {
	if m.deleteFn == nil {
		return nil
	}
	return m.deleteFn(id)
}

func (m *mockQuestionRepo) CountByExam(ctx context.Context, tx *gorm.DB, examID uint) (int64, error) {
	if m.countByExam == nil {
		return 0, nil
	}
	return m.countByExam(examID)
}

func (m *mockQuestionRepo) Reorder(ctx context.Context, tx *gorm.DB, examID uint, orderedIDs []uint) error {
	if m.reorder == nil {
		return nil
	}
	return m.reorder(examID, orderedIDs)
}

// ===== ATTEMPT =====

type mockAttemptRepo struct {
	create             func(attempt *models.Attempt) error
	getByID            func(id uint) (*models.Attempt, error)
	getByIDWithDetails func(id uint) (*models.Attempt, error)
	getOpenAttempt     func(examID uint, rollNumber string, now time.Time) (*models.Attempt, error)
	countByStudent     func(examID uint, rollNumber string) (int64, error)
	complete           func(id uint, completion repositories.AttemptCompletion) (bool, error)
	incrementViolation func(id uint) (bool, error)
	getSubmittedByExam func(examID uint) ([]*models.Attempt, error)
	list               func(filters repositories.AttemptFilters) ([]*models.Attempt, int64, error)
}

func (m *mockAttemptRepo) Create(ctx context.Context, tx *gorm.DB, attempt *models.Attempt) error {
	if m.create == nil {
		return nil
	}
	return m.create(attempt)
}

func (m *mockAttemptRepo) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Attempt, error) {
	if m.getByID == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return m.getByID(id)
}

func (m *mockAttemptRepo) GetByIDWithDetails(ctx context.Context, tx *gorm.DB, id uint) (*models.Attempt, error) {
	if m.getByIDWithDetails == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return m.getByIDWithDetails(id)
}

func (m *mockAttemptRepo) GetOpenAttempt(ctx context.Context, tx *gorm.DB, examID uint, rollNumber string, now time.Time) (*models.Attempt, error) {
	if m.getOpenAttempt == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return m.getOpenAttempt(examID, rollNumber, now)
}

func (m *mockAttemptRepo) CountByStudent(ctx context.Context, tx *gorm.DB, examID uint, rollNumber string) (int64, error) {
	if m.countByStudent == nil {
		return 0, nil
	}
	return m.countByStudent(examID, rollNumber)
}

func (m *mockAttemptRepo) Complete(ctx context.Context, tx *gorm.DB, id uint, completion repositories.AttemptCompletion) (bool, error) {
	if m.complete == nil {
		return true, nil
	}
	return m.complete(id, completion)
}

func (m *mockAttemptRepo) IncrementViolation(ctx context.Context, tx *gorm.DB, id uint) (bool, error) {
	if m.incrementViolation == nil {
		return true, nil
	}
	return m.incrementViolation(id)
}

func (m *mockAttemptRepo) GetSubmittedByExam(ctx context.Context, tx *gorm.DB, examID uint) ([]*models.Attempt, error) {
	if m.getSubmittedByExam == nil {
		return nil, nil
	}
	return m.getSubmittedByExam(examID)
}

func (m *mockAttemptRepo) List(ctx context.Context, tx *gorm.DB, filters repositories.AttemptFilters) ([]*models.Attempt, int64, error) {
	if m.list == nil {
		return nil, 0, nil
	}
	return m.list(filters)
}

// ===== INTEGRITY =====

type mockIntegrityRepo struct {
	create       func(event *models.IntegrityEvent) error
	getByAttempt func(attemptID uint) ([]*models.IntegrityEvent, error)
	countByType  func(attemptID uint) (map[models.IntegrityEventType]int, error)
}

func (m *mockIntegrityRepo) Create(ctx context.Context, tx *gorm.DB, event *models.IntegrityEvent) error {
	if m.create == nil {
		return nil
	}
	return m.create(event)
}

func (m *mockIntegrityRepo) GetByAttempt(ctx context.Context, tx *gorm.DB, attemptID uint) ([]*models.IntegrityEvent, error) {
	if m.getByAttempt == nil {
		return nil, nil
	}
	return m.getByAttempt(attemptID)
}

func (m *mockIntegrityRepo) CountByType(ctx context.Context, tx *gorm.DB, attemptID uint) (map[models.IntegrityEventType]int, error) {
	if m.countByType == nil {
		return map[models.IntegrityEventType]int{}, nil
	}
	return m.countByType(attemptID)
}

// ===== QUESTION BANK =====

type mockBankRepo struct {
	createFolder func(folder *models.BankFolder) error
	getFolder    func(id uint) (*models.BankFolder, error)
	updateFolder func(folder *models.BankFolder) error
	deleteFolder func(id uint) error
	listFolders  func(ownerID string) ([]*models.BankFolder, error)
	countFolders func(ownerID string) (int64, error)

	createQuestion func(question *models.BankQuestion) error
	getQuestion    func(id uint) (*models.BankQuestion, error)
	updateQuestion func(question *models.BankQuestion) error
	deleteQuestion func(id uint) error
	listQuestions  func(ownerID string, folderID *uint) ([]*models.BankQuestion, error)
}

func (m *mockBankRepo) CreateFolder(ctx context.Context, tx *gorm.DB, folder *models.BankFolder) error {
	if m.createFolder == nil {
		return nil
	}
	return m.createFolder(folder)
}

func (m *mockBankRepo) GetFolder(ctx context.Context, tx *gorm.DB, id uint) (*models.BankFolder, error) {
	if m.getFolder == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return m.getFolder(id)
}

func (m *mockBankRepo) UpdateFolder(ctx context.Context, tx *gorm.DB, folder *models.BankFolder) error {
	if m.updateFolder == nil {
		return nil
	}
	return m.updateFolder(folder)
}

func (m *mockBankRepo) DeleteFolder(ctx context.Context, tx *gorm.DB, id uint) error {
	if m.deleteFolder == nil {
		return nil
	}
	return m.deleteFolder(id)
}

func (m *mockBankRepo) ListFolders(ctx context.Context, tx *gorm.DB, ownerID string) ([]*models.BankFolder, error) {
	if m.listFolders == nil {
		return nil, nil
	}
	return m.listFolders(ownerID)
}

func (m *mockBankRepo) CountFolders(ctx context.Context, tx *gorm.DB, ownerID string) (int64, error) {
	if m.countFolders == nil {
		return 0, nil
	}
	return m.countFolders(ownerID)
}

func (m *mockBankRepo) CreateQuestion(ctx context.Context, tx *gorm.DB, question *models.BankQuestion) error {
	if m.createQuestion == nil {
		return nil
	}
	return m.createQuestion(question)
}

func (m *mockBankRepo) GetQuestion(ctx context.Context, tx *gorm.DB, id uint) (*models.BankQuestion, error) {
	if m.getQuestion == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return m.getQuestion(id)
}

func (m *mockBankRepo) UpdateQuestion(ctx context.Context, tx *gorm.DB, question *models.BankQuestion) error {
	if m.updateQuestion == nil {
		return nil
	}
	return m.updateQuestion(question)
}

func (m *mockBankRepo) DeleteQuestion(ctx context.Context, tx *gorm.DB, id uint) error {
	if m.deleteQuestion == nil {
		return nil
	}
	return m.deleteQuestion(id)
}

func (m *mockBankRepo) ListQuestions(ctx context.Context, tx *gorm.DB, ownerID string, folderID *uint) ([]*models.BankQuestion, error) {
	if m.listQuestions == nil {
		return nil, nil
	}
	return m.listQuestions(ownerID, folderID)
}

// ===== USER =====

type mockUserRepo struct {
	getByID func(id string) (*models.User, error)
	list    func(filters repositories.UserFilters) ([]*models.User, error)
}

func (m *mockUserRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	if m.getByID == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return m.getByID(id)
}

func (m *mockUserRepo) List(ctx context.Context, filters repositories.UserFilters) ([]*models.User, error) {
	if m.list == nil {
		return nil, nil
	}
	return m.list(filters)
}

// ===== FIXTURES =====

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func boolPtr(v bool) *bool { return &v }

func uintPtr(v uint) *uint { return &v }

func floatPtr(v float64) *float64 { return &v }

func intPtr(v int) *int { return &v }

func strPtr(v string) *string { return &v }

func timePtr(v time.Time) *time.Time { return &v }

func encodedOptions(ids ...string) datatypes.JSON {
	options := make([]models.QuestionOption, 0, len(ids))
	for _, id := range ids {
		options = append(options, models.QuestionOption{ID: id, Text: "Option " + id})
	}
	data, _ := models.EncodeOptions(options)
	return data
}

func examQuestion(id uint, correct string, marks float64, negativeMarks *float64) *models.Question {
	return &models.Question{
		ID:            id,
		ExamID:        1,
		Text:          "Question text",
		Options:       encodedOptions("a", "b", "c", "d"),
		CorrectOption: correct,
		Marks:         marks,
		NegativeMarks: negativeMarks,
	}
}
