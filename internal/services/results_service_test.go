package services

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"

	"github.com/examstack/exam-service/internal/models"
	"github.com/examstack/exam-service/internal/repositories"
)

func TestNewResultsService(t *testing.T) {
	type args struct {
		repo   repositories.Repository
		db     *gorm.DB
		logger *slog.Logger
	}
	tests := []struct {
		name string
		args args
		want ResultsService
	}{
		{name: "ok"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			NewResultsService(tt.args.repo, tt.args.db, tt.args.logger)
		})
	}
}

func resultsFixture(t *testing.T) *mockRepository {
	t.Helper()

	exam := &models.Exam{
		ID:             1,
		Title:          "Algebra Final",
		PassPercentage: 40,
		CreatedBy:      "teacher-1",
	}
	questions := []*models.Question{
		examQuestion(1, "a", 5, nil),
		examQuestion(2, "b", 5, nil),
	}

	completed := time.Date(2026, 3, 10, 10, 30, 0, 0, time.UTC)
	attempts := []*models.Attempt{
		submittedAttempt(t, 11, "Asha Rao", "21CS041", 8, completed, map[uint]string{1: "a", 2: "b"}),
		submittedAttempt(t, 12, "Ben Iyer", "21CS042", 3, completed.Add(time.Minute), map[uint]string{1: "a", 2: "c"}),
		submittedAttempt(t, 13, "Cara Das", "21CS043", 0, completed.Add(2*time.Minute), map[uint]string{}),
	}

	return &mockRepository{
		exam: mockExamRepo{
			getByID: func(id uint) (*models.Exam, error) { return exam, nil },
		},
		question: mockQuestionRepo{
			getByExam: func(examID uint) ([]*models.Question, error) { return questions, nil },
		},
		attempt: mockAttemptRepo{
			getSubmittedByExam: func(examID uint) ([]*models.Attempt, error) { return attempts, nil },
		},
	}
}

func submittedAttempt(t *testing.T, id uint, name, roll string, score float64, completedAt time.Time, answers map[uint]string) *models.Attempt {
	t.Helper()
	encoded, err := models.EncodeAnswers(answers)
	if err != nil {
		t.Fatal(err)
	}
	return &models.Attempt{
		ID:          id,
		ExamID:      1,
		StudentName: name,
		RollNumber:  roll,
		Submitted:   true,
		CompletedAt: timePtr(completedAt),
		Score:       score,
		Answers:     encoded,
	}
}

func closeEnough(a, b float64) bool {
	return math.Abs(a-b) < 0.01
}

func TestGetExamResults(t *testing.T) {
	svc := NewResultsService(resultsFixture(t), nil, discardLogger())

	results, err := svc.GetExamResults(context.Background(), 1, "teacher-1")
	if err != nil {
		t.Fatalf("GetExamResults() error = %v", err)
	}

	if results.TotalMarks != 10 || results.TotalAttempts != 3 {
		t.Errorf("GetExamResults() total marks = %v, attempts = %d", results.TotalMarks, results.TotalAttempts)
	}
	if !closeEnough(results.AverageScore, 11.0/3) || results.HighestScore != 8 || results.LowestScore != 0 {
		t.Errorf("GetExamResults() avg = %v, high = %v, low = %v", results.AverageScore, results.HighestScore, results.LowestScore)
	}
	if !closeEnough(results.PassRate, 100.0/3) {
		t.Errorf("GetExamResults() pass rate = %v, want one of three", results.PassRate)
	}

	if len(results.Rankings) != 3 {
		t.Fatalf("GetExamResults() rankings = %d, want 3", len(results.Rankings))
	}
	for i, entry := range results.Rankings {
		if entry.Rank != i+1 {
			t.Errorf("GetExamResults() rank at %d = %d", i, entry.Rank)
		}
	}
	if !results.Rankings[0].Passed || results.Rankings[1].Passed || results.Rankings[2].Passed {
		t.Errorf("GetExamResults() passed flags = %v, %v, %v",
			results.Rankings[0].Passed, results.Rankings[1].Passed, results.Rankings[2].Passed)
	}
}

func TestGetExamResults_QuestionStats(t *testing.T) {
	svc := NewResultsService(resultsFixture(t), nil, discardLogger())

	results, err := svc.GetExamResults(context.Background(), 1, "teacher-1")
	if err != nil {
		t.Fatalf("GetExamResults() error = %v", err)
	}
	if len(results.QuestionStats) != 2 {
		t.Fatalf("GetExamResults() question stats = %d, want 2", len(results.QuestionStats))
	}

	first := results.QuestionStats[0]
	if first.Attempted != 2 || first.Correct != 2 || first.Skipped != 1 {
		t.Errorf("question 1 stats = %+v", first)
	}
	if first.Accuracy != 100 || first.Difficulty != "Easy" {
		t.Errorf("question 1 accuracy = %v, difficulty = %s", first.Accuracy, first.Difficulty)
	}
	if !closeEnough(first.SkipRate, 100.0/3) {
		t.Errorf("question 1 skip rate = %v", first.SkipRate)
	}

	second := results.QuestionStats[1]
	if second.Attempted != 2 || second.Correct != 1 || second.Difficulty != "Medium" {
		t.Errorf("question 2 stats = %+v", second)
	}
}

func TestGetExamResults_Authorization(t *testing.T) {
	tests := []struct {
		name    string
		userID  string
		role    models.UserRole
		wantErr bool
	}{
		{name: "owner", userID: "teacher-1"},
		{name: "admin", userID: "admin-1", role: models.RoleAdmin},
		{name: "other teacher", userID: "teacher-2", role: models.RoleTeacher, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := resultsFixture(t)
			repo.user.getByID = func(id string) (*models.User, error) {
				return &models.User{ID: id, Role: tt.role}, nil
			}

			svc := NewResultsService(repo, nil, discardLogger())
			_, err := svc.GetExamResults(context.Background(), 1, tt.userID)

			var permErr *PermissionError
			if got := errors.As(err, &permErr); got != tt.wantErr {
				t.Errorf("GetExamResults() error = %v, want permission error %v", err, tt.wantErr)
			}
		})
	}
}

func TestDifficultyFor(t *testing.T) {
	tests := []struct {
		name      string
		accuracy  float64
		attempted int
		want      string
	}{
		{name: "easy at boundary", accuracy: 70, attempted: 10, want: "Easy"},
		{name: "medium below easy boundary", accuracy: 69.9, attempted: 10, want: "Medium"},
		{name: "medium at hard boundary", accuracy: 40, attempted: 10, want: "Medium"},
		{name: "hard below boundary", accuracy: 39.9, attempted: 10, want: "Hard"},
		{name: "unrated without attempts", accuracy: 0, attempted: 0, want: "Unrated"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := difficultyFor(tt.accuracy, tt.attempted); got != tt.want {
				t.Errorf("difficultyFor(%v, %d) = %s, want %s", tt.accuracy, tt.attempted, got, tt.want)
			}
		})
	}
}

func TestExportResults(t *testing.T) {
	svc := NewResultsService(resultsFixture(t), nil, discardLogger())

	data, filename, err := svc.ExportResults(context.Background(), 1, "teacher-1")
	if err != nil {
		t.Fatalf("ExportResults() error = %v", err)
	}
	if filename != "exam_1_results.xlsx" {
		t.Errorf("ExportResults() filename = %s", filename)
	}

	workbook, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("ExportResults() produced an unreadable workbook: %v", err)
	}
	defer workbook.Close()

	rows, err := workbook.GetRows("Rankings")
	if err != nil {
		t.Fatalf("ExportResults() rankings sheet: %v", err)
	}
	if len(rows) != 4 {
		t.Errorf("ExportResults() rankings rows = %d, want header plus 3 entries", len(rows))
	}

	stats, err := workbook.GetRows("Question Analysis")
	if err != nil {
		t.Fatalf("ExportResults() analysis sheet: %v", err)
	}
	if len(stats) != 3 {
		t.Errorf("ExportResults() analysis rows = %d, want header plus 2 questions", len(stats))
	}
}
