package services

import (
	"context"
	"errors"
	"log/slog"
	"reflect"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/examstack/exam-service/internal/models"
	"github.com/examstack/exam-service/internal/repositories"
	"github.com/examstack/exam-service/internal/validator"
)

func TestNewAttemptService(t *testing.T) {
	type args struct {
		repo      repositories.Repository
		db        *gorm.DB
		logger    *slog.Logger
		validator *validator.Validator
	}
	tests := []struct {
		name string
		args args
		want AttemptService
	}{
		{name: "ok"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			NewAttemptService(tt.args.repo, tt.args.db, tt.args.logger, tt.args.validator, nil)
		})
	}
}

func newAttemptServiceAt(repo repositories.Repository, now time.Time) *attemptService {
	svc := NewAttemptService(repo, nil, discardLogger(), validator.New(), nil).(*attemptService)
	svc.now = func() time.Time { return now }
	return svc
}

func publishedExam() *models.Exam {
	return &models.Exam{
		ID:             1,
		Title:          "Algebra Final",
		Duration:       60,
		Status:         models.ExamPublished,
		PassPercentage: 40,
		CreatedBy:      "teacher-1",
	}
}

func TestStartAttempt_CreatesAttempt(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	exam := publishedExam()

	var created *models.Attempt
	repo := &mockRepository{
		exam: mockExamRepo{
			getByIDWithDetails: func(id uint) (*models.Exam, error) { return exam, nil },
		},
		attempt: mockAttemptRepo{
			create: func(attempt *models.Attempt) error {
				attempt.ID = 7
				created = attempt
				return nil
			},
		},
		question: mockQuestionRepo{
			getByExam: func(examID uint) ([]*models.Question, error) {
				return []*models.Question{
					examQuestion(1, "a", 2, nil),
					examQuestion(2, "b", 3, nil),
				}, nil
			},
		},
	}

	svc := newAttemptServiceAt(repo, now)
	resp, err := svc.Start(context.Background(), &StartAttemptRequest{
		ExamID:      1,
		StudentName: "Asha Rao",
		RollNumber:  "21CS042",
	})
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if resp.AttemptID != 7 || resp.Resumed {
		t.Errorf("Start() attempt_id = %d, resumed = %v", resp.AttemptID, resp.Resumed)
	}
	wantEnd := now.Add(60 * time.Minute)
	if !created.EndTime.Equal(wantEnd) {
		t.Errorf("Start() end time = %v, want %v", created.EndTime, wantEnd)
	}
	if resp.TimeRemaining != 3600 {
		t.Errorf("Start() time remaining = %d, want 3600", resp.TimeRemaining)
	}
	if len(resp.Questions) != 2 {
		t.Errorf("Start() questions = %d, want 2", len(resp.Questions))
	}
}

func TestStartAttempt_ResumesOpenAttempt(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)
	exam := publishedExam()

	answers, err := models.EncodeAnswers(map[uint]string{1: "a"})
	if err != nil {
		t.Fatal(err)
	}
	open := &models.Attempt{
		ID:          3,
		ExamID:      1,
		StudentName: "Asha Rao",
		RollNumber:  "21CS042",
		StartedAt:   now.Add(-10 * time.Minute),
		EndTime:     now.Add(50 * time.Minute),
		ShuffleSeed: 42,
		Answers:     answers,
	}

	repo := &mockRepository{
		exam: mockExamRepo{
			getByIDWithDetails: func(id uint) (*models.Exam, error) { return exam, nil },
		},
		attempt: mockAttemptRepo{
			getOpenAttempt: func(examID uint, rollNumber string, at time.Time) (*models.Attempt, error) {
				return open, nil
			},
			create: func(attempt *models.Attempt) error {
				t.Error("Start() created a new attempt instead of resuming")
				return nil
			},
		},
		question: mockQuestionRepo{
			getByExam: func(examID uint) ([]*models.Question, error) {
				return []*models.Question{examQuestion(1, "a", 2, nil)}, nil
			},
		},
	}

	svc := newAttemptServiceAt(repo, now)
	resp, err := svc.Start(context.Background(), &StartAttemptRequest{
		ExamID:      1,
		StudentName: "Asha Rao",
		RollNumber:  "21CS042",
	})
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if !resp.Resumed || resp.AttemptID != 3 {
		t.Errorf("Start() attempt_id = %d, resumed = %v, want resumed attempt 3", resp.AttemptID, resp.Resumed)
	}
	if resp.Answers[1] != "a" {
		t.Errorf("Start() saved answers = %v, want answer a for question 1", resp.Answers)
	}
}

func TestStartAttempt_Gates(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	hashStr := string(hash)

	tests := []struct {
		name     string
		exam     func() *models.Exam
		attempts int64
		password string
		wantErr  error
	}{
		{
			name: "draft exam",
			exam: func() *models.Exam {
				exam := publishedExam()
				exam.Status = models.ExamDraft
				return exam
			},
			wantErr: ErrExamNotPublished,
		},
		{
			name: "before scheduled start",
			exam: func() *models.Exam {
				exam := publishedExam()
				exam.ScheduledStart = timePtr(now.Add(time.Hour))
				return exam
			},
			wantErr: ErrExamNotStarted,
		},
		{
			name: "after scheduled end",
			exam: func() *models.Exam {
				exam := publishedExam()
				exam.ScheduledEnd = timePtr(now.Add(-time.Minute))
				return exam
			},
			wantErr: ErrExamClosed,
		},
		{
			name: "wrong password",
			exam: func() *models.Exam {
				exam := publishedExam()
				exam.RequirePassword = true
				exam.PasswordHash = &hashStr
				return exam
			},
			password: "nope",
			wantErr:  ErrWrongPassword,
		},
		{
			name: "attempt limit reached",
			exam: func() *models.Exam {
				exam := publishedExam()
				exam.MaxAttempts = intPtr(1)
				return exam
			},
			attempts: 1,
			wantErr:  ErrAttemptLimitReached,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exam := tt.exam()
			repo := &mockRepository{
				exam: mockExamRepo{
					getByIDWithDetails: func(id uint) (*models.Exam, error) { return exam, nil },
				},
				attempt: mockAttemptRepo{
					countByStudent: func(examID uint, rollNumber string) (int64, error) {
						return tt.attempts, nil
					},
				},
			}

			svc := newAttemptServiceAt(repo, now)
			_, err := svc.Start(context.Background(), &StartAttemptRequest{
				ExamID:      1,
				StudentName: "Asha Rao",
				RollNumber:  "21CS042",
				Password:    tt.password,
			})
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Start() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestStartAttempt_CorrectPassword(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	hashStr := string(hash)

	exam := publishedExam()
	exam.RequirePassword = true
	exam.PasswordHash = &hashStr

	repo := &mockRepository{
		exam: mockExamRepo{
			getByIDWithDetails: func(id uint) (*models.Exam, error) { return exam, nil },
		},
		attempt: mockAttemptRepo{
			create: func(attempt *models.Attempt) error {
				attempt.ID = 11
				return nil
			},
		},
		question: mockQuestionRepo{
			getByExam: func(examID uint) ([]*models.Question, error) {
				return []*models.Question{examQuestion(1, "a", 2, nil)}, nil
			},
		},
	}

	svc := newAttemptServiceAt(repo, now)
	resp, err := svc.Start(context.Background(), &StartAttemptRequest{
		ExamID:      1,
		StudentName: "Asha Rao",
		RollNumber:  "21CS042",
		Password:    "s3cret",
	})
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if resp.AttemptID != 11 {
		t.Errorf("Start() attempt_id = %d, want 11", resp.AttemptID)
	}
}

func TestSubmitAttempt_Scoring(t *testing.T) {
	now := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)

	questions := []*models.Question{
		examQuestion(1, "a", 2, nil),
		examQuestion(2, "b", 2, nil),
		examQuestion(3, "c", 2, floatPtr(1)),
	}

	tests := []struct {
		name        string
		answers     map[uint]string
		wantScore   float64
		wantCorrect int
		wantPassed  bool
	}{
		{
			name:        "all correct",
			answers:     map[uint]string{1: "a", 2: "b", 3: "c"},
			wantScore:   6,
			wantCorrect: 3,
			wantPassed:  true,
		},
		{
			name:        "mixed with exam level penalty",
			answers:     map[uint]string{1: "a", 2: "c", 3: ""},
			wantScore:   1.5,
			wantCorrect: 1,
			wantPassed:  false,
		},
		{
			name:        "question level penalty override",
			answers:     map[uint]string{1: "a", 2: "b", 3: "a"},
			wantScore:   3,
			wantCorrect: 2,
			wantPassed:  true,
		},
		{
			name:        "all wrong goes negative",
			answers:     map[uint]string{1: "b", 2: "a", 3: "a"},
			wantScore:   -2,
			wantCorrect: 0,
			wantPassed:  false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exam := publishedExam()
			exam.NegativeMarking = true
			exam.NegativeMarks = 0.5
			exam.ShowResultsImmediately = true

			attempt := &models.Attempt{
				ID:        9,
				ExamID:    1,
				StartedAt: now.Add(-30 * time.Minute),
				EndTime:   now.Add(30 * time.Minute),
			}

			var completion repositories.AttemptCompletion
			repo := &mockRepository{
				exam: mockExamRepo{
					getByIDWithDetails: func(id uint) (*models.Exam, error) { return exam, nil },
				},
				attempt: mockAttemptRepo{
					getByID: func(id uint) (*models.Attempt, error) { return attempt, nil },
					complete: func(id uint, c repositories.AttemptCompletion) (bool, error) {
						completion = c
						return true, nil
					},
				},
				question: mockQuestionRepo{
					getByExam: func(examID uint) ([]*models.Question, error) { return questions, nil },
				},
			}

			svc := newAttemptServiceAt(repo, now)
			result, err := svc.Submit(context.Background(), &SubmitAttemptRequest{
				AttemptID: 9,
				Answers:   tt.answers,
			})
			if err != nil {
				t.Fatalf("Submit() error = %v", err)
			}

			if *result.Score != tt.wantScore {
				t.Errorf("Submit() score = %v, want %v", *result.Score, tt.wantScore)
			}
			if *result.CorrectAnswers != tt.wantCorrect {
				t.Errorf("Submit() correct = %d, want %d", *result.CorrectAnswers, tt.wantCorrect)
			}
			if *result.Passed != tt.wantPassed {
				t.Errorf("Submit() passed = %v, want %v", *result.Passed, tt.wantPassed)
			}
			if result.Late {
				t.Error("Submit() marked an on-time submission late")
			}
			if completion.Score != tt.wantScore || completion.TotalQuestions != 3 {
				t.Errorf("Submit() persisted completion = %+v", completion)
			}
		})
	}
}

func TestSubmitAttempt_Expiry(t *testing.T) {
	now := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		allowLate bool
		wantErr   error
		wantLate  bool
	}{
		{name: "late submission rejected", allowLate: false, wantErr: ErrAttemptExpired},
		{name: "late submission accepted and flagged", allowLate: true, wantLate: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exam := publishedExam()
			exam.AllowLateSubmission = tt.allowLate

			attempt := &models.Attempt{
				ID:        9,
				ExamID:    1,
				StartedAt: now.Add(-90 * time.Minute),
				EndTime:   now.Add(-time.Minute),
			}

			var completion repositories.AttemptCompletion
			repo := &mockRepository{
				exam: mockExamRepo{
					getByIDWithDetails: func(id uint) (*models.Exam, error) { return exam, nil },
				},
				attempt: mockAttemptRepo{
					getByID: func(id uint) (*models.Attempt, error) { return attempt, nil },
					complete: func(id uint, c repositories.AttemptCompletion) (bool, error) {
						completion = c
						return true, nil
					},
				},
				question: mockQuestionRepo{
					getByExam: func(examID uint) ([]*models.Question, error) {
						return []*models.Question{examQuestion(1, "a", 2, nil)}, nil
					},
				},
			}

			svc := newAttemptServiceAt(repo, now)
			result, err := svc.Submit(context.Background(), &SubmitAttemptRequest{
				AttemptID: 9,
				Answers:   map[uint]string{1: "a"},
			})
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Submit() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Submit() error = %v", err)
			}
			if result.Late != tt.wantLate || completion.Late != tt.wantLate {
				t.Errorf("Submit() late = %v, persisted late = %v, want %v", result.Late, completion.Late, tt.wantLate)
			}
		})
	}
}

func TestSubmitAttempt_AlreadySubmitted(t *testing.T) {
	now := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	exam := publishedExam()

	tests := []struct {
		name      string
		submitted bool
		completed bool
	}{
		{name: "flag already set", submitted: true},
		{name: "lost the conditional update race", submitted: false, completed: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attempt := &models.Attempt{
				ID:        9,
				ExamID:    1,
				Submitted: tt.submitted,
				EndTime:   now.Add(30 * time.Minute),
			}

			repo := &mockRepository{
				exam: mockExamRepo{
					getByIDWithDetails: func(id uint) (*models.Exam, error) { return exam, nil },
				},
				attempt: mockAttemptRepo{
					getByID: func(id uint) (*models.Attempt, error) { return attempt, nil },
					complete: func(id uint, c repositories.AttemptCompletion) (bool, error) {
						return tt.completed, nil
					},
				},
				question: mockQuestionRepo{
					getByExam: func(examID uint) ([]*models.Question, error) {
						return []*models.Question{examQuestion(1, "a", 2, nil)}, nil
					},
				},
			}

			svc := newAttemptServiceAt(repo, now)
			_, err := svc.Submit(context.Background(), &SubmitAttemptRequest{AttemptID: 9})
			if !errors.Is(err, ErrAttemptAlreadySubmitted) {
				t.Errorf("Submit() error = %v, want %v", err, ErrAttemptAlreadySubmitted)
			}
		})
	}
}

func TestSubmitAttempt_UnknownAnswers(t *testing.T) {
	now := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	exam := publishedExam()

	tests := []struct {
		name    string
		answers map[uint]string
		wantErr error
	}{
		{name: "unknown question", answers: map[uint]string{99: "a"}, wantErr: ErrUnknownAnswerQuestion},
		{name: "unknown option", answers: map[uint]string{1: "z"}, wantErr: ErrUnknownAnswerOption},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attempt := &models.Attempt{ID: 9, ExamID: 1, EndTime: now.Add(30 * time.Minute)}

			repo := &mockRepository{
				exam: mockExamRepo{
					getByIDWithDetails: func(id uint) (*models.Exam, error) { return exam, nil },
				},
				attempt: mockAttemptRepo{
					getByID: func(id uint) (*models.Attempt, error) { return attempt, nil },
				},
				question: mockQuestionRepo{
					getByExam: func(examID uint) ([]*models.Question, error) {
						return []*models.Question{examQuestion(1, "a", 2, nil)}, nil
					},
				},
			}

			svc := newAttemptServiceAt(repo, now)
			_, err := svc.Submit(context.Background(), &SubmitAttemptRequest{
				AttemptID: 9,
				Answers:   tt.answers,
			})
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Submit() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestBuildQuestionViews_DeterministicForSeed(t *testing.T) {
	questions := make([]models.Question, 0, 8)
	for i := uint(1); i <= 8; i++ {
		questions = append(questions, *examQuestion(i, "a", 1, nil))
	}
	settings := &models.ExamSettings{ShuffleQuestions: true, ShuffleOptions: true}

	first, err := buildQuestionViews(questions, settings, 12345)
	if err != nil {
		t.Fatalf("buildQuestionViews() error = %v", err)
	}
	second, err := buildQuestionViews(questions, settings, 12345)
	if err != nil {
		t.Fatalf("buildQuestionViews() error = %v", err)
	}

	if !reflect.DeepEqual(first, second) {
		t.Error("buildQuestionViews() produced different orderings for the same seed")
	}

	seen := make(map[uint]bool, len(first))
	for _, view := range first {
		seen[view.ID] = true
	}
	if len(seen) != len(questions) {
		t.Errorf("buildQuestionViews() returned %d distinct questions, want %d", len(seen), len(questions))
	}
}

func TestBuildQuestionViews_NoShuffleKeepsOrder(t *testing.T) {
	questions := []models.Question{
		*examQuestion(1, "a", 1, nil),
		*examQuestion(2, "a", 1, nil),
		*examQuestion(3, "a", 1, nil),
	}

	views, err := buildQuestionViews(questions, &models.ExamSettings{}, 99)
	if err != nil {
		t.Fatalf("buildQuestionViews() error = %v", err)
	}
	for i, view := range views {
		if view.ID != uint(i+1) {
			t.Fatalf("buildQuestionViews() order changed without shuffle: %v", views)
		}
	}
}

func TestOptionSeed_VariesPerQuestion(t *testing.T) {
	if optionSeed(12345, 1) == optionSeed(12345, 2) {
		t.Error("optionSeed() collided for different questions")
	}
	if optionSeed(12345, 1) != optionSeed(12345, 1) {
		t.Error("optionSeed() is not deterministic")
	}
}

func TestPassThreshold(t *testing.T) {
	tests := []struct {
		name           string
		score          float64
		totalMarks     float64
		passPercentage float64
		want           bool
	}{
		{name: "exact boundary", score: 4, totalMarks: 10, passPercentage: 40, want: true},
		{name: "below boundary", score: 3.9, totalMarks: 10, passPercentage: 40, want: false},
		{name: "zero total marks", score: 0, totalMarks: 0, passPercentage: 40, want: false},
		{name: "negative score", score: -2, totalMarks: 10, passPercentage: 0, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := passThreshold(tt.score, tt.totalMarks, tt.passPercentage); got != tt.want {
				t.Errorf("passThreshold(%v, %v, %v) = %v, want %v", tt.score, tt.totalMarks, tt.passPercentage, got, tt.want)
			}
		})
	}
}

func TestGetStudentResult_RollNumberMismatch(t *testing.T) {
	now := time.Date(2026, 3, 10, 11, 0, 0, 0, time.UTC)
	attempt := &models.Attempt{
		ID:         9,
		ExamID:     1,
		RollNumber: "21CS042",
		Submitted:  true,
		Exam:       *publishedExam(),
	}

	repo := &mockRepository{
		attempt: mockAttemptRepo{
			getByIDWithDetails: func(id uint) (*models.Attempt, error) { return attempt, nil },
		},
	}

	svc := newAttemptServiceAt(repo, now)
	if _, err := svc.GetStudentResult(context.Background(), 9, "21CS041"); !errors.Is(err, ErrAttemptNotFound) {
		t.Errorf("GetStudentResult() error = %v, want %v", err, ErrAttemptNotFound)
	}
}
