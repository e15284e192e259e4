package services

import (
	"context"
	"testing"
	"time"

	"github.com/examstack/exam-service/internal/events"
	"github.com/examstack/exam-service/internal/models"
	"github.com/examstack/exam-service/internal/validator"
)

func TestAttemptLifecycleEvents(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	exam := publishedExam()

	publisher := events.NewMockPublisher()
	repo := &mockRepository{
		exam: mockExamRepo{
			getByIDWithDetails: func(id uint) (*models.Exam, error) { return exam, nil },
		},
		attempt: mockAttemptRepo{
			create: func(attempt *models.Attempt) error {
				attempt.ID = 7
				return nil
			},
			getByID: func(id uint) (*models.Attempt, error) {
				return &models.Attempt{ID: 7, ExamID: 1, EndTime: now.Add(time.Hour)}, nil
			},
		},
		question: mockQuestionRepo{
			getByExam: func(examID uint) ([]*models.Question, error) {
				return []*models.Question{examQuestion(1, "a", 2, nil)}, nil
			},
		},
	}

	svc := NewAttemptService(repo, nil, discardLogger(), validator.New(), publisher).(*attemptService)
	svc.now = func() time.Time { return now }

	ctx := context.Background()
	if _, err := svc.Start(ctx, &StartAttemptRequest{
		ExamID:      1,
		StudentName: "Asha Rao",
		RollNumber:  "21CS042",
	}); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if _, err := svc.Submit(ctx, &SubmitAttemptRequest{
		AttemptID: 7,
		Answers:   map[uint]string{1: "a"},
	}); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	published := publisher.Published()
	if len(published) != 2 {
		t.Fatalf("published %d events, want 2", len(published))
	}
	if published[0].Type != events.EventAttemptStarted || published[1].Type != events.EventAttemptSubmitted {
		t.Errorf("event types = %s, %s", published[0].Type, published[1].Type)
	}

	for _, event := range published {
		if event.ID == "" {
			t.Error("event id is empty")
		}
		if event.Source != "exam-service" {
			t.Errorf("event source = %s", event.Source)
		}
		if event.Version != "1.0" {
			t.Errorf("event version = %s", event.Version)
		}
		if event.OccurredAt.IsZero() {
			t.Error("event timestamp is zero")
		}
	}
}

func TestViolationEventOnlyWhenLimitExceeded(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 15, 0, 0, time.UTC)

	tests := []struct {
		name       string
		count      int
		wantEvents int
	}{
		{name: "under the limit", count: 2, wantEvents: 0},
		{name: "over the limit", count: 5, wantEvents: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attempt := monitoredAttempt(4)
			fresh := *attempt
			fresh.ViolationCount = tt.count

			publisher := events.NewMockPublisher()
			repo := &mockRepository{
				attempt: mockAttemptRepo{
					getByIDWithDetails: func(id uint) (*models.Attempt, error) { return attempt, nil },
					getByID:            func(id uint) (*models.Attempt, error) { return &fresh, nil },
				},
			}

			svc := NewIntegrityService(repo, nil, discardLogger(), validator.New(), publisher).(*integrityService)
			svc.now = func() time.Time { return now }

			if _, err := svc.TrackEvent(context.Background(), &TrackEventRequest{
				AttemptID: 5,
				EventType: string(models.EventTabSwitch),
			}); err != nil {
				t.Fatalf("TrackEvent() error = %v", err)
			}

			published := publisher.Published()
			if len(published) != tt.wantEvents {
				t.Fatalf("published %d events, want %d", len(published), tt.wantEvents)
			}
			if tt.wantEvents == 1 && published[0].Type != events.EventViolationRecorded {
				t.Errorf("event type = %s, want %s", published[0].Type, events.EventViolationRecorded)
			}
		})
	}
}
