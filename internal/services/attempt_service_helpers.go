package services

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"hash/fnv"
	mathrand "math/rand"
	"time"

	"github.com/examstack/exam-service/internal/events"
	"github.com/examstack/exam-service/internal/models"
	"github.com/examstack/exam-service/internal/repositories"
)

// newShuffleSeed draws a random seed persisted per attempt so resumes see the
// same ordering.
func newShuffleSeed() int64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return time.Now().UnixNano()
	}
	return int64(binary.LittleEndian.Uint64(buf[:]) &^ (1 << 63))
}

func (s *attemptService) buildAttemptResponse(ctx context.Context, exam *models.Exam, attempt *models.Attempt, resumed bool, now time.Time) (*AttemptResponse, error) {
	questions := exam.Questions
	if len(questions) == 0 {
		loaded, err := s.repo.Question().GetByExam(ctx, s.db, exam.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load questions: %w", err)
		}
		for _, q := range loaded {
			questions = append(questions, *q)
		}
	}

	views, err := buildQuestionViews(questions, &exam.Settings, attempt.ShuffleSeed)
	if err != nil {
		return nil, err
	}

	resp := &AttemptResponse{
		AttemptID:     attempt.ID,
		ExamID:        exam.ID,
		ExamTitle:     exam.Title,
		StudentName:   attempt.StudentName,
		RollNumber:    attempt.RollNumber,
		StartedAt:     attempt.StartedAt,
		EndTime:       attempt.EndTime,
		TimeRemaining: attempt.TimeRemaining(now),
		Resumed:       resumed,
		Questions:     views,
	}

	// A resumed attempt carries previously saved answers back to the client
	if resumed && len(attempt.Answers) > 0 {
		answers, err := attempt.DecodeAnswers()
		if err != nil {
			return nil, fmt.Errorf("failed to decode answers: %w", err)
		}
		resp.Answers = answers
	}

	return resp, nil
}

// buildQuestionViews renders the student-facing question list. Ordering is a
// pure function of the attempt's persisted seed, so every resume of the same
// attempt sees the same shuffle.
func buildQuestionViews(questions []models.Question, settings *models.ExamSettings, seed int64) ([]AttemptQuestion, error) {
	ordered := make([]models.Question, len(questions))
	copy(ordered, questions)

	if settings != nil && settings.ShuffleQuestions {
		rng := mathrand.New(mathrand.NewSource(seed))
		rng.Shuffle(len(ordered), func(i, j int) {
			ordered[i], ordered[j] = ordered[j], ordered[i]
		})
	}

	views := make([]AttemptQuestion, 0, len(ordered))
	for _, question := range ordered {
		options, err := question.DecodeOptions()
		if err != nil {
			return nil, fmt.Errorf("failed to decode options for question %d: %w", question.ID, err)
		}

		if settings != nil && settings.ShuffleOptions {
			optRng := mathrand.New(mathrand.NewSource(optionSeed(seed, question.ID)))
			optRng.Shuffle(len(options), func(i, j int) {
				options[i], options[j] = options[j], options[i]
			})
		}

		views = append(views, AttemptQuestion{
			ID:      question.ID,
			Text:    question.Text,
			Options: options,
			Marks:   question.Marks,
		})
	}

	return views, nil
}

// optionSeed derives a per-question sub-seed so each question's options
// shuffle independently but deterministically.
func optionSeed(seed int64, questionID uint) int64 {
	h := fnv.New64a()
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(questionID))
	h.Write(buf[:])
	return seed ^ int64(h.Sum64()&^(1<<63))
}

// ===== SCORING =====

// scoreAnswers computes the final score. Correct answers earn the question's
// marks, wrong answers subtract the penalty when negative marking is on, and
// skipped questions contribute nothing. The total can go below zero.
func scoreAnswers(exam *models.Exam, questions []*models.Question, answers map[uint]string) (float64, int, error) {
	byID := make(map[uint]*models.Question, len(questions))
	for _, question := range questions {
		byID[question.ID] = question
	}

	for questionID, optionID := range answers {
		question, ok := byID[questionID]
		if !ok {
			return 0, 0, ErrUnknownAnswerQuestion
		}
		if optionID != "" && !question.HasOption(optionID) {
			return 0, 0, ErrUnknownAnswerOption
		}
	}

	var score float64
	var correct int
	for _, question := range questions {
		answer, answered := answers[question.ID]
		if !answered || answer == "" {
			continue
		}
		if answer == question.CorrectOption {
			score += question.Marks
			correct++
		} else {
			score -= question.Penalty(exam)
		}
	}

	return score, correct, nil
}

func totalExamMarks(questions []*models.Question) float64 {
	var total float64
	for _, question := range questions {
		total += question.Marks
	}
	return total
}

func passThreshold(score, totalMarks, passPercentage float64) bool {
	if totalMarks <= 0 {
		return false
	}
	return (score/totalMarks)*100 >= passPercentage
}

// ===== SHARED HELPERS =====

func (s *attemptService) requireExamOwner(ctx context.Context, examID uint, userID, action string) error {
	exam, err := s.repo.Exam().GetByID(ctx, s.db, examID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrExamNotFound
		}
		return fmt.Errorf("failed to get exam: %w", err)
	}

	if exam.CreatedBy == userID {
		return nil
	}

	user, err := s.repo.User().GetByID(ctx, userID)
	if err != nil || user.Role != models.RoleAdmin {
		return NewPermissionError(userID, examID, "exam", action, "not the exam owner")
	}

	return nil
}

func (s *attemptService) publishEvent(ctx context.Context, eventType string, payload map[string]any) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, events.NewEvent(eventType, payload)); err != nil {
		s.logger.Warn("Failed to publish event", "event_type", eventType, "error", err)
	}
}
