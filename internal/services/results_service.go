package services

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"

	"github.com/examstack/exam-service/internal/models"
	"github.com/examstack/exam-service/internal/repositories"
)

type resultsService struct {
	repo   repositories.Repository
	db     *gorm.DB
	logger *slog.Logger
}

func NewResultsService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger) ResultsService {
	return &resultsService{
		repo:   repo,
		db:     db,
		logger: logger,
	}
}

func (s *resultsService) GetExamResults(ctx context.Context, examID uint, userID string) (*ExamResults, error) {
	exam, err := s.repo.Exam().GetByID(ctx, s.db, examID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("failed to get exam: %w", err)
	}

	if err := s.requireExamOwner(ctx, exam, userID); err != nil {
		return nil, err
	}

	questions, err := s.repo.Question().GetByExam(ctx, s.db, examID)
	if err != nil {
		return nil, fmt.Errorf("failed to get questions: %w", err)
	}

	// Already ordered by score desc, completion time asc
	attempts, err := s.repo.Attempt().GetSubmittedByExam(ctx, s.db, examID)
	if err != nil {
		return nil, fmt.Errorf("failed to get attempts: %w", err)
	}

	totalMarks := 0.0
	for _, question := range questions {
		totalMarks += question.Marks
	}

	results := &ExamResults{
		ExamID:         exam.ID,
		Title:          exam.Title,
		TotalMarks:     totalMarks,
		PassPercentage: exam.PassPercentage,
		TotalAttempts:  len(attempts),
		Rankings:       buildRankings(attempts, totalMarks, exam.PassPercentage),
		QuestionStats:  buildQuestionStats(questions, attempts),
	}

	if len(attempts) > 0 {
		var sum float64
		highest := attempts[0].Score
		lowest := attempts[0].Score
		passed := 0

		for _, attempt := range attempts {
			sum += attempt.Score
			if attempt.Score > highest {
				highest = attempt.Score
			}
			if attempt.Score < lowest {
				lowest = attempt.Score
			}
			if passThreshold(attempt.Score, totalMarks, exam.PassPercentage) {
				passed++
			}
		}

		results.AverageScore = sum / float64(len(attempts))
		results.HighestScore = highest
		results.LowestScore = lowest
		results.PassRate = float64(passed) / float64(len(attempts)) * 100
	}

	return results, nil
}

// ExportResults renders the exam results as an XLSX workbook with a rankings
// sheet and a question analysis sheet.
func (s *resultsService) ExportResults(ctx context.Context, examID uint, userID string) ([]byte, string, error) {
	results, err := s.GetExamResults(ctx, examID, userID)
	if err != nil {
		return nil, "", err
	}

	f := excelize.NewFile()
	defer f.Close()

	const rankingsSheet = "Rankings"
	f.SetSheetName("Sheet1", rankingsSheet)

	headers := []string{"Rank", "Student Name", "Roll Number", "Score", "Passed", "Late", "Completed At"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(rankingsSheet, cell, header)
	}

	for row, entry := range results.Rankings {
		values := []interface{}{
			entry.Rank,
			entry.StudentName,
			entry.RollNumber,
			entry.Score,
			entry.Passed,
			entry.Late,
			entry.CompletedAt.Format(time.RFC3339),
		}
		for col, value := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			f.SetCellValue(rankingsSheet, cell, value)
		}
	}

	const statsSheet = "Question Analysis"
	if _, err := f.NewSheet(statsSheet); err != nil {
		return nil, "", fmt.Errorf("failed to create analysis sheet: %w", err)
	}

	statHeaders := []string{"Question ID", "Text", "Attempted", "Correct", "Skipped", "Accuracy %", "Skip Rate %", "Difficulty"}
	for i, header := range statHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(statsSheet, cell, header)
	}

	for row, stat := range results.QuestionStats {
		values := []interface{}{
			stat.QuestionID,
			stat.Text,
			stat.Attempted,
			stat.Correct,
			stat.Skipped,
			stat.Accuracy,
			stat.SkipRate,
			stat.Difficulty,
		}
		for col, value := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			f.SetCellValue(statsSheet, cell, value)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, "", fmt.Errorf("failed to write workbook: %w", err)
	}

	filename := fmt.Sprintf("exam_%d_results.xlsx", examID)
	s.logger.Info("Exported exam results", "exam_id", examID, "rows", len(results.Rankings))

	return buf.Bytes(), filename, nil
}

// ===== AGGREGATION =====

// buildRankings assigns ranks over attempts sorted by score descending with
// earlier completion breaking ties.
func buildRankings(attempts []*models.Attempt, totalMarks, passPercentage float64) []RankingEntry {
	rankings := make([]RankingEntry, 0, len(attempts))
	for i, attempt := range attempts {
		completedAt := attempt.CreatedAt
		if attempt.CompletedAt != nil {
			completedAt = *attempt.CompletedAt
		}

		rankings = append(rankings, RankingEntry{
			Rank:        i + 1,
			AttemptID:   attempt.ID,
			StudentName: attempt.StudentName,
			RollNumber:  attempt.RollNumber,
			Score:       attempt.Score,
			Passed:      passThreshold(attempt.Score, totalMarks, passPercentage),
			Late:        attempt.Late,
			CompletedAt: completedAt,
		})
	}
	return rankings
}

func buildQuestionStats(questions []*models.Question, attempts []*models.Attempt) []QuestionStat {
	stats := make([]QuestionStat, 0, len(questions))

	// Decode each attempt's answers once
	answerSets := make([]map[uint]string, 0, len(attempts))
	for _, attempt := range attempts {
		answers, err := attempt.DecodeAnswers()
		if err != nil {
			answers = map[uint]string{}
		}
		answerSets = append(answerSets, answers)
	}

	for _, question := range questions {
		var attempted, correct, skipped int
		for _, answers := range answerSets {
			answer, ok := answers[question.ID]
			if !ok || answer == "" {
				skipped++
				continue
			}
			attempted++
			if answer == question.CorrectOption {
				correct++
			}
		}

		stat := QuestionStat{
			QuestionID: question.ID,
			Text:       question.Text,
			Attempted:  attempted,
			Correct:    correct,
			Skipped:    skipped,
		}

		if attempted > 0 {
			stat.Accuracy = float64(correct) / float64(attempted) * 100
		}
		if len(attempts) > 0 {
			stat.SkipRate = float64(skipped) / float64(len(attempts)) * 100
		}
		stat.Difficulty = difficultyFor(stat.Accuracy, attempted)

		stats = append(stats, stat)
	}

	return stats
}

// difficultyFor buckets per-question accuracy: Easy at 70% and above, Hard
// below 40%, Medium between.
func difficultyFor(accuracy float64, attempted int) string {
	if attempted == 0 {
		return "Unrated"
	}
	switch {
	case accuracy >= 70:
		return "Easy"
	case accuracy < 40:
		return "Hard"
	default:
		return "Medium"
	}
}

func (s *resultsService) requireExamOwner(ctx context.Context, exam *models.Exam, userID string) error {
	if exam.CreatedBy == userID {
		return nil
	}

	user, err := s.repo.User().GetByID(ctx, userID)
	if err != nil || user.Role != models.RoleAdmin {
		return NewPermissionError(userID, exam.ID, "exam", "read_results", "not the exam owner")
	}

	return nil
}
