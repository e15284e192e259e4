package models

import (
	"encoding/json"
	"strconv"
	"time"

	"gorm.io/datatypes"
)

// Attempt is one student's timed run through an exam. Students are identified
// by name and roll number supplied at start time, not by a system account.
type Attempt struct {
	ID     uint `json:"id" gorm:"primaryKey"`
	ExamID uint `json:"exam_id" gorm:"not null;index:idx_attempt_exam_roll"`

	StudentName string `json:"student_name" gorm:"not null;size:200"`
	RollNumber  string `json:"roll_number" gorm:"not null;size:64;index:idx_attempt_exam_roll"`

	// Timing. EndTime is computed once at creation as StartedAt + exam duration
	// and is the sole authority for expiry; it is never updated afterwards.
	StartedAt   time.Time  `json:"started_at" gorm:"not null"`
	EndTime     time.Time  `json:"end_time" gorm:"not null"`
	Submitted   bool       `json:"submitted" gorm:"not null;default:false;index"`
	Late        bool       `json:"late" gorm:"not null;default:false"`
	CompletedAt *time.Time `json:"completed_at"`

	// Answers maps question ID to the selected option ID. Partial maps are
	// allowed; written once at submit.
	Answers datatypes.JSON `json:"answers" gorm:"type:jsonb"`

	// Scoring, computed at submit. Score may be negative under negative marking.
	Score          float64 `json:"score"`
	CorrectAnswers int     `json:"correct_answers"`
	TotalQuestions int     `json:"total_questions"`

	// ViolationCount is incremented atomically in the store, never via
	// read-modify-write, and only while the attempt is open.
	ViolationCount int `json:"violation_count" gorm:"not null;default:0"`

	// ShuffleSeed drives the per-attempt presentation order so repeated page
	// loads render questions and options in a stable order.
	ShuffleSeed int64 `json:"-" gorm:"not null"`

	// Metadata
	IPAddress *string `json:"ip_address" gorm:"size:45"`
	UserAgent *string `json:"user_agent" gorm:"type:text"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Exam            Exam             `json:"-" gorm:"foreignKey:ExamID"`
	IntegrityEvents []IntegrityEvent `json:"integrity_events,omitempty" gorm:"foreignKey:AttemptID"`
}

func (Attempt) TableName() string {
	return "attempts"
}

// Expired reports whether the deadline has passed at the given time.
func (a *Attempt) Expired(now time.Time) bool {
	return now.After(a.EndTime)
}

// Open reports whether the attempt still accepts writes: not submitted and
// not past the deadline.
func (a *Attempt) Open(now time.Time) bool {
	return !a.Submitted && !a.Expired(now)
}

// TimeRemaining returns seconds until the deadline, floored at zero.
func (a *Attempt) TimeRemaining(now time.Time) int {
	remaining := int(a.EndTime.Sub(now).Seconds())
	if remaining < 0 {
		return 0
	}
	return remaining
}

// DecodeAnswers unmarshals the answers column into a question-ID keyed map.
func (a *Attempt) DecodeAnswers() (map[uint]string, error) {
	if len(a.Answers) == 0 {
		return map[uint]string{}, nil
	}
	var raw map[string]string
	if err := json.Unmarshal(a.Answers, &raw); err != nil {
		return nil, err
	}
	answers := make(map[uint]string, len(raw))
	for key, optionID := range raw {
		questionID, err := strconv.ParseUint(key, 10, 32)
		if err != nil {
			continue
		}
		answers[uint(questionID)] = optionID
	}
	return answers, nil
}

func EncodeAnswers(answers map[uint]string) (datatypes.JSON, error) {
	raw := make(map[string]string, len(answers))
	for questionID, optionID := range answers {
		raw[strconv.FormatUint(uint64(questionID), 10)] = optionID
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(data), nil
}
