package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// QuestionOption is one selectable choice. Option IDs are stable within a
// question; persisted answers always reference option IDs, never positions.
type QuestionOption struct {
	ID   string `json:"id" validate:"required"`
	Text string `json:"text" validate:"required"`
}

type Question struct {
	ID     uint `json:"id" gorm:"primaryKey"`
	ExamID uint `json:"exam_id" gorm:"not null;index"`

	Text    string         `json:"text" gorm:"type:text;not null" validate:"required"`
	Options datatypes.JSON `json:"options" gorm:"type:jsonb;not null"`

	// CorrectOption references an option ID; checked against Options at creation.
	CorrectOption string  `json:"correct_option" gorm:"not null;size:64"`
	Marks         float64 `json:"marks" gorm:"not null" validate:"required,gt=0"`

	// NegativeMarks overrides the exam-level penalty when set.
	NegativeMarks *float64 `json:"negative_marks" validate:"omitempty,min=0"`

	DisplayOrder int `json:"display_order" gorm:"not null;default:0"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Exam Exam `json:"-" gorm:"foreignKey:ExamID"`
}

func (Question) TableName() string {
	return "questions"
}

// DecodeOptions unmarshals the JSONB options column.
func (q *Question) DecodeOptions() ([]QuestionOption, error) {
	var options []QuestionOption
	if err := json.Unmarshal(q.Options, &options); err != nil {
		return nil, err
	}
	return options, nil
}

// HasOption reports whether the given option ID exists on this question.
func (q *Question) HasOption(optionID string) bool {
	options, err := q.DecodeOptions()
	if err != nil {
		return false
	}
	for _, opt := range options {
		if opt.ID == optionID {
			return true
		}
	}
	return false
}

// Penalty returns the marks deducted for a wrong answer under the exam's
// negative-marking policy. The question-level override wins when present.
func (q *Question) Penalty(exam *Exam) float64 {
	if !exam.NegativeMarking {
		return 0
	}
	if q.NegativeMarks != nil {
		return *q.NegativeMarks
	}
	return exam.NegativeMarks
}

func EncodeOptions(options []QuestionOption) (datatypes.JSON, error) {
	data, err := json.Marshal(options)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(data), nil
}
