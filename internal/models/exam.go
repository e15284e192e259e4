package models

import (
	"time"

	"gorm.io/gorm"
)

type ExamStatus string

const (
	ExamDraft     ExamStatus = "Draft"
	ExamPublished ExamStatus = "Published"
	ExamArchived  ExamStatus = "Archived"
)

type Exam struct {
	ID          uint       `json:"id" gorm:"primaryKey"`
	Title       string     `json:"title" gorm:"not null;size:200;index" validate:"required,min=1,max=200"`
	Description *string    `json:"description" gorm:"type:text" validate:"omitempty,max=1000"`
	Duration    int        `json:"duration" gorm:"not null" validate:"required,min=1,max=480"`
	Status      ExamStatus `json:"status" gorm:"default:Draft;index" validate:"omitempty,oneof=Draft Published Archived"`

	// Scoring policy
	PassPercentage  float64 `json:"pass_percentage" gorm:"not null;default:40" validate:"min=0,max=100"`
	NegativeMarking bool    `json:"negative_marking" gorm:"not null;default:false"`
	NegativeMarks   float64 `json:"negative_marks" gorm:"not null;default:0" validate:"min=0"`

	// Access control
	RequirePassword     bool       `json:"require_password" gorm:"not null;default:false"`
	PasswordHash        *string    `json:"-" gorm:"size:255"`
	MaxAttempts         *int       `json:"max_attempts" validate:"omitempty,min=1,max=10"`
	ScheduledStart      *time.Time `json:"scheduled_start"`
	ScheduledEnd        *time.Time `json:"scheduled_end"`
	AllowLateSubmission bool       `json:"allow_late_submission" gorm:"not null;default:false"`

	ShowResultsImmediately bool `json:"show_results_immediately" gorm:"not null;default:false"`

	PublishedAt *time.Time `json:"published_at"`

	// Metadata
	CreatedBy string         `json:"created_by" gorm:"not null;index;size:255"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	// Relations
	Settings  ExamSettings `json:"settings" gorm:"foreignKey:ExamID"`
	Questions []Question   `json:"questions" gorm:"foreignKey:ExamID"`
	Attempts  []Attempt    `json:"attempts" gorm:"foreignKey:ExamID"`
	Creator   User         `json:"creator" gorm:"foreignKey:CreatedBy"`

	// Computed fields (not stored)
	QuestionsCount int     `json:"questions_count" gorm:"-"`
	TotalMarks     float64 `json:"total_marks" gorm:"-"`
}

type ExamSettings struct {
	ExamID    uint      `json:"exam_id" gorm:"primaryKey;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	CreatedAt time.Time `json:"created_at" gorm:"not null"`
	UpdatedAt time.Time `json:"updated_at" gorm:"not null"`

	// Presentation settings
	ShuffleQuestions bool `json:"shuffle_questions" gorm:"not null;default:false;comment:Randomize question order per attempt"`
	ShuffleOptions   bool `json:"shuffle_options" gorm:"not null;default:false;comment:Randomize option order per attempt"`

	// Anti-cheat settings
	AntiCheatEnabled    bool `json:"anti_cheat_enabled" gorm:"not null;default:false;comment:Track integrity events during attempts"`
	MaxViolations       int  `json:"max_violations" gorm:"not null;default:0;check:max_violations >= 0;comment:Violation threshold for risk classification"`
	PreventTabSwitching bool `json:"prevent_tab_switching" gorm:"not null;default:false;comment:Report browser tab switches"`
	PreventRightClick   bool `json:"prevent_right_click" gorm:"not null;default:false;comment:Disable right-click context menu"`
	PreventCopyPaste    bool `json:"prevent_copy_paste" gorm:"not null;default:false;comment:Disable copy/paste functionality"`
	RequireFullScreen   bool `json:"require_full_screen" gorm:"not null;default:false;comment:Force fullscreen mode"`
}

func (Exam) TableName() string {
	return "exams"
}

func (ExamSettings) TableName() string {
	return "exam_settings"
}

// IsOpenForStart reports whether the schedule window (when configured) allows
// starting an attempt at the given time.
func (e *Exam) IsOpenForStart(now time.Time) bool {
	if e.ScheduledStart != nil && now.Before(*e.ScheduledStart) {
		return false
	}
	if e.ScheduledEnd != nil && now.After(*e.ScheduledEnd) {
		return false
	}
	return true
}
