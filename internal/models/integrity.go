package models

import (
	"time"

	"gorm.io/datatypes"
)

type IntegrityEventType string

const (
	EventTabSwitch      IntegrityEventType = "tab_switch"
	EventWindowBlur     IntegrityEventType = "window_blur"
	EventCopyAttempt    IntegrityEventType = "copy_attempt"
	EventRightClick     IntegrityEventType = "right_click"
	EventDevToolsOpen   IntegrityEventType = "devtools_open"
	EventFullscreenExit IntegrityEventType = "fullscreen_exit"
	EventMultipleFaces  IntegrityEventType = "multiple_faces_detected"
	EventNoFace         IntegrityEventType = "no_face_detected"
)

var integrityEventTypes = map[IntegrityEventType]struct{}{
	EventTabSwitch:      {},
	EventWindowBlur:     {},
	EventCopyAttempt:    {},
	EventRightClick:     {},
	EventDevToolsOpen:   {},
	EventFullscreenExit: {},
	EventMultipleFaces:  {},
	EventNoFace:         {},
}

func (t IntegrityEventType) Valid() bool {
	_, ok := integrityEventTypes[t]
	return ok
}

// IntegrityEvent is one client-reported suspicious event during an open
// attempt. Rows are append-only; they are never mutated or deleted.
type IntegrityEvent struct {
	ID        uint               `json:"id" gorm:"primaryKey"`
	AttemptID uint               `json:"attempt_id" gorm:"not null;index"`
	EventType IntegrityEventType `json:"event_type" gorm:"not null;size:50;index"`

	// OccurredAt carries microsecond precision so reporting can reconstruct
	// submission order.
	OccurredAt time.Time      `json:"occurred_at" gorm:"not null;index"`
	Metadata   datatypes.JSON `json:"metadata" gorm:"type:jsonb"`

	CreatedAt time.Time `json:"created_at"`

	// Relations
	Attempt Attempt `json:"-" gorm:"foreignKey:AttemptID"`
}

func (IntegrityEvent) TableName() string {
	return "integrity_events"
}

// RiskLevel classifies an attempt's violation count against the exam's
// configured threshold.
type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

// RiskLevelFor derives the risk level from a violation count and the exam's
// maxViolations threshold. LOW at zero, MEDIUM up to half the threshold,
// HIGH up to the threshold, CRITICAL beyond it. The level is non-decreasing
// in the violation count.
func RiskLevelFor(violationCount, maxViolations int) RiskLevel {
	switch {
	case violationCount == 0:
		return RiskLow
	case violationCount <= maxViolations/2:
		return RiskMedium
	case violationCount <= maxViolations:
		return RiskHigh
	default:
		return RiskCritical
	}
}
