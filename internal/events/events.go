package events

import (
	"time"

	"github.com/google/uuid"
)

// Topic carrying all exam domain events.
const TopicExamEvents = "exam.events"

// Event types published by this service.
const (
	EventAttemptStarted    = "attempt.started"
	EventAttemptSubmitted  = "attempt.submitted"
	EventViolationRecorded = "integrity.violation_recorded"
	EventExamPublished     = "exam.published"
)

// Event is the envelope for all messages published to the exam events topic.
type Event struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Source     string         `json:"source"`
	Version    string         `json:"version"`
	OccurredAt time.Time      `json:"occurred_at"`
	Payload    map[string]any `json:"payload"`
}

// NewEvent builds an envelope with the service identity filled in.
func NewEvent(eventType string, payload map[string]any) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		Source:     "exam-service",
		Version:    "1.0",
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	}
}
