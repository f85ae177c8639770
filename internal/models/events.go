package models

import (
	"encoding/json"
	"time"
)

const (
	// Published
	EventTypeMistakesRecorded = "mistakes.recorded"
	EventTypeMistakePracticed = "mistake.practiced"
	EventTypeMistakeMastered  = "mistake.mastered"
	EventTypeSessionCompleted = "practice_session.completed"

	// Consumed
	EventTypeFeedbackCreated = "feedback.created"
)

// MistakeEvent is published on the mistake events exchange
type MistakeEvent struct {
	EventID            string        `json:"event_id"`
	EventType          string        `json:"event_type"`
	UserID             string        `json:"user_id"`
	MistakeIDs         []string      `json:"mistake_ids"`
	Created            int           `json:"created,omitempty"`
	Updated            int           `json:"updated,omitempty"`
	Success            *bool         `json:"success,omitempty"`
	Status             MistakeStatus `json:"status,omitempty"`
	PracticeCount      int           `json:"practice_count,omitempty"`
	ConsecutiveCorrect int           `json:"consecutive_correct,omitempty"`
	NextPracticeDate   *time.Time    `json:"next_practice_date,omitempty"`
	Timestamp          int64         `json:"timestamp"`
}

// SessionEvent is published when a practice session changes state
type SessionEvent struct {
	EventID     string     `json:"event_id"`
	EventType   string     `json:"event_type"`
	SessionID   string     `json:"session_id"`
	UserID      string     `json:"user_id"`
	MistakeIDs  []string   `json:"mistake_ids"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Timestamp   int64      `json:"timestamp"`
}

// FeedbackEvent is consumed from the feedback work queue
type FeedbackEvent struct {
	EventID          string            `json:"event_id"`
	UserID           string            `json:"user_id" validate:"required"`
	Transcription    string            `json:"transcription"`
	DetailedFeedback json.RawMessage   `json:"detailed_feedback" validate:"required"`
	SituationContext *SituationContext `json:"situation_context,omitempty"`
	Timestamp        int64             `json:"timestamp,omitempty"`
}
