package models

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// PracticeSession groups the mistakes presented in one drill sitting
type PracticeSession struct {
	ID          bson.ObjectID   `bson:"_id,omitempty" json:"id"`
	UserID      string          `bson:"user_id" json:"user_id"`
	MistakeIDs  []bson.ObjectID `bson:"mistake_ids" json:"mistake_ids"`
	StartedAt   time.Time       `bson:"started_at" json:"started_at"`
	CompletedAt *time.Time      `bson:"completed_at" json:"completed_at"`
	CreatedAt   time.Time       `bson:"created_at" json:"created_at"`
}

func (s *PracticeSession) IsCompleted() bool {
	return s.CompletedAt != nil
}

// StartedSession is a freshly created session with its drill items
type StartedSession struct {
	Session *PracticeSession `json:"session"`
	Items   []PracticeItem   `json:"items"`
}
