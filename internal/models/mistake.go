package models

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// MistakeType classifies a learner error
type MistakeType string

const (
	MistakeTypeGrammar    MistakeType = "GRAMMAR"
	MistakeTypeVocabulary MistakeType = "VOCABULARY"
)

// MistakeTypes lists every type in reporting order
var MistakeTypes = []MistakeType{MistakeTypeGrammar, MistakeTypeVocabulary}

func (t MistakeType) IsValid() bool {
	return t == MistakeTypeGrammar || t == MistakeTypeVocabulary
}

// MistakeStatus is the remediation state of a mistake
type MistakeStatus string

const (
	MistakeStatusNew      MistakeStatus = "NEW"
	MistakeStatusLearning MistakeStatus = "LEARNING"
	MistakeStatusMastered MistakeStatus = "MASTERED"
)

func (s MistakeStatus) IsValid() bool {
	switch s {
	case MistakeStatusNew, MistakeStatusLearning, MistakeStatusMastered:
		return true
	}
	return false
}

// SituationContext is the role-play metadata the mistake was made in
type SituationContext struct {
	UserRole  string `bson:"user_role,omitempty" json:"user_role,omitempty"`
	AIRole    string `bson:"ai_role,omitempty" json:"ai_role,omitempty"`
	Situation string `bson:"situation,omitempty" json:"situation,omitempty"`
}

// Mistake is one tracked learner error with its spaced-repetition state
type Mistake struct {
	ID               bson.ObjectID     `bson:"_id,omitempty" json:"id"`
	UserID           string            `bson:"user_id" json:"user_id"`
	Type             MistakeType       `bson:"type" json:"type"`
	OriginalText     string            `bson:"original_text" json:"original_text"`
	Correction       string            `bson:"correction" json:"correction"`
	Explanation      string            `bson:"explanation" json:"explanation"`
	Context          string            `bson:"context,omitempty" json:"context,omitempty"`
	SituationContext *SituationContext `bson:"situation_context,omitempty" json:"situation_context,omitempty"`
	ExampleUsage     string            `bson:"example_usage,omitempty" json:"example_usage,omitempty"`
	Severity         int               `bson:"severity,omitempty" json:"severity,omitempty"`
	Signature        string            `bson:"signature" json:"-"`

	// Scheduling state
	Status             MistakeStatus `bson:"status" json:"status"`
	ConfidenceLevel    int           `bson:"confidence_level" json:"confidence_level"`
	InDrillQueue       bool          `bson:"in_drill_queue" json:"in_drill_queue"`
	NextPracticeDate   time.Time     `bson:"next_practice_date" json:"next_practice_date"`
	PracticeCount      int           `bson:"practice_count" json:"practice_count"`
	ConsecutiveCorrect int           `bson:"consecutive_correct" json:"consecutive_correct"`
	LastPracticed      *time.Time    `bson:"last_practiced" json:"last_practiced"`
	LastAnswer         string        `bson:"last_answer,omitempty" json:"last_answer,omitempty"`
	Frequency          int           `bson:"frequency" json:"frequency"`

	CreatedAt    time.Time `bson:"created_at" json:"created_at"`
	LastOccurred time.Time `bson:"last_occurred" json:"last_occurred"`
	UpdatedAt    time.Time `bson:"updated_at" json:"updated_at"`
}

// PracticeState is the subset of a mistake touched by a practice attempt
type PracticeState struct {
	Status             MistakeStatus
	ConfidenceLevel    int
	InDrillQueue       bool
	NextPracticeDate   time.Time
	PracticeCount      int
	ConsecutiveCorrect int
	LastPracticed      *time.Time
}

func (m *Mistake) PracticeState() PracticeState {
	return PracticeState{
		Status:             m.Status,
		ConfidenceLevel:    m.ConfidenceLevel,
		InDrillQueue:       m.InDrillQueue,
		NextPracticeDate:   m.NextPracticeDate,
		PracticeCount:      m.PracticeCount,
		ConsecutiveCorrect: m.ConsecutiveCorrect,
		LastPracticed:      m.LastPracticed,
	}
}

// PracticeUpdate is written back after a practice attempt
type PracticeUpdate struct {
	State      PracticeState
	LastAnswer string
	UpdatedAt  time.Time
}

// Signature identifies a logical mistake for one user
type Signature struct {
	UserID       string
	Type         MistakeType
	OriginalText string
	Correction   string
	Key          string
}

// Occurrence carries the fields refreshed every time a signature recurs
type Occurrence struct {
	Explanation      string
	Context          string
	SituationContext *SituationContext
	ExampleUsage     string
	Severity         int
}

// MistakeFilter selects mistakes for counting and listing. Zero fields are ignored.
type MistakeFilter struct {
	UserID              string
	Status              MistakeStatus
	StatusNot           MistakeStatus
	Type                MistakeType
	NextPracticeDateLTE *time.Time
}

// PracticeItem is a due mistake with its drill prompt
type PracticeItem struct {
	Mistake
	PracticePrompt string `json:"practice_prompt"`
}

// PracticeOutcome is returned after recording a practice attempt
type PracticeOutcome struct {
	Mistake  *Mistake `json:"mistake"`
	Feedback string   `json:"feedback"`
	Mastered bool     `json:"mastered"`
}
