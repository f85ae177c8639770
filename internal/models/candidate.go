package models

// CandidateMistake is a raw mistake extracted from upstream feedback
type CandidateMistake struct {
	Type             MistakeType       `json:"type" validate:"required,oneof=GRAMMAR VOCABULARY"`
	OriginalText     string            `json:"original_text" validate:"required"`
	Correction       string            `json:"correction" validate:"required"`
	Explanation      string            `json:"explanation" validate:"required"`
	Context          string            `json:"context,omitempty"`
	SituationContext *SituationContext `json:"situation_context,omitempty"`
	ExampleUsage     string            `json:"example_usage,omitempty"`
	Severity         int               `json:"severity,omitempty" validate:"omitempty,min=1,max=5"`
}

// SkippedCandidate reports why a candidate was not stored
type SkippedCandidate struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

// RecordResult summarises one ingestion batch
type RecordResult struct {
	Processed int                `json:"processed"`
	Created   int                `json:"created"`
	Updated   int                `json:"updated"`
	Skipped   []SkippedCandidate `json:"skipped"`
}
