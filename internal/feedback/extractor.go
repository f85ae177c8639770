// Package feedback turns structured conversation feedback into candidate mistakes.
package feedback

import (
	"encoding/json"
	"fmt"
	"strings"

	"mistake-service/internal/models"
)

const (
	contextRadius   = 50
	defaultSeverity = 3
	// grammar issues at or below this severity are not tracked
	minTrackedSeverity = 2
)

type GrammarIssue struct {
	Issue       string `json:"issue"`
	Correction  string `json:"correction"`
	Explanation string `json:"explanation"`
	Severity    *int   `json:"severity,omitempty"`
}

type VocabularyIssue struct {
	Original          string `json:"original"`
	BetterAlternative string `json:"better_alternative"`
	Reason            string `json:"reason"`
	ExampleUsage      string `json:"example_usage,omitempty"`
}

// Detailed is the detailed feedback document produced for one transcription
type Detailed struct {
	GrammarIssues    []GrammarIssue    `json:"grammar_issues"`
	VocabularyIssues []VocabularyIssue `json:"vocabulary_issues"`
}

// Parse accepts either the detailed document or an object wrapping it in "detailed_feedback"
func Parse(raw []byte) (*Detailed, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, fmt.Errorf("%w: feedback is not a JSON object: %w", models.ErrValidation, err)
	}

	if inner, ok := probe["detailed_feedback"]; ok {
		raw = inner
	}

	var detailed Detailed
	if err := json.Unmarshal(raw, &detailed); err != nil {
		return nil, fmt.Errorf("%w: malformed detailed feedback: %w", models.ErrValidation, err)
	}
	return &detailed, nil
}

// Extract builds candidates from every significant grammar issue and every vocabulary issue
func Extract(transcription string, detailed *Detailed, situation *models.SituationContext) []models.CandidateMistake {
	if detailed == nil {
		return nil
	}

	candidates := make([]models.CandidateMistake, 0, len(detailed.GrammarIssues)+len(detailed.VocabularyIssues))

	for _, issue := range detailed.GrammarIssues {
		severity := defaultSeverity
		if issue.Severity != nil {
			severity = *issue.Severity
		}
		if severity <= minTrackedSeverity {
			continue
		}
		candidates = append(candidates, models.CandidateMistake{
			Type:             models.MistakeTypeGrammar,
			OriginalText:     issue.Issue,
			Correction:       issue.Correction,
			Explanation:      issue.Explanation,
			Context:          HighlightContext(transcription, issue.Issue),
			SituationContext: situation,
			Severity:         severity,
		})
	}

	for _, issue := range detailed.VocabularyIssues {
		candidates = append(candidates, models.CandidateMistake{
			Type:             models.MistakeTypeVocabulary,
			OriginalText:     issue.Original,
			Correction:       issue.BetterAlternative,
			Explanation:      issue.Reason,
			Context:          HighlightContext(transcription, issue.Original),
			SituationContext: situation,
			ExampleUsage:     issue.ExampleUsage,
		})
	}

	return candidates
}

// HighlightContext returns up to 50 characters either side of the first occurrence of
// text, with each occurrence inside that window wrapped in brackets. When text is empty
// or absent the whole transcription is returned.
func HighlightContext(transcription, text string) string {
	if text == "" {
		return transcription
	}
	pos := strings.Index(transcription, text)
	if pos < 0 {
		return transcription
	}

	runes := []rune(transcription)
	start := len([]rune(transcription[:pos]))
	end := start + len([]rune(text))

	from := max(0, start-contextRadius)
	to := min(len(runes), end+contextRadius)

	window := string(runes[from:to])
	return strings.ReplaceAll(window, text, "["+text+"]")
}
