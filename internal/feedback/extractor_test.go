package feedback

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mistake-service/internal/models"
)

func intPtr(v int) *int { return &v }

func TestHighlightContext(t *testing.T) {
	long := strings.Repeat("a", 60) + " I go yesterday " + strings.Repeat("b", 60)

	tests := []struct {
		name          string
		transcription string
		text          string
		want          string
	}{
		{"short transcript", "Yesterday I go to school.", "I go", "Yesterday [I go] to school."},
		{"not found", "Hello there.", "goed", "Hello there."},
		{"empty text", "Hello there.", "", "Hello there."},
		{
			"window trimmed",
			long,
			"I go yesterday",
			strings.Repeat("a", 49) + " [I go yesterday] " + strings.Repeat("b", 49),
		},
		{"every occurrence in window", "he go and she go", "go", "he [go] and she [go]"},
		{"multibyte", "Ich gehe gestern über die Straße", "über", "Ich gehe gestern [über] die Straße"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HighlightContext(tt.transcription, tt.text))
		})
	}
}

func TestParse(t *testing.T) {
	direct := `{"grammar_issues":[{"issue":"I go","correction":"I went","explanation":"past"}]}`
	wrapped := `{"score":7,"detailed_feedback":` + direct + `}`

	for name, raw := range map[string]string{"direct": direct, "wrapped": wrapped} {
		t.Run(name, func(t *testing.T) {
			detailed, err := Parse([]byte(raw))
			require.NoError(t, err)
			require.Len(t, detailed.GrammarIssues, 1)
			assert.Equal(t, "I go", detailed.GrammarIssues[0].Issue)
		})
	}

	_, err := Parse([]byte(`["not", "an", "object"]`))
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = Parse([]byte(`{"detailed_feedback": "text"}`))
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestExtract(t *testing.T) {
	transcription := "Yesterday I go to the shop and buyed a very big food."
	situation := &models.SituationContext{UserRole: "customer", AIRole: "cashier", Situation: "grocery"}

	detailed := &Detailed{
		GrammarIssues: []GrammarIssue{
			{Issue: "I go", Correction: "I went", Explanation: "past tense", Severity: intPtr(4)},
			{Issue: "buyed", Correction: "bought", Explanation: "irregular verb"},
			{Issue: "the shop", Correction: "a shop", Explanation: "article", Severity: intPtr(2)},
		},
		VocabularyIssues: []VocabularyIssue{
			{Original: "big food", BetterAlternative: "large meal", Reason: "collocation", ExampleUsage: "We had a large meal."},
		},
	}

	candidates := Extract(transcription, detailed, situation)
	require.Len(t, candidates, 3)

	assert.Equal(t, models.MistakeTypeGrammar, candidates[0].Type)
	assert.Equal(t, "I go", candidates[0].OriginalText)
	assert.Equal(t, 4, candidates[0].Severity)
	assert.Contains(t, candidates[0].Context, "[I go]")
	assert.Same(t, situation, candidates[0].SituationContext)

	assert.Equal(t, "buyed", candidates[1].OriginalText)
	assert.Equal(t, defaultSeverity, candidates[1].Severity)

	vocab := candidates[2]
	assert.Equal(t, models.MistakeTypeVocabulary, vocab.Type)
	assert.Equal(t, "big food", vocab.OriginalText)
	assert.Equal(t, "large meal", vocab.Correction)
	assert.Equal(t, "collocation", vocab.Explanation)
	assert.Equal(t, "We had a large meal.", vocab.ExampleUsage)
	assert.Contains(t, vocab.Context, "[big food]")
}

func TestExtractNil(t *testing.T) {
	assert.Empty(t, Extract("anything", nil, nil))
	assert.Empty(t, Extract("anything", &Detailed{}, nil))
}
