package service

import (
	"fmt"
	"regexp"
	"strings"

	"mistake-service/internal/models"
)

const (
	SignatureModeExact   = "exact"
	SignatureModeRelaxed = "relaxed"

	signatureSeparator = "\x1f"
)

var whitespaceRun = regexp.MustCompile(`\s+`)

// signatureKey derives the dedup key for (type, original, correction).
// Relaxed mode folds case and collapses inner whitespace.
func signatureKey(mode string, t models.MistakeType, original, correction string) string {
	original = strings.TrimSpace(original)
	correction = strings.TrimSpace(correction)
	if mode == SignatureModeRelaxed {
		original = strings.ToLower(whitespaceRun.ReplaceAllString(original, " "))
		correction = strings.ToLower(whitespaceRun.ReplaceAllString(correction, " "))
	}
	return string(t) + signatureSeparator + original + signatureSeparator + correction
}

func practicePrompt(m *models.Mistake) string {
	sentence := m.Context
	if strings.TrimSpace(sentence) == "" {
		sentence = m.OriginalText
	}

	switch m.Type {
	case models.MistakeTypeGrammar:
		return fmt.Sprintf("Correct the grammar in this sentence: \"%s\"", sentence)
	case models.MistakeTypeVocabulary:
		return fmt.Sprintf("Improve this sentence by replacing '%s': \"%s\"", m.OriginalText, sentence)
	default:
		return fmt.Sprintf("Practice this mistake: %s", m.OriginalText)
	}
}

func practiceFeedback(m *models.Mistake, success bool) string {
	if success {
		return fmt.Sprintf("Great job! You've correctly used '%s' instead of '%s'.", m.Correction, m.OriginalText)
	}
	return strings.TrimSpace(fmt.Sprintf("Keep practicing! Remember to use '%s' instead of '%s'. %s",
		m.Correction, m.OriginalText, m.Explanation))
}
