// Package schedule holds the spaced-repetition rules for tracked mistakes.
package schedule

import (
	"time"

	"mistake-service/internal/models"
)

const (
	// MasteryThreshold is the streak of correct answers that masters a mistake
	MasteryThreshold = 5

	FirstPracticeDelay = 2 * time.Hour
	RetryDelay         = 4 * time.Hour
	MaxIntervalDays    = 30

	confidencePerCorrect = 20
	maxConfidence        = 100
)

// NextPracticeDate returns when a mistake should be drilled again.
// practiceCount is the count after the current attempt has been applied.
func NextPracticeDate(now time.Time, practiceCount int, success bool) time.Time {
	if practiceCount <= 0 {
		return now.Add(FirstPracticeDelay)
	}
	if !success {
		return now.Add(RetryDelay)
	}
	return now.AddDate(0, 0, intervalDays(practiceCount))
}

func intervalDays(practiceCount int) int {
	// 2^5 already exceeds the cap
	if practiceCount >= 5 {
		return MaxIntervalDays
	}
	return min(1<<practiceCount, MaxIntervalDays)
}

// Confidence maps a correct-answer streak onto 0..100
func Confidence(consecutiveCorrect int) int {
	if consecutiveCorrect <= 0 {
		return 0
	}
	return min(consecutiveCorrect*confidencePerCorrect, maxConfidence)
}

// StatusFor derives the status after at least one practice attempt
func StatusFor(consecutiveCorrect int) models.MistakeStatus {
	if consecutiveCorrect >= MasteryThreshold {
		return models.MistakeStatusMastered
	}
	return models.MistakeStatusLearning
}

// InitialState is the scheduling state of a newly recorded mistake
func InitialState(now time.Time) models.PracticeState {
	return models.PracticeState{
		Status:           models.MistakeStatusNew,
		InDrillQueue:     true,
		NextPracticeDate: now,
	}
}

// ApplyPractice returns the state after one practice attempt
func ApplyPractice(state models.PracticeState, success bool, now time.Time) models.PracticeState {
	next := state
	next.PracticeCount = state.PracticeCount + 1

	if success {
		next.ConsecutiveCorrect = state.ConsecutiveCorrect + 1
	} else {
		next.ConsecutiveCorrect = 0
	}

	next.NextPracticeDate = NextPracticeDate(now, next.PracticeCount, success)
	practiced := now
	next.LastPracticed = &practiced
	next.Status = StatusFor(next.ConsecutiveCorrect)
	next.ConfidenceLevel = Confidence(next.ConsecutiveCorrect)
	next.InDrillQueue = next.Status != models.MistakeStatusMastered

	return next
}
