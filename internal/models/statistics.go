package models

// MistakeStatistics is computed on demand and never stored
type MistakeStatistics struct {
	TotalCount        int64                 `json:"total_count"`
	MasteredCount     int64                 `json:"mastered_count"`
	LearningCount     int64                 `json:"learning_count"`
	NewCount          int64                 `json:"new_count"`
	TypeDistribution  map[MistakeType]int64 `json:"type_distribution"`
	DueForPractice    int64                 `json:"due_for_practice"`
	MasteryPercentage float64               `json:"mastery_percentage"`
}

// MasteryPercentage returns mastered/total*100, or 0 for an empty collection
func MasteryPercentage(mastered, total int64) float64 {
	if total == 0 {
		return 0
	}
	return float64(mastered) / float64(total) * 100
}
