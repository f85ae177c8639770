package repository

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"mistake-service/internal/models"
)

func mistakeFilter(f models.MistakeFilter) bson.M {
	filter := bson.M{}
	if f.UserID != "" {
		filter["user_id"] = f.UserID
	}

	switch {
	case f.Status != "" && f.StatusNot != "":
		filter["status"] = bson.M{"$eq": f.Status, "$ne": f.StatusNot}
	case f.Status != "":
		filter["status"] = f.Status
	case f.StatusNot != "":
		filter["status"] = bson.M{"$ne": f.StatusNot}
	}

	if f.Type != "" {
		filter["type"] = f.Type
	}
	if f.NextPracticeDateLTE != nil {
		filter["next_practice_date"] = bson.M{"$lte": *f.NextPracticeDateLTE}
	}
	return filter
}

func dueFilter(userID string, now time.Time) bson.M {
	return bson.M{
		"user_id":            userID,
		"in_drill_queue":     true,
		"next_practice_date": bson.M{"$lte": now},
	}
}

func signatureFilter(sig models.Signature) bson.M {
	return bson.M{
		"user_id":   sig.UserID,
		"signature": sig.Key,
	}
}

func occurrenceUpdate(sig models.Signature, occ models.Occurrence, now time.Time) bson.M {
	set := bson.M{
		"explanation":       occ.Explanation,
		"context":           occ.Context,
		"situation_context": occ.SituationContext,
		"last_occurred":     now,
		"updated_at":        now,
	}
	if occ.ExampleUsage != "" {
		set["example_usage"] = occ.ExampleUsage
	}
	if occ.Severity > 0 {
		set["severity"] = occ.Severity
	}

	return bson.M{
		"$set": set,
		"$inc": bson.M{"frequency": 1},
		"$setOnInsert": bson.M{
			"type":                sig.Type,
			"original_text":       sig.OriginalText,
			"correction":          sig.Correction,
			"status":              models.MistakeStatusNew,
			"confidence_level":    0,
			"in_drill_queue":      true,
			"next_practice_date":  now,
			"practice_count":      0,
			"consecutive_correct": 0,
			"last_practiced":      nil,
			"created_at":          now,
		},
	}
}

func practiceUpdate(u models.PracticeUpdate) bson.M {
	set := bson.M{
		"status":              u.State.Status,
		"confidence_level":    u.State.ConfidenceLevel,
		"in_drill_queue":      u.State.InDrillQueue,
		"next_practice_date":  u.State.NextPracticeDate,
		"practice_count":      u.State.PracticeCount,
		"consecutive_correct": u.State.ConsecutiveCorrect,
		"last_practiced":      u.State.LastPracticed,
		"updated_at":          u.UpdatedAt,
	}
	if u.LastAnswer != "" {
		set["last_answer"] = u.LastAnswer
	}
	return bson.M{"$set": set}
}
