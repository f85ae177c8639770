package service

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"mistake-service/internal/models"
)

// MistakeStore persists mistakes. Implementations translate their failures into
// models.ErrNotFound, models.ErrConflict and models.ErrStoreUnavailable.
type MistakeStore interface {
	UpsertBySignature(ctx context.Context, sig models.Signature, occ models.Occurrence, now time.Time) (bson.ObjectID, bool, error)
	FindByID(ctx context.Context, id bson.ObjectID) (*models.Mistake, error)
	FindDue(ctx context.Context, userID string, now time.Time, limit int) ([]models.Mistake, error)
	Count(ctx context.Context, filter models.MistakeFilter) (int64, error)
	Update(ctx context.Context, id bson.ObjectID, expectedPracticeCount int, update models.PracticeUpdate) (*models.Mistake, error)
	List(ctx context.Context, filter models.MistakeFilter, limit int) ([]models.Mistake, error)
}

type SessionStore interface {
	Create(ctx context.Context, session *models.PracticeSession) (*models.PracticeSession, error)
	Complete(ctx context.Context, id bson.ObjectID, userID string, at time.Time) (*models.PracticeSession, error)
}

type EventPublisher interface {
	PublishMistakeEvent(ctx context.Context, event *models.MistakeEvent) error
	PublishSessionEvent(ctx context.Context, event *models.SessionEvent) error
}
