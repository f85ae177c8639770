package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"mistake-service/internal/models"
)

const SessionCollection = "practice_sessions"

type SessionRepository struct {
	sessions documents[models.PracticeSession]
}

func NewSessionRepository(database *mongo.Database) *SessionRepository {
	return &SessionRepository{
		sessions: NewCollection[models.PracticeSession](database, SessionCollection),
	}
}

func (r *SessionRepository) InitializeIndexes(ctx context.Context) error {
	return r.sessions.CreateIndexes(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "user_id", Value: 1},
				{Key: "started_at", Value: -1},
			},
		},
	})
}

func (r *SessionRepository) Create(ctx context.Context, session *models.PracticeSession) (*models.PracticeSession, error) {
	if session.ID.IsZero() {
		session.ID = bson.NewObjectID()
	}
	if _, err := r.sessions.InsertOne(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// Complete sets completed_at exactly once for a session owned by userID
func (r *SessionRepository) Complete(ctx context.Context, id bson.ObjectID, userID string, at time.Time) (*models.PracticeSession, error) {
	filter := bson.M{
		"_id":          id,
		"user_id":      userID,
		"completed_at": nil,
	}
	update := bson.M{"$set": bson.M{"completed_at": at}}

	doc, err := r.sessions.FindOneAndUpdate(ctx, filter, update, false)
	if err == nil {
		return doc, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}

	existing, err := r.sessions.FindOne(ctx, bson.M{"_id": id, "user_id": userID})
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, fmt.Errorf("%w: practice session %s", models.ErrNotFound, id.Hex())
		}
		return nil, err
	}
	if existing.IsCompleted() {
		return nil, fmt.Errorf("%w: %s", models.ErrSessionCompleted, id.Hex())
	}
	// completed_at was cleared between the two reads; treat as a lost race
	return nil, fmt.Errorf("%w: practice session %s", models.ErrConflict, id.Hex())
}
