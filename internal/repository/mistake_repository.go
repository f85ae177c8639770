package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"mistake-service/internal/models"
)

const MistakeCollection = "mistakes"

type MistakeRepository struct {
	mistakes documents[models.Mistake]
}

func NewMistakeRepository(database *mongo.Database) *MistakeRepository {
	return &MistakeRepository{
		mistakes: NewCollection[models.Mistake](database, MistakeCollection),
	}
}

// InitializeIndexes creates the signature uniqueness index and the query indexes
func (r *MistakeRepository) InitializeIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "user_id", Value: 1},
				{Key: "signature", Value: 1},
			},
			Options: options.Index().SetUnique(true).SetName("user_signature_unique"),
		},
		{
			Keys: bson.D{
				{Key: "user_id", Value: 1},
				{Key: "in_drill_queue", Value: 1},
				{Key: "next_practice_date", Value: 1},
			},
			Options: options.Index().SetName("user_due"),
		},
		{
			Keys: bson.D{
				{Key: "user_id", Value: 1},
				{Key: "status", Value: 1},
			},
		},
		{
			Keys: bson.D{
				{Key: "user_id", Value: 1},
				{Key: "created_at", Value: -1},
			},
		},
	}
	return r.mistakes.CreateIndexes(ctx, indexes)
}

// UpsertBySignature records one occurrence. Two concurrent first inserts of the same
// signature race on the unique index; the loser is retried once and becomes an update.
func (r *MistakeRepository) UpsertBySignature(ctx context.Context, sig models.Signature, occ models.Occurrence, now time.Time) (bson.ObjectID, bool, error) {
	filter := signatureFilter(sig)
	update := occurrenceUpdate(sig, occ, now)

	doc, err := r.mistakes.FindOneAndUpdate(ctx, filter, update, true)
	if errors.Is(err, errDuplicateKey) {
		doc, err = r.mistakes.FindOneAndUpdate(ctx, filter, update, true)
	}
	if err != nil {
		if errors.Is(err, errDuplicateKey) {
			return bson.NilObjectID, false, fmt.Errorf("%w: upsert mistake: %w", models.ErrStoreUnavailable, err)
		}
		return bson.NilObjectID, false, err
	}

	return doc.ID, doc.Frequency == 1, nil
}

func (r *MistakeRepository) FindByID(ctx context.Context, id bson.ObjectID) (*models.Mistake, error) {
	return r.mistakes.FindByID(ctx, id)
}

// FindDue returns drill-queue mistakes due at now, most overdue first
func (r *MistakeRepository) FindDue(ctx context.Context, userID string, now time.Time, limit int) ([]models.Mistake, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "next_practice_date", Value: 1}, {Key: "_id", Value: 1}}).
		SetLimit(int64(limit))

	return r.mistakes.Find(ctx, dueFilter(userID, now), opts)
}

func (r *MistakeRepository) Count(ctx context.Context, filter models.MistakeFilter) (int64, error) {
	return r.mistakes.Count(ctx, mistakeFilter(filter))
}

// Update writes a practice result only if practice_count still equals expectedPracticeCount.
// A lost race is reported as ErrConflict, a missing document as ErrNotFound.
func (r *MistakeRepository) Update(ctx context.Context, id bson.ObjectID, expectedPracticeCount int, update models.PracticeUpdate) (*models.Mistake, error) {
	filter := bson.M{
		"_id":            id,
		"practice_count": expectedPracticeCount,
	}

	doc, err := r.mistakes.FindOneAndUpdate(ctx, filter, practiceUpdate(update), false)
	if err == nil {
		return doc, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}

	exists, existsErr := r.mistakes.Exists(ctx, bson.M{"_id": id})
	if existsErr != nil {
		return nil, existsErr
	}
	if !exists {
		return nil, fmt.Errorf("%w: mistake %s", models.ErrNotFound, id.Hex())
	}
	return nil, fmt.Errorf("%w: mistake %s", models.ErrConflict, id.Hex())
}

// List returns matching mistakes, newest first
func (r *MistakeRepository) List(ctx context.Context, filter models.MistakeFilter, limit int) ([]models.Mistake, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit))

	return r.mistakes.Find(ctx, mistakeFilter(filter), opts)
}
