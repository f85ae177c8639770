package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"mistake-service/internal/models"
)

type updateResult[T any] struct {
	doc *T
	err error
}

// scriptedDocuments replays FindOneAndUpdate results in order and records the filters it saw
type scriptedDocuments[T any] struct {
	updates     []updateResult[T]
	filters     []any
	exists      bool
	existsErr   error
	existsCalls int
	findOne     *T
	findOneErr  error
}

func (s *scriptedDocuments[T]) FindOneAndUpdate(_ context.Context, filter, _ any, _ bool) (*T, error) {
	s.filters = append(s.filters, filter)
	if len(s.updates) == 0 {
		return nil, errors.New("unexpected FindOneAndUpdate")
	}
	next := s.updates[0]
	s.updates = s.updates[1:]
	return next.doc, next.err
}

func (s *scriptedDocuments[T]) Exists(context.Context, any) (bool, error) {
	s.existsCalls++
	return s.exists, s.existsErr
}

func (s *scriptedDocuments[T]) FindOne(context.Context, any, ...options.Lister[options.FindOneOptions]) (*T, error) {
	return s.findOne, s.findOneErr
}

func (s *scriptedDocuments[T]) InsertOne(context.Context, *T) (bson.ObjectID, error) {
	return bson.NewObjectID(), nil
}

func (s *scriptedDocuments[T]) FindByID(context.Context, bson.ObjectID) (*T, error) {
	return nil, models.ErrNotFound
}

func (s *scriptedDocuments[T]) Find(context.Context, any, ...options.Lister[options.FindOptions]) ([]T, error) {
	return []T{}, nil
}

func (s *scriptedDocuments[T]) Count(context.Context, any) (int64, error) {
	return 0, nil
}

func (s *scriptedDocuments[T]) CreateIndexes(context.Context, []mongo.IndexModel) error {
	return nil
}

var duplicate = fmt.Errorf("%w: find one and update mistakes: E11000", errDuplicateKey)

func testSignature() models.Signature {
	return models.Signature{UserID: "user-1", Type: models.MistakeTypeGrammar, OriginalText: "I goes", Correction: "I go", Key: "k"}
}

func TestUpsertBySignature(t *testing.T) {
	id := bson.NewObjectID()
	now := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		updates     []updateResult[models.Mistake]
		wantCreated bool
		wantErr     error
		wantCalls   int
	}{
		{
			name:        "first occurrence",
			updates:     []updateResult[models.Mistake]{{doc: &models.Mistake{ID: id, Frequency: 1}}},
			wantCreated: true,
			wantCalls:   1,
		},
		{
			name:      "repeat occurrence",
			updates:   []updateResult[models.Mistake]{{doc: &models.Mistake{ID: id, Frequency: 3}}},
			wantCalls: 1,
		},
		{
			name: "lost insert race becomes update",
			updates: []updateResult[models.Mistake]{
				{err: duplicate},
				{doc: &models.Mistake{ID: id, Frequency: 2}},
			},
			wantCalls: 2,
		},
		{
			name:      "duplicate twice",
			updates:   []updateResult[models.Mistake]{{err: duplicate}, {err: duplicate}},
			wantErr:   models.ErrStoreUnavailable,
			wantCalls: 2,
		},
		{
			name:      "store failure is not retried",
			updates:   []updateResult[models.Mistake]{{err: fmt.Errorf("%w: timeout", models.ErrStoreUnavailable)}},
			wantErr:   models.ErrStoreUnavailable,
			wantCalls: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			docs := &scriptedDocuments[models.Mistake]{updates: tt.updates}
			repo := &MistakeRepository{mistakes: docs}

			gotID, created, err := repo.UpsertBySignature(context.Background(), testSignature(), models.Occurrence{Explanation: "agreement"}, now)
			assert.Len(t, docs.filters, tt.wantCalls)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.NotErrorIs(t, err, models.ErrNotFound)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, id, gotID)
			assert.Equal(t, tt.wantCreated, created)
			// the retry must target the same signature
			for _, f := range docs.filters {
				assert.Equal(t, docs.filters[0], f)
			}
		})
	}
}

func TestMistakeUpdateConditionalOnPracticeCount(t *testing.T) {
	id := bson.NewObjectID()
	notFound := fmt.Errorf("%w: mistakes", models.ErrNotFound)

	tests := []struct {
		name            string
		result          updateResult[models.Mistake]
		exists          bool
		existsErr       error
		wantErr         error
		wantExistsCalls int
	}{
		{name: "applied", result: updateResult[models.Mistake]{doc: &models.Mistake{ID: id, PracticeCount: 3}}},
		{name: "practice count moved", result: updateResult[models.Mistake]{err: notFound}, exists: true, wantErr: models.ErrConflict, wantExistsCalls: 1},
		{name: "mistake gone", result: updateResult[models.Mistake]{err: notFound}, wantErr: models.ErrNotFound, wantExistsCalls: 1},
		{
			name:            "existence check fails",
			result:          updateResult[models.Mistake]{err: notFound},
			existsErr:       fmt.Errorf("%w: count", models.ErrStoreUnavailable),
			wantErr:         models.ErrStoreUnavailable,
			wantExistsCalls: 1,
		},
		{name: "store failure", result: updateResult[models.Mistake]{err: fmt.Errorf("%w: timeout", models.ErrStoreUnavailable)}, wantErr: models.ErrStoreUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			docs := &scriptedDocuments[models.Mistake]{
				updates:   []updateResult[models.Mistake]{tt.result},
				exists:    tt.exists,
				existsErr: tt.existsErr,
			}
			repo := &MistakeRepository{mistakes: docs}

			got, err := repo.Update(context.Background(), id, 2, models.PracticeUpdate{UpdatedAt: time.Now()})
			assert.Equal(t, tt.wantExistsCalls, docs.existsCalls)
			require.Len(t, docs.filters, 1)
			assert.Equal(t, bson.M{"_id": id, "practice_count": 2}, docs.filters[0])

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 3, got.PracticeCount)
		})
	}
}

func TestSessionComplete(t *testing.T) {
	id := bson.NewObjectID()
	at := time.Date(2024, 6, 1, 10, 30, 0, 0, time.UTC)
	notFound := fmt.Errorf("%w: practice_sessions", models.ErrNotFound)

	tests := []struct {
		name       string
		result     updateResult[models.PracticeSession]
		findOne    *models.PracticeSession
		findOneErr error
		wantErr    error
	}{
		{name: "completed now", result: updateResult[models.PracticeSession]{doc: &models.PracticeSession{ID: id, CompletedAt: &at}}},
		{name: "already completed", result: updateResult[models.PracticeSession]{err: notFound}, findOne: &models.PracticeSession{ID: id, CompletedAt: &at}, wantErr: models.ErrSessionCompleted},
		{name: "missing or not owned", result: updateResult[models.PracticeSession]{err: notFound}, findOneErr: notFound, wantErr: models.ErrNotFound},
		{name: "lost race", result: updateResult[models.PracticeSession]{err: notFound}, findOne: &models.PracticeSession{ID: id}, wantErr: models.ErrConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			docs := &scriptedDocuments[models.PracticeSession]{
				updates:    []updateResult[models.PracticeSession]{tt.result},
				findOne:    tt.findOne,
				findOneErr: tt.findOneErr,
			}
			repo := &SessionRepository{sessions: docs}

			got, err := repo.Complete(context.Background(), id, "user-1", at)
			require.Len(t, docs.filters, 1)
			assert.Equal(t, bson.M{"_id": id, "user_id": "user-1", "completed_at": nil}, docs.filters[0])

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.True(t, got.IsCompleted())
		})
	}
}

func TestCollectionWrapTranslatesDriverErrors(t *testing.T) {
	// the client connects lazily, so no server is needed to name a collection
	client, err := mongo.Connect(options.Client().ApplyURI("mongodb://127.0.0.1:1"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Disconnect(context.Background()) })

	coll := NewCollection[models.Mistake](client.Database("test"), MistakeCollection)

	assert.ErrorIs(t, coll.wrap("find one", mongo.ErrNoDocuments), models.ErrNotFound)

	dup := mongo.WriteException{WriteErrors: []mongo.WriteError{{Code: 11000, Message: "E11000 duplicate key"}}}
	wrapped := coll.wrap("find one and update", dup)
	assert.ErrorIs(t, wrapped, errDuplicateKey)
	assert.NotErrorIs(t, wrapped, models.ErrStoreUnavailable)

	other := coll.wrap("count", errors.New("connection reset"))
	assert.ErrorIs(t, other, models.ErrStoreUnavailable)
	assert.Contains(t, other.Error(), MistakeCollection)
}
