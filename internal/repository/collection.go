package repository

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"mistake-service/internal/models"
)

// documents is the subset of Collection the repositories depend on
type documents[T any] interface {
	InsertOne(ctx context.Context, doc *T) (bson.ObjectID, error)
	FindOne(ctx context.Context, filter any, opts ...options.Lister[options.FindOneOptions]) (*T, error)
	FindByID(ctx context.Context, id bson.ObjectID) (*T, error)
	Find(ctx context.Context, filter any, opts ...options.Lister[options.FindOptions]) ([]T, error)
	Count(ctx context.Context, filter any) (int64, error)
	FindOneAndUpdate(ctx context.Context, filter, update any, upsert bool) (*T, error)
	Exists(ctx context.Context, filter any) (bool, error)
	CreateIndexes(ctx context.Context, indexes []mongo.IndexModel) error
}

// Collection is the data access shared by every document type the service stores
type Collection[T any] struct {
	coll *mongo.Collection
}

func NewCollection[T any](database *mongo.Database, name string) *Collection[T] {
	return &Collection[T]{coll: database.Collection(name)}
}

func (c *Collection[T]) InsertOne(ctx context.Context, doc *T) (bson.ObjectID, error) {
	res, err := c.coll.InsertOne(ctx, doc)
	if err != nil {
		return bson.NilObjectID, c.wrap("insert", err)
	}
	id, ok := res.InsertedID.(bson.ObjectID)
	if !ok {
		return bson.NilObjectID, fmt.Errorf("%w: unexpected inserted id type %T", models.ErrStoreUnavailable, res.InsertedID)
	}
	return id, nil
}

func (c *Collection[T]) FindOne(ctx context.Context, filter any, opts ...options.Lister[options.FindOneOptions]) (*T, error) {
	var doc T
	if err := c.coll.FindOne(ctx, filter, opts...).Decode(&doc); err != nil {
		return nil, c.wrap("find one", err)
	}
	return &doc, nil
}

func (c *Collection[T]) FindByID(ctx context.Context, id bson.ObjectID) (*T, error) {
	return c.FindOne(ctx, bson.M{"_id": id})
}

func (c *Collection[T]) Find(ctx context.Context, filter any, opts ...options.Lister[options.FindOptions]) ([]T, error) {
	cursor, err := c.coll.Find(ctx, filter, opts...)
	if err != nil {
		return nil, c.wrap("find", err)
	}
	defer cursor.Close(ctx)

	docs := []T{}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, c.wrap("decode", err)
	}
	return docs, nil
}

func (c *Collection[T]) Count(ctx context.Context, filter any) (int64, error) {
	n, err := c.coll.CountDocuments(ctx, filter)
	if err != nil {
		return 0, c.wrap("count", err)
	}
	return n, nil
}

// FindOneAndUpdate returns the document after the update is applied
func (c *Collection[T]) FindOneAndUpdate(ctx context.Context, filter, update any, upsert bool) (*T, error) {
	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetUpsert(upsert)

	var doc T
	if err := c.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc); err != nil {
		return nil, c.wrap("find one and update", err)
	}
	return &doc, nil
}

func (c *Collection[T]) Exists(ctx context.Context, filter any) (bool, error) {
	n, err := c.coll.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return false, c.wrap("exists", err)
	}
	return n > 0, nil
}

func (c *Collection[T]) CreateIndexes(ctx context.Context, indexes []mongo.IndexModel) error {
	if _, err := c.coll.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("%w: failed to create indexes on %s: %w", models.ErrStoreUnavailable, c.coll.Name(), err)
	}
	return nil
}

var errDuplicateKey = errors.New("duplicate key")

// wrap translates driver errors into the service's error kinds
func (c *Collection[T]) wrap(op string, err error) error {
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return fmt.Errorf("%w: %s", models.ErrNotFound, c.coll.Name())
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%w: %s %s: %w", errDuplicateKey, op, c.coll.Name(), err)
	default:
		return fmt.Errorf("%w: %s %s: %w", models.ErrStoreUnavailable, op, c.coll.Name(), err)
	}
}
