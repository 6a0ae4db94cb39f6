package store

import (
	"context"

	"Mnemo/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoGoalStore is a GoalStore backed by a MongoDB collection with a unique
// (user_id, key) index. Last-write-wins is enforced by a conditional update
// on updated_at: a write carrying an older timestamp matches no document and
// is silently dropped, regardless of arrival order.
type MongoGoalStore struct {
	collection *mongo.Collection
}

// NewMongoGoalStore creates a MongoGoalStore.
func NewMongoGoalStore(db *mongo.Database, collectionName string) *MongoGoalStore {
	return &MongoGoalStore{collection: db.Collection(collectionName)}
}

// EnsureIndexes creates the unique compound index the LWW update relies on.
// Called once at startup.
func (s *MongoGoalStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "key", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}

// Set upserts the goal unless a newer value for the same (user_id, key)
// already exists. A duplicate-key error on the upsert path means a
// concurrent writer got there first with a newer timestamp; that is the
// stale-write case and is not an error.
func (s *MongoGoalStore) Set(ctx context.Context, goal *models.Goal) error {
	filter := bson.M{
		"user_id":    goal.UserID,
		"key":        goal.Key,
		"updated_at": bson.M{"$lt": goal.UpdatedAt},
	}
	update := bson.M{"$set": bson.M{
		"user_id":    goal.UserID,
		"key":        goal.Key,
		"value":      goal.Value,
		"updated_at": goal.UpdatedAt,
	}}

	return withRetry(ctx, func() error {
		_, err := s.collection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
		if mongo.IsDuplicateKeyError(err) {
			return nil
		}
		return err
	})
}

// GetAll returns every goal for the user keyed by goal key.
func (s *MongoGoalStore) GetAll(ctx context.Context, userID string) (map[string]string, error) {
	goals := make(map[string]string)
	err := withRetry(ctx, func() error {
		cursor, err := s.collection.Find(ctx, bson.M{"user_id": userID})
		if err != nil {
			return err
		}
		defer cursor.Close(ctx)

		var docs []models.Goal
		if err := cursor.All(ctx, &docs); err != nil {
			return err
		}
		for _, g := range docs {
			goals[g.Key] = g.Value
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return goals, nil
}
