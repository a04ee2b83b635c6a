package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Default connection timeout
const defaultTimeout = 10 * time.Second

// Collection names.
const (
	visitorCollectionName        = "visitors"
	trainerCollectionName        = "trainers"
	managerCollectionName        = "managers"
	sessionCollectionName        = "sessions"
	reviewCollectionName         = "reviews"
	reconciliationCollectionName = "reconciliations"
)

// ConnectDB establishes a connection to MongoDB using the provided URI.
// A zero timeout falls back to defaultTimeout.
func ConnectDB(uri string, timeout time.Duration) (*mongo.Client, error) {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	clientOptions := options.Client().ApplyURI(uri)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, err
	}

	// Ping the primary so an unreachable server fails startup instead of the first request.
	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer pingCancel()

	if err = client.Ping(pingCtx, readpref.Primary()); err != nil {
		disconnectCtx, disconnectCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer disconnectCancel()
		_ = client.Disconnect(disconnectCtx)
		return nil, err
	}

	return client, nil
}

// DisconnectDB gracefully disconnects the MongoDB client.
func DisconnectDB(client *mongo.Client) error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()
	return client.Disconnect(ctx)
}

// EnsureIndexes creates the indexes of every collection. Call this once during application startup.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	steps := []struct {
		name string
		fn   func(context.Context, *mongo.Collection) error
	}{
		{visitorCollectionName, EnsureVisitorIndexes},
		{trainerCollectionName, EnsureTrainerIndexes},
		{managerCollectionName, EnsureManagerIndexes},
		{sessionCollectionName, EnsureSessionIndexes},
		{reviewCollectionName, EnsureReviewIndexes},
		{reconciliationCollectionName, EnsureReconciliationIndexes},
	}
	for _, step := range steps {
		if err := step.fn(ctx, db.Collection(step.name)); err != nil {
			return fmt.Errorf("indexes for %s: %w", step.name, err)
		}
	}
	return nil
}

// findAll runs filter and decodes every match into out.
func findAll(ctx context.Context, coll *mongo.Collection, filter interface{}, out interface{}, opts ...*options.FindOptions) error {
	cursor, err := coll.Find(ctx, filter, opts...)
	if err != nil {
		return err
	}
	defer cursor.Close(ctx)

	if err = cursor.All(ctx, out); err != nil {
		return err
	}
	return cursor.Err()
}
