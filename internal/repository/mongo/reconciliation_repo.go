package mongo

import (
	"context"
	"errors"
	"gymbook/internal/domain"
	"gymbook/internal/repository"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type mongoReconciliationRepository struct {
	collection *mongo.Collection
}

// NewMongoReconciliationRepository creates a new instance of mongoReconciliationRepository.
func NewMongoReconciliationRepository(db *mongo.Database) repository.ReconciliationRepository {
	return &mongoReconciliationRepository{
		collection: db.Collection(reconciliationCollectionName),
	}
}

func (r *mongoReconciliationRepository) Create(ctx context.Context, rec *domain.Reconciliation) (primitive.ObjectID, error) {
	if rec.Kind == "" {
		return primitive.NilObjectID, errors.New("reconciliation kind is required")
	}
	rec.ID = primitive.NewObjectID()
	rec.Status = domain.ReconciliationPending
	rec.CreatedAt = time.Now().UTC()

	if _, err := r.collection.InsertOne(ctx, rec); err != nil {
		return primitive.NilObjectID, err
	}
	return rec.ID, nil
}

// ListPending returns up to limit pending records, oldest first.
func (r *mongoReconciliationRepository) ListPending(ctx context.Context, limit int) ([]domain.Reconciliation, error) {
	recs := []domain.Reconciliation{}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	if err := findAll(ctx, r.collection, bson.M{"status": domain.ReconciliationPending}, &recs, opts); err != nil {
		return nil, err
	}
	return recs, nil
}

func (r *mongoReconciliationRepository) MarkResolved(ctx context.Context, id primitive.ObjectID) error {
	now := time.Now().UTC()
	return r.update(ctx, id, bson.M{
		"$set": bson.M{"status": domain.ReconciliationResolved, "resolvedAt": now},
		"$inc": bson.M{"attempts": 1},
	})
}

func (r *mongoReconciliationRepository) RecordFailure(ctx context.Context, id primitive.ObjectID, cause string) error {
	return r.update(ctx, id, bson.M{
		"$set": bson.M{"lastError": cause},
		"$inc": bson.M{"attempts": 1},
	})
}

func (r *mongoReconciliationRepository) update(ctx context.Context, id primitive.ObjectID, update bson.M) error {
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// EnsureReconciliationIndexes creates necessary indexes for the reconciliations collection.
func EnsureReconciliationIndexes(ctx context.Context, collection *mongo.Collection) error {
	_, err := collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "status", Value: 1}, {Key: "createdAt", Value: 1}},
	})
	return err
}
