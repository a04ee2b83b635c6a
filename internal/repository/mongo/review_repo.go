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

// mongoReviewRepository implements repository.ReviewRepository using MongoDB.
type mongoReviewRepository struct {
	collection *mongo.Collection
}

// NewMongoReviewRepository creates a new instance of mongoReviewRepository.
func NewMongoReviewRepository(db *mongo.Database) repository.ReviewRepository {
	return &mongoReviewRepository{
		collection: db.Collection(reviewCollectionName),
	}
}

// Create inserts a review. CreatedAt defaults to now when unset.
func (r *mongoReviewRepository) Create(ctx context.Context, review *domain.Review) (primitive.ObjectID, error) {
	if review.SessionID.IsZero() || review.VisitorID.IsZero() {
		return primitive.NilObjectID, errors.New("review session and visitor are required")
	}
	review.ID = primitive.NewObjectID()
	if review.CreatedAt.IsZero() {
		review.CreatedAt = time.Now().UTC()
	}

	if _, err := r.collection.InsertOne(ctx, review); err != nil {
		return primitive.NilObjectID, err
	}
	return review.ID, nil
}

// GetByID retrieves a review by id.
func (r *mongoReviewRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Review, error) {
	var review domain.Review
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&review); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &review, nil
}

// Delete removes a review. Only used to compensate a review that never got linked.
func (r *mongoReviewRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// GetByIDs returns the reviews whose ids are in ids, newest first.
func (r *mongoReviewRepository) GetByIDs(ctx context.Context, ids []primitive.ObjectID) ([]domain.Review, error) {
	if len(ids) == 0 {
		return []domain.Review{}, nil
	}
	return r.find(ctx, bson.M{"_id": bson.M{"$in": ids}})
}

// ListBySessionIDs returns every review attached to one of sessionIDs, newest first.
func (r *mongoReviewRepository) ListBySessionIDs(ctx context.Context, sessionIDs []primitive.ObjectID) ([]domain.Review, error) {
	if len(sessionIDs) == 0 {
		return []domain.Review{}, nil
	}
	return r.find(ctx, bson.M{"session": bson.M{"$in": sessionIDs}})
}

func (r *mongoReviewRepository) find(ctx context.Context, filter bson.M) ([]domain.Review, error) {
	reviews := []domain.Review{}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	if err := findAll(ctx, r.collection, filter, &reviews, opts); err != nil {
		return nil, err
	}
	return reviews, nil
}

// EnsureReviewIndexes creates necessary indexes for the reviews collection.
func EnsureReviewIndexes(ctx context.Context, collection *mongo.Collection) error {
	_, err := collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "session", Value: 1}}},
		{Keys: bson.D{{Key: "visitor", Value: 1}}},
	})
	return err
}
