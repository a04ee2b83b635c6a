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

// mongoVisitorRepository implements the repository.VisitorRepository interface using MongoDB.
type mongoVisitorRepository struct {
	collection *mongo.Collection
}

// NewMongoVisitorRepository creates a new instance of mongoVisitorRepository.
func NewMongoVisitorRepository(db *mongo.Database) repository.VisitorRepository {
	return &mongoVisitorRepository{
		collection: db.Collection(visitorCollectionName),
	}
}

// Create inserts a new visitor. Reference arrays are initialised so set operators never meet null.
func (r *mongoVisitorRepository) Create(ctx context.Context, visitor *domain.Visitor) (primitive.ObjectID, error) {
	if visitor.Username == "" || visitor.PasswordHash == "" {
		return primitive.NilObjectID, errors.New("visitor username and password hash are required")
	}

	visitor.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	visitor.CreatedAt = now
	visitor.UpdatedAt = now
	if visitor.Sessions == nil {
		visitor.Sessions = []primitive.ObjectID{}
	}
	if visitor.Reviews == nil {
		visitor.Reviews = []primitive.ObjectID{}
	}

	if _, err := r.collection.InsertOne(ctx, visitor); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return primitive.NilObjectID, repository.ErrDuplicateKey
		}
		return primitive.NilObjectID, err
	}
	return visitor.ID, nil
}

// GetByID retrieves a visitor by their MongoDB ObjectID.
func (r *mongoVisitorRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Visitor, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

// GetByUsername retrieves a visitor by username.
func (r *mongoVisitorRepository) GetByUsername(ctx context.Context, username string) (*domain.Visitor, error) {
	return r.findOne(ctx, bson.M{"username": username})
}

func (r *mongoVisitorRepository) findOne(ctx context.Context, filter bson.M) (*domain.Visitor, error) {
	var visitor domain.Visitor
	err := r.collection.FindOne(ctx, filter).Decode(&visitor)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &visitor, nil
}

// GetByIDs returns the visitors whose ids are in ids. Missing ids are skipped.
func (r *mongoVisitorRepository) GetByIDs(ctx context.Context, ids []primitive.ObjectID) ([]domain.Visitor, error) {
	visitors := []domain.Visitor{}
	if len(ids) == 0 {
		return visitors, nil
	}
	filter := bson.M{"_id": bson.M{"$in": ids}}
	if err := findAll(ctx, r.collection, filter, &visitors, options.Find().SetSort(bson.D{{Key: "username", Value: 1}})); err != nil {
		return nil, err
	}
	return visitors, nil
}

// AddSession adds sessionID to the visitor's sessions. $addToSet keeps it idempotent.
func (r *mongoVisitorRepository) AddSession(ctx context.Context, visitorID, sessionID primitive.ObjectID) error {
	return r.updateSet(ctx, visitorID, bson.M{
		"$addToSet": bson.M{"sessions": sessionID},
		"$set":      bson.M{"updatedAt": time.Now().UTC()},
	})
}

// RemoveSession pulls sessionID from the visitor's sessions.
func (r *mongoVisitorRepository) RemoveSession(ctx context.Context, visitorID, sessionID primitive.ObjectID) error {
	return r.updateSet(ctx, visitorID, bson.M{
		"$pull": bson.M{"sessions": sessionID},
		"$set":  bson.M{"updatedAt": time.Now().UTC()},
	})
}

// AddReview links reviewID to the visitor.
func (r *mongoVisitorRepository) AddReview(ctx context.Context, visitorID, reviewID primitive.ObjectID) error {
	return r.updateSet(ctx, visitorID, bson.M{
		"$addToSet": bson.M{"reviews": reviewID},
		"$set":      bson.M{"updatedAt": time.Now().UTC()},
	})
}

func (r *mongoVisitorRepository) updateSet(ctx context.Context, visitorID primitive.ObjectID, update bson.M) error {
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": visitorID}, update)
	if err != nil {
		return err
	}
	// ModifiedCount is 0 when the set already had the desired shape, which is fine.
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// TopBySessionCount ranks visitors by the size of their sessions array.
func (r *mongoVisitorRepository) TopBySessionCount(ctx context.Context, limit int) ([]domain.VisitorRanking, error) {
	if limit <= 0 {
		limit = 5
	}
	pipeline := mongo.Pipeline{
		{{Key: "$addFields", Value: bson.M{"sessionCount": bson.M{"$size": bson.M{"$ifNull": bson.A{"$sessions", bson.A{}}}}}}},
		{{Key: "$sort", Value: bson.D{{Key: "sessionCount", Value: -1}, {Key: "username", Value: 1}}}},
		{{Key: "$limit", Value: limit}},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	rankings := []domain.VisitorRanking{}
	if err = cursor.All(ctx, &rankings); err != nil {
		return nil, err
	}
	return rankings, nil
}

// EnsureVisitorIndexes creates necessary indexes for the visitors collection.
func EnsureVisitorIndexes(ctx context.Context, collection *mongo.Collection) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "username", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "sessions", Value: 1}},
		},
	}
	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}
