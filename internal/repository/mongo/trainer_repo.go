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

// mongoTrainerRepository implements the repository.TrainerRepository interface using MongoDB.
type mongoTrainerRepository struct {
	collection *mongo.Collection
}

// NewMongoTrainerRepository creates a new instance of mongoTrainerRepository.
func NewMongoTrainerRepository(db *mongo.Database) repository.TrainerRepository {
	return &mongoTrainerRepository{
		collection: db.Collection(trainerCollectionName),
	}
}

// Create inserts a new trainer.
func (r *mongoTrainerRepository) Create(ctx context.Context, trainer *domain.Trainer) (primitive.ObjectID, error) {
	if trainer.Username == "" || trainer.PasswordHash == "" {
		return primitive.NilObjectID, errors.New("trainer username and password hash are required")
	}

	trainer.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	trainer.CreatedAt = now
	trainer.UpdatedAt = now
	if trainer.Sessions == nil {
		trainer.Sessions = []primitive.ObjectID{}
	}

	if _, err := r.collection.InsertOne(ctx, trainer); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return primitive.NilObjectID, repository.ErrDuplicateKey
		}
		return primitive.NilObjectID, err
	}
	return trainer.ID, nil
}

// GetByID retrieves a trainer by id.
func (r *mongoTrainerRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Trainer, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

// GetByUsername retrieves a trainer by username.
func (r *mongoTrainerRepository) GetByUsername(ctx context.Context, username string) (*domain.Trainer, error) {
	return r.findOne(ctx, bson.M{"username": username})
}

func (r *mongoTrainerRepository) findOne(ctx context.Context, filter bson.M) (*domain.Trainer, error) {
	var trainer domain.Trainer
	if err := r.collection.FindOne(ctx, filter).Decode(&trainer); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &trainer, nil
}

// GetByIDs returns the trainers whose ids are in ids.
func (r *mongoTrainerRepository) GetByIDs(ctx context.Context, ids []primitive.ObjectID) ([]domain.Trainer, error) {
	trainers := []domain.Trainer{}
	if len(ids) == 0 {
		return trainers, nil
	}
	if err := findAll(ctx, r.collection, bson.M{"_id": bson.M{"$in": ids}}, &trainers, options.Find().SetSort(bson.D{{Key: "name", Value: 1}})); err != nil {
		return nil, err
	}
	return trainers, nil
}

// List returns every trainer ordered by name.
func (r *mongoTrainerRepository) List(ctx context.Context) ([]domain.Trainer, error) {
	trainers := []domain.Trainer{}
	if err := findAll(ctx, r.collection, bson.M{}, &trainers, options.Find().SetSort(bson.D{{Key: "name", Value: 1}})); err != nil {
		return nil, err
	}
	return trainers, nil
}

// Update replaces the profile fields of an existing trainer. Credentials and sessions are left alone.
func (r *mongoTrainerRepository) Update(ctx context.Context, trainer *domain.Trainer) error {
	trainer.UpdatedAt = time.Now().UTC()
	update := bson.M{
		"$set": bson.M{
			"name":        trainer.Name,
			"email":       trainer.Email,
			"rating":      trainer.Rating,
			"maxVisitors": trainer.MaxVisitors,
			"updatedAt":   trainer.UpdatedAt,
		},
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": trainer.ID}, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// Delete removes a trainer document.
func (r *mongoTrainerRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// AddSession records a session id on its owning trainer.
func (r *mongoTrainerRepository) AddSession(ctx context.Context, trainerID, sessionID primitive.ObjectID) error {
	update := bson.M{
		"$addToSet": bson.M{"sessions": sessionID},
		"$set":      bson.M{"updatedAt": time.Now().UTC()},
	}
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": trainerID}, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// EnsureTrainerIndexes creates necessary indexes for the trainers collection.
func EnsureTrainerIndexes(ctx context.Context, collection *mongo.Collection) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "username", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}
	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}
