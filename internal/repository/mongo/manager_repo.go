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

type mongoManagerRepository struct {
	collection *mongo.Collection
}

// NewMongoManagerRepository creates a new instance of mongoManagerRepository.
func NewMongoManagerRepository(db *mongo.Database) repository.ManagerRepository {
	return &mongoManagerRepository{
		collection: db.Collection(managerCollectionName),
	}
}

func (r *mongoManagerRepository) Create(ctx context.Context, manager *domain.Manager) (primitive.ObjectID, error) {
	if manager.Username == "" || manager.PasswordHash == "" {
		return primitive.NilObjectID, errors.New("manager username and password hash are required")
	}
	manager.ID = primitive.NewObjectID()
	manager.CreatedAt = time.Now().UTC()

	if _, err := r.collection.InsertOne(ctx, manager); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return primitive.NilObjectID, repository.ErrDuplicateKey
		}
		return primitive.NilObjectID, err
	}
	return manager.ID, nil
}

func (r *mongoManagerRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Manager, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *mongoManagerRepository) GetByUsername(ctx context.Context, username string) (*domain.Manager, error) {
	return r.findOne(ctx, bson.M{"username": username})
}

func (r *mongoManagerRepository) findOne(ctx context.Context, filter bson.M) (*domain.Manager, error) {
	var manager domain.Manager
	if err := r.collection.FindOne(ctx, filter).Decode(&manager); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &manager, nil
}

// EnsureManagerIndexes creates necessary indexes for the managers collection.
func EnsureManagerIndexes(ctx context.Context, collection *mongo.Collection) error {
	_, err := collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "username", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}
