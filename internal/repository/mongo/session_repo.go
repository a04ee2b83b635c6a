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

const defaultConditionalRetries = 3

// mongoSessionRepository implements repository.SessionRepository. Roster changes are single
// FindOneAndUpdate calls whose filter carries the precondition, so capacity and uniqueness are
// enforced by MongoDB's per-document atomicity rather than by read-then-write in the service.
type mongoSessionRepository struct {
	collection *mongo.Collection
	retries    int
}

// NewMongoSessionRepository creates a new instance of mongoSessionRepository.
// retries bounds how often a conditional write is re-attempted after the re-read shows the
// precondition holds again.
func NewMongoSessionRepository(db *mongo.Database, retries int) repository.SessionRepository {
	if retries <= 0 {
		retries = defaultConditionalRetries
	}
	return &mongoSessionRepository{
		collection: db.Collection(sessionCollectionName),
		retries:    retries,
	}
}

// Create inserts a new session with empty roster and review lists.
func (r *mongoSessionRepository) Create(ctx context.Context, session *domain.Session) (primitive.ObjectID, error) {
	if session.Title == "" || session.TrainerID.IsZero() || session.Date.IsZero() {
		return primitive.NilObjectID, errors.New("session title, date and trainer are required")
	}

	session.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	session.CreatedAt = now
	session.UpdatedAt = now
	session.Version = 0
	if session.Visitors == nil {
		session.Visitors = []primitive.ObjectID{}
	}
	if session.Reviews == nil {
		session.Reviews = []primitive.ObjectID{}
	}

	if _, err := r.collection.InsertOne(ctx, session); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return primitive.NilObjectID, repository.ErrDuplicateKey
		}
		return primitive.NilObjectID, err
	}
	return session.ID, nil
}

// GetByID retrieves a session by id.
func (r *mongoSessionRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Session, error) {
	var session domain.Session
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&session); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &session, nil
}

// FindDuplicate looks for a session with identical identifying fields for the same trainer.
func (r *mongoSessionRepository) FindDuplicate(ctx context.Context, trainerID primitive.ObjectID, title, description string, date time.Time) (*domain.Session, error) {
	filter := bson.M{
		"trainer":     trainerID,
		"title":       title,
		"description": description,
		"date":        date,
	}
	if description == "" {
		// omitempty drops the field on insert
		filter["description"] = bson.M{"$in": bson.A{"", nil}}
	}
	var session domain.Session
	if err := r.collection.FindOne(ctx, filter).Decode(&session); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &session, nil
}

// List returns all sessions, soonest first.
func (r *mongoSessionRepository) List(ctx context.Context) ([]domain.Session, error) {
	return r.find(ctx, bson.M{})
}

// ListByTrainer returns the sessions owned by trainerID.
func (r *mongoSessionRepository) ListByTrainer(ctx context.Context, trainerID primitive.ObjectID) ([]domain.Session, error) {
	return r.find(ctx, bson.M{"trainer": trainerID})
}

// ListByIDs returns the sessions whose ids are in ids.
func (r *mongoSessionRepository) ListByIDs(ctx context.Context, ids []primitive.ObjectID) ([]domain.Session, error) {
	if len(ids) == 0 {
		return []domain.Session{}, nil
	}
	return r.find(ctx, bson.M{"_id": bson.M{"$in": ids}})
}

// ListByVisitor returns the sessions whose roster contains visitorID.
func (r *mongoSessionRepository) ListByVisitor(ctx context.Context, visitorID primitive.ObjectID) ([]domain.Session, error) {
	return r.find(ctx, bson.M{"visitors": visitorID})
}

func (r *mongoSessionRepository) find(ctx context.Context, filter bson.M) ([]domain.Session, error) {
	sessions := []domain.Session{}
	opts := options.Find().SetSort(bson.D{{Key: "date", Value: 1}, {Key: "_id", Value: 1}})
	if err := findAll(ctx, r.collection, filter, &sessions, opts); err != nil {
		return nil, err
	}
	return sessions, nil
}

// CountByTrainer counts the sessions owned by trainerID.
func (r *mongoSessionRepository) CountByTrainer(ctx context.Context, trainerID primitive.ObjectID) (int64, error) {
	return r.collection.CountDocuments(ctx, bson.M{"trainer": trainerID})
}

// UpdateDetails applies the non-nil fields of update. A capacity change is conditional on the
// current roster fitting into it.
func (r *mongoSessionRepository) UpdateDetails(ctx context.Context, id primitive.ObjectID, update domain.SessionUpdate) (*domain.Session, error) {
	set := bson.M{"updatedAt": time.Now().UTC()}
	filter := bson.M{"_id": id}
	if update.Title != nil {
		set["title"] = *update.Title
	}
	if update.Description != nil {
		set["description"] = *update.Description
	}
	if update.Date != nil {
		set["date"] = update.Date.UTC()
	}
	if update.MaxVisitors != nil {
		set["maxVisitors"] = *update.MaxVisitors
		filter["$expr"] = bson.M{"$lte": bson.A{bson.M{"$size": "$visitors"}, *update.MaxVisitors}}
	}

	return r.conditionalUpdate(ctx, id, filter, bson.M{"$set": set}, func(s *domain.Session) error {
		if update.MaxVisitors != nil && len(s.Visitors) > *update.MaxVisitors {
			return repository.ErrRosterTooLarge
		}
		return nil
	})
}

// AddVisitor pushes visitorID onto the roster when it is absent and a spot is free.
func (r *mongoSessionRepository) AddVisitor(ctx context.Context, sessionID, visitorID primitive.ObjectID) (*domain.Session, error) {
	filter := bson.M{
		"_id":      sessionID,
		"visitors": bson.M{"$ne": visitorID},
		"$expr":    bson.M{"$lt": bson.A{bson.M{"$size": "$visitors"}, "$maxVisitors"}},
	}
	update := bson.M{
		"$push": bson.M{"visitors": visitorID},
		"$inc":  bson.M{"version": 1},
		"$set":  bson.M{"updatedAt": time.Now().UTC()},
	}

	return r.conditionalUpdate(ctx, sessionID, filter, update, func(s *domain.Session) error {
		// Duplicate wins over capacity: a booked visitor on a full session is AlreadyBooked.
		if s.HasVisitor(visitorID) {
			return repository.ErrAlreadyBooked
		}
		if s.IsFull() {
			return repository.ErrCapacityExceeded
		}
		return nil
	})
}

// RemoveVisitor pulls visitorID from the roster when present.
func (r *mongoSessionRepository) RemoveVisitor(ctx context.Context, sessionID, visitorID primitive.ObjectID) (*domain.Session, error) {
	filter := bson.M{"_id": sessionID, "visitors": visitorID}
	update := bson.M{
		"$pull": bson.M{"visitors": visitorID},
		"$inc":  bson.M{"version": 1},
		"$set":  bson.M{"updatedAt": time.Now().UTC()},
	}

	return r.conditionalUpdate(ctx, sessionID, filter, update, func(s *domain.Session) error {
		if !s.HasVisitor(visitorID) {
			return repository.ErrNotBooked
		}
		return nil
	})
}

// conditionalUpdate runs FindOneAndUpdate and, when the filter matched nothing, re-reads the
// document to tell the caller why. classify returns nil when the precondition holds on the
// fresh copy, meaning a concurrent writer moved the document in between and the write is retried.
func (r *mongoSessionRepository) conditionalUpdate(ctx context.Context, id primitive.ObjectID, filter, update bson.M, classify func(*domain.Session) error) (*domain.Session, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	for attempt := 0; attempt <= r.retries; attempt++ {
		var updated domain.Session
		err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&updated)
		if err == nil {
			return &updated, nil
		}
		if !errors.Is(err, mongo.ErrNoDocuments) {
			return nil, err
		}

		current, err := r.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if reason := classify(current); reason != nil {
			return nil, reason
		}
	}
	return nil, repository.ErrContention
}

// AddReview links reviewID to the session if the session still exists.
func (r *mongoSessionRepository) AddReview(ctx context.Context, sessionID, reviewID primitive.ObjectID) error {
	update := bson.M{
		"$addToSet": bson.M{"reviews": reviewID},
		"$set":      bson.M{"updatedAt": time.Now().UTC()},
	}
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": sessionID}, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// EnsureSessionIndexes creates necessary indexes for the sessions collection.
func EnsureSessionIndexes(ctx context.Context, collection *mongo.Collection) error {
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "trainer", Value: 1}, {Key: "date", Value: 1}}},
		{Keys: bson.D{{Key: "visitors", Value: 1}}},
		{Keys: bson.D{{Key: "date", Value: 1}}},
	}
	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}
