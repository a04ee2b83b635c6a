package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Rating bounds, inclusive.
const (
	MinRating = 1
	MaxRating = 5
)

// Review is a visitor's rating of a session. Reviews are append-only.
type Review struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Rating    int                `bson:"rating" json:"rating"`
	Comment   string             `bson:"comment" json:"comment"`
	VisitorID primitive.ObjectID `bson:"visitor" json:"visitor"`
	SessionID primitive.ObjectID `bson:"session" json:"session"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}
