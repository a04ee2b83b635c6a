package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DefaultMaxVisitors is used when a session is created without an explicit capacity.
const DefaultMaxVisitors = 10

// Session is a trainer-owned time slot with a capacity-bounded roster.
type Session struct {
	ID          primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Title       string               `bson:"title" json:"title"`
	Description string               `bson:"description,omitempty" json:"description,omitempty"`
	Date        time.Time            `bson:"date" json:"date"`
	MaxVisitors int                  `bson:"maxVisitors" json:"maxVisitors"`
	TrainerID   primitive.ObjectID   `bson:"trainer" json:"trainer"` // owner, immutable after creation
	Visitors    []primitive.ObjectID `bson:"visitors" json:"visitors"`
	Reviews     []primitive.ObjectID `bson:"reviews" json:"reviews"`
	// Version is bumped on every roster mutation.
	Version   int64     `bson:"version" json:"version"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

// HasVisitor reports whether visitorID is on the roster.
func (s *Session) HasVisitor(visitorID primitive.ObjectID) bool {
	return containsID(s.Visitors, visitorID)
}

// HasReview reports whether reviewID is linked to the session.
func (s *Session) HasReview(reviewID primitive.ObjectID) bool {
	return containsID(s.Reviews, reviewID)
}

// IsFull reports whether no more visitors can be added.
func (s *Session) IsFull() bool {
	return len(s.Visitors) >= s.MaxVisitors
}

// FreeSpots returns the remaining capacity, never negative.
func (s *Session) FreeSpots() int {
	if n := s.MaxVisitors - len(s.Visitors); n > 0 {
		return n
	}
	return 0
}

// SessionUpdate carries the owner-editable fields. Nil means "leave unchanged".
type SessionUpdate struct {
	Title       *string
	Description *string
	Date        *time.Time
	MaxVisitors *int
}

// IsEmpty reports whether the update changes nothing.
func (u SessionUpdate) IsEmpty() bool {
	return u.Title == nil && u.Description == nil && u.Date == nil && u.MaxVisitors == nil
}
