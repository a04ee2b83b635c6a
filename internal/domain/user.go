package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Role type to distinguish between user roles
type Role string

// Define constants for roles. The set is closed; anything else is rejected at the token boundary.
const (
	RoleVisitor Role = "visitor"
	RoleTrainer Role = "trainer"
	RoleManager Role = "manager"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleVisitor, RoleTrainer, RoleManager:
		return true
	}
	return false
}

// Visitor books sessions and writes reviews.
type Visitor struct {
	ID           primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Name         string               `bson:"name" json:"name"`
	Email        string               `bson:"email" json:"email"`
	Username     string               `bson:"username" json:"username"` // unique across all user collections
	PasswordHash string               `bson:"passwordHash" json:"-"`    // Never expose this via JSON
	Sessions     []primitive.ObjectID `bson:"sessions" json:"sessions"` // mirror of Session.Visitors
	Reviews      []primitive.ObjectID `bson:"reviews" json:"reviews"`
	CreatedAt    time.Time            `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time            `bson:"updatedAt" json:"updatedAt"`
}

// HasSession reports whether the visitor's own list references sessionID.
func (v *Visitor) HasSession(sessionID primitive.ObjectID) bool {
	return containsID(v.Sessions, sessionID)
}

// HasReview reports whether reviewID is linked on the visitor.
func (v *Visitor) HasReview(reviewID primitive.ObjectID) bool {
	return containsID(v.Reviews, reviewID)
}

// Trainer owns sessions.
type Trainer struct {
	ID           primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Username     string               `bson:"username" json:"username"`
	PasswordHash string               `bson:"passwordHash" json:"-"`
	Name         string               `bson:"name" json:"name"`
	Email        string               `bson:"email" json:"email"`
	Rating       float64              `bson:"rating" json:"rating"`
	MaxVisitors  int                  `bson:"maxVisitors,omitempty" json:"maxVisitors,omitempty"` // capacity hint only
	Sessions     []primitive.ObjectID `bson:"sessions" json:"sessions"`
	CreatedAt    time.Time            `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time            `bson:"updatedAt" json:"updatedAt"`
}

// Manager has privileged read access and may act as owner of any session.
type Manager struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Username     string             `bson:"username" json:"username"`
	PasswordHash string             `bson:"passwordHash" json:"-"`
	Name         string             `bson:"name" json:"name"`
	Email        string             `bson:"email" json:"email"`
	CreatedAt    time.Time          `bson:"createdAt" json:"createdAt"`
}

// VisitorRanking is a visitor together with the number of sessions they are booked into.
type VisitorRanking struct {
	Visitor      `bson:",inline"`
	SessionCount int `bson:"sessionCount" json:"sessionCount"`
}

func containsID(ids []primitive.ObjectID, id primitive.ObjectID) bool {
	for _, existing := range ids {
		if existing == id {
			return true
		}
	}
	return false
}
