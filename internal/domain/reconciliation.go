package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ReconciliationKind names the two-sided write that was left half done.
type ReconciliationKind string

const (
	KindRosterAdd    ReconciliationKind = "roster_add"
	KindRosterRemove ReconciliationKind = "roster_remove"
	KindReviewLink   ReconciliationKind = "review_link"   // review linked to session but not to its author
	KindReviewOrphan ReconciliationKind = "review_orphan" // review stored, session link and delete both failed
	KindTrainerLink  ReconciliationKind = "trainer_link"  // session created but missing from its trainer's list
)

// ReconciliationStatus tracks whether a record still needs work.
type ReconciliationStatus string

const (
	ReconciliationPending  ReconciliationStatus = "pending"
	ReconciliationResolved ReconciliationStatus = "resolved"
)

// Reconciliation is an outbox record for a cross-reference write that could be neither
// completed nor rolled back. The Session document is the source of truth when it is replayed.
type Reconciliation struct {
	ID         primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Kind       ReconciliationKind   `bson:"kind" json:"kind"`
	SessionID  primitive.ObjectID   `bson:"sessionId" json:"sessionId"`
	VisitorID  primitive.ObjectID   `bson:"visitorId" json:"visitorId"`
	ReviewID   *primitive.ObjectID  `bson:"reviewId,omitempty" json:"reviewId,omitempty"`
	Cause      string               `bson:"cause" json:"cause"`
	Status     ReconciliationStatus `bson:"status" json:"status"`
	Attempts   int                  `bson:"attempts" json:"attempts"`
	LastError  string               `bson:"lastError,omitempty" json:"lastError,omitempty"`
	CreatedAt  time.Time            `bson:"createdAt" json:"createdAt"`
	ResolvedAt *time.Time           `bson:"resolvedAt,omitempty" json:"resolvedAt,omitempty"`
}
