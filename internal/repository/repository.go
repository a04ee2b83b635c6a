package repository

import (
	"context"
	"gymbook/internal/domain"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Error constants for repository layer
var (
	ErrNotFound     = RepositoryError("not found")
	ErrDuplicateKey = RepositoryError("duplicate key")
	// Conditional roster writes report which precondition rejected them.
	ErrCapacityExceeded = RepositoryError("capacity exceeded")
	ErrAlreadyBooked    = RepositoryError("visitor already on roster")
	ErrNotBooked        = RepositoryError("visitor not on roster")
	ErrRosterTooLarge   = RepositoryError("roster larger than requested capacity")
	// ErrContention means the conditional write kept losing races and gave up.
	ErrContention = RepositoryError("conditional write contention")
)

// RepositoryError helps distinguish repository errors
type RepositoryError string

func (e RepositoryError) Error() string {
	return string(e)
}

// VisitorRepository defines the interface for interacting with visitor data.
type VisitorRepository interface {
	Create(ctx context.Context, visitor *domain.Visitor) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Visitor, error)
	GetByUsername(ctx context.Context, username string) (*domain.Visitor, error)
	GetByIDs(ctx context.Context, ids []primitive.ObjectID) ([]domain.Visitor, error)
	// AddSession and RemoveSession are idempotent set operations on visitor.sessions.
	AddSession(ctx context.Context, visitorID, sessionID primitive.ObjectID) error
	RemoveSession(ctx context.Context, visitorID, sessionID primitive.ObjectID) error
	AddReview(ctx context.Context, visitorID, reviewID primitive.ObjectID) error
	TopBySessionCount(ctx context.Context, limit int) ([]domain.VisitorRanking, error)
}

// TrainerRepository defines the interface for interacting with trainer data.
type TrainerRepository interface {
	Create(ctx context.Context, trainer *domain.Trainer) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Trainer, error)
	GetByUsername(ctx context.Context, username string) (*domain.Trainer, error)
	GetByIDs(ctx context.Context, ids []primitive.ObjectID) ([]domain.Trainer, error)
	List(ctx context.Context) ([]domain.Trainer, error)
	Update(ctx context.Context, trainer *domain.Trainer) error
	Delete(ctx context.Context, id primitive.ObjectID) error
	AddSession(ctx context.Context, trainerID, sessionID primitive.ObjectID) error
}

// ManagerRepository defines the interface for interacting with manager data.
type ManagerRepository interface {
	Create(ctx context.Context, manager *domain.Manager) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Manager, error)
	GetByUsername(ctx context.Context, username string) (*domain.Manager, error)
}

// SessionRepository defines the interface for interacting with session data.
// The roster methods are atomic conditional writes against a single document.
type SessionRepository interface {
	Create(ctx context.Context, session *domain.Session) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Session, error)
	// FindDuplicate returns a session with the same trainer, title, description and date, or ErrNotFound.
	FindDuplicate(ctx context.Context, trainerID primitive.ObjectID, title, description string, date time.Time) (*domain.Session, error)
	List(ctx context.Context) ([]domain.Session, error)
	ListByTrainer(ctx context.Context, trainerID primitive.ObjectID) ([]domain.Session, error)
	ListByIDs(ctx context.Context, ids []primitive.ObjectID) ([]domain.Session, error)
	ListByVisitor(ctx context.Context, visitorID primitive.ObjectID) ([]domain.Session, error)
	CountByTrainer(ctx context.Context, trainerID primitive.ObjectID) (int64, error)
	// UpdateDetails applies the patch. A MaxVisitors below the current roster size yields ErrRosterTooLarge.
	UpdateDetails(ctx context.Context, id primitive.ObjectID, update domain.SessionUpdate) (*domain.Session, error)
	// AddVisitor appends visitorID only if it is absent and the roster is below capacity.
	// Fails with ErrNotFound, ErrAlreadyBooked, ErrCapacityExceeded or ErrContention.
	AddVisitor(ctx context.Context, sessionID, visitorID primitive.ObjectID) (*domain.Session, error)
	// RemoveVisitor pulls visitorID only if present. Fails with ErrNotFound or ErrNotBooked.
	RemoveVisitor(ctx context.Context, sessionID, visitorID primitive.ObjectID) (*domain.Session, error)
	AddReview(ctx context.Context, sessionID, reviewID primitive.ObjectID) error
}

// ReviewRepository defines the interface for interacting with review data.
type ReviewRepository interface {
	Create(ctx context.Context, review *domain.Review) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Review, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
	GetByIDs(ctx context.Context, ids []primitive.ObjectID) ([]domain.Review, error)
	ListBySessionIDs(ctx context.Context, sessionIDs []primitive.ObjectID) ([]domain.Review, error)
}

// ReconciliationRepository stores pending cross-reference repairs.
type ReconciliationRepository interface {
	Create(ctx context.Context, rec *domain.Reconciliation) (primitive.ObjectID, error)
	ListPending(ctx context.Context, limit int) ([]domain.Reconciliation, error)
	MarkResolved(ctx context.Context, id primitive.ObjectID) error
	RecordFailure(ctx context.Context, id primitive.ObjectID, cause string) error
}
