// Package memory is an in-process implementation of the repository interfaces. It backs the
// service and handler tests. Every mutation holds one store-wide lock, which gives it
// the same single-document atomicity the MongoDB implementation relies on.
package memory

import (
	"gymbook/internal/domain"
	"gymbook/internal/repository"
	"sort"
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Store holds all collections. Values are copied on the way in and out so callers never share
// slices with the store.
type Store struct {
	mu              sync.RWMutex
	visitors        map[primitive.ObjectID]domain.Visitor
	trainers        map[primitive.ObjectID]domain.Trainer
	managers        map[primitive.ObjectID]domain.Manager
	sessions        map[primitive.ObjectID]domain.Session
	reviews         map[primitive.ObjectID]domain.Review
	reconciliations map[primitive.ObjectID]domain.Reconciliation
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		visitors:        map[primitive.ObjectID]domain.Visitor{},
		trainers:        map[primitive.ObjectID]domain.Trainer{},
		managers:        map[primitive.ObjectID]domain.Manager{},
		sessions:        map[primitive.ObjectID]domain.Session{},
		reviews:         map[primitive.ObjectID]domain.Review{},
		reconciliations: map[primitive.ObjectID]domain.Reconciliation{},
	}
}

func (s *Store) Visitors() repository.VisitorRepository { return &visitorRepo{s} }

func (s *Store) Trainers() repository.TrainerRepository { return &trainerRepo{s} }

func (s *Store) Managers() repository.ManagerRepository { return &managerRepo{s} }

func (s *Store) Sessions() repository.SessionRepository { return &sessionRepo{s} }

func (s *Store) Reviews() repository.ReviewRepository { return &reviewRepo{s} }

func (s *Store) Reconciliations() repository.ReconciliationRepository {
	return &reconciliationRepo{s}
}

func cloneIDs(ids []primitive.ObjectID) []primitive.ObjectID {
	out := make([]primitive.ObjectID, len(ids))
	copy(out, ids)
	return out
}

func addID(ids []primitive.ObjectID, id primitive.ObjectID) []primitive.ObjectID {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}

func removeID(ids []primitive.ObjectID, id primitive.ObjectID) []primitive.ObjectID {
	out := ids[:0:0]
	for _, existing := range ids {
		if existing != id {
			out = append(out, existing)
		}
	}
	return out
}

func idSet(ids []primitive.ObjectID) map[primitive.ObjectID]struct{} {
	set := make(map[primitive.ObjectID]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func cloneVisitor(v domain.Visitor) domain.Visitor {
	v.Sessions = cloneIDs(v.Sessions)
	v.Reviews = cloneIDs(v.Reviews)
	return v
}

func cloneTrainer(t domain.Trainer) domain.Trainer {
	t.Sessions = cloneIDs(t.Sessions)
	return t
}

func cloneSession(s domain.Session) domain.Session {
	s.Visitors = cloneIDs(s.Visitors)
	s.Reviews = cloneIDs(s.Reviews)
	return s
}

// usernameTaken checks one collection; uniqueness across roles is the service's job.
func usernameTaken[T any](m map[primitive.ObjectID]T, username string, get func(T) string) bool {
	for _, v := range m {
		if get(v) == username {
			return true
		}
	}
	return false
}

func sortSessions(sessions []domain.Session) {
	sort.Slice(sessions, func(i, j int) bool {
		if !sessions[i].Date.Equal(sessions[j].Date) {
			return sessions[i].Date.Before(sessions[j].Date)
		}
		return sessions[i].ID.Hex() < sessions[j].ID.Hex()
	})
}
