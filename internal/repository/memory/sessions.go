package memory

import (
	"context"
	"gymbook/internal/domain"
	"gymbook/internal/repository"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type sessionRepo struct{ s *Store }

func (r *sessionRepo) Create(_ context.Context, session *domain.Session) (primitive.ObjectID, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	session.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	session.CreatedAt, session.UpdatedAt = now, now
	session.Version = 0
	if session.Visitors == nil {
		session.Visitors = []primitive.ObjectID{}
	}
	if session.Reviews == nil {
		session.Reviews = []primitive.ObjectID{}
	}
	r.s.sessions[session.ID] = cloneSession(*session)
	return session.ID, nil
}

func (r *sessionRepo) GetByID(_ context.Context, id primitive.ObjectID) (*domain.Session, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	sess, ok := r.s.sessions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := cloneSession(sess)
	return &out, nil
}

func (r *sessionRepo) FindDuplicate(_ context.Context, trainerID primitive.ObjectID, title, description string, date time.Time) (*domain.Session, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, sess := range r.s.sessions {
		if sess.TrainerID == trainerID && sess.Title == title && sess.Description == description && sess.Date.Equal(date) {
			out := cloneSession(sess)
			return &out, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *sessionRepo) List(_ context.Context) ([]domain.Session, error) {
	return r.filter(func(domain.Session) bool { return true }), nil
}

func (r *sessionRepo) ListByTrainer(_ context.Context, trainerID primitive.ObjectID) ([]domain.Session, error) {
	return r.filter(func(s domain.Session) bool { return s.TrainerID == trainerID }), nil
}

func (r *sessionRepo) ListByIDs(_ context.Context, ids []primitive.ObjectID) ([]domain.Session, error) {
	set := idSet(ids)
	return r.filter(func(s domain.Session) bool {
		_, ok := set[s.ID]
		return ok
	}), nil
}

func (r *sessionRepo) ListByVisitor(_ context.Context, visitorID primitive.ObjectID) ([]domain.Session, error) {
	return r.filter(func(s domain.Session) bool { return s.HasVisitor(visitorID) }), nil
}

func (r *sessionRepo) filter(keep func(domain.Session) bool) []domain.Session {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []domain.Session{}
	for _, sess := range r.s.sessions {
		if keep(sess) {
			out = append(out, cloneSession(sess))
		}
	}
	sortSessions(out)
	return out
}

func (r *sessionRepo) CountByTrainer(_ context.Context, trainerID primitive.ObjectID) (int64, error) {
	return int64(len(r.filter(func(s domain.Session) bool { return s.TrainerID == trainerID }))), nil
}

func (r *sessionRepo) UpdateDetails(_ context.Context, id primitive.ObjectID, update domain.SessionUpdate) (*domain.Session, error) {
	return r.mutate(id, func(sess *domain.Session) error {
		if update.MaxVisitors != nil && len(sess.Visitors) > *update.MaxVisitors {
			return repository.ErrRosterTooLarge
		}
		if update.Title != nil {
			sess.Title = *update.Title
		}
		if update.Description != nil {
			sess.Description = *update.Description
		}
		if update.Date != nil {
			sess.Date = update.Date.UTC()
		}
		if update.MaxVisitors != nil {
			sess.MaxVisitors = *update.MaxVisitors
		}
		return nil
	})
}

func (r *sessionRepo) AddVisitor(_ context.Context, sessionID, visitorID primitive.ObjectID) (*domain.Session, error) {
	return r.mutate(sessionID, func(sess *domain.Session) error {
		if sess.HasVisitor(visitorID) {
			return repository.ErrAlreadyBooked
		}
		if sess.IsFull() {
			return repository.ErrCapacityExceeded
		}
		sess.Visitors = append(sess.Visitors, visitorID)
		sess.Version++
		return nil
	})
}

func (r *sessionRepo) RemoveVisitor(_ context.Context, sessionID, visitorID primitive.ObjectID) (*domain.Session, error) {
	return r.mutate(sessionID, func(sess *domain.Session) error {
		if !sess.HasVisitor(visitorID) {
			return repository.ErrNotBooked
		}
		sess.Visitors = removeID(sess.Visitors, visitorID)
		sess.Version++
		return nil
	})
}

func (r *sessionRepo) AddReview(_ context.Context, sessionID, reviewID primitive.ObjectID) error {
	_, err := r.mutate(sessionID, func(sess *domain.Session) error {
		sess.Reviews = addID(sess.Reviews, reviewID)
		return nil
	})
	return err
}

// mutate applies fn to a copy of the session under the write lock and stores it only if fn succeeds.
func (r *sessionRepo) mutate(id primitive.ObjectID, fn func(*domain.Session) error) (*domain.Session, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sess, ok := r.s.sessions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	sess = cloneSession(sess)
	if err := fn(&sess); err != nil {
		return nil, err
	}
	sess.UpdatedAt = time.Now().UTC()
	r.s.sessions[id] = sess
	out := cloneSession(sess)
	return &out, nil
}

type reviewRepo struct{ s *Store }

func (r *reviewRepo) Create(_ context.Context, review *domain.Review) (primitive.ObjectID, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	review.ID = primitive.NewObjectID()
	if review.CreatedAt.IsZero() {
		review.CreatedAt = time.Now().UTC()
	}
	r.s.reviews[review.ID] = *review
	return review.ID, nil
}

func (r *reviewRepo) GetByID(_ context.Context, id primitive.ObjectID) (*domain.Review, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	rv, ok := r.s.reviews[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &rv, nil
}

func (r *reviewRepo) Delete(_ context.Context, id primitive.ObjectID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.reviews[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.reviews, id)
	return nil
}

func (r *reviewRepo) GetByIDs(_ context.Context, ids []primitive.ObjectID) ([]domain.Review, error) {
	set := idSet(ids)
	return r.filter(func(rv domain.Review) bool {
		_, ok := set[rv.ID]
		return ok
	}), nil
}

func (r *reviewRepo) ListBySessionIDs(_ context.Context, sessionIDs []primitive.ObjectID) ([]domain.Review, error) {
	set := idSet(sessionIDs)
	return r.filter(func(rv domain.Review) bool {
		_, ok := set[rv.SessionID]
		return ok
	}), nil
}

func (r *reviewRepo) filter(keep func(domain.Review) bool) []domain.Review {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []domain.Review{}
	for _, rv := range r.s.reviews {
		if keep(rv) {
			out = append(out, rv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

type reconciliationRepo struct{ s *Store }

func (r *reconciliationRepo) Create(_ context.Context, rec *domain.Reconciliation) (primitive.ObjectID, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rec.ID = primitive.NewObjectID()
	rec.Status = domain.ReconciliationPending
	rec.CreatedAt = time.Now().UTC()
	r.s.reconciliations[rec.ID] = *rec
	return rec.ID, nil
}

func (r *reconciliationRepo) ListPending(_ context.Context, limit int) ([]domain.Reconciliation, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []domain.Reconciliation{}
	for _, rec := range r.s.reconciliations {
		if rec.Status == domain.ReconciliationPending {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *reconciliationRepo) MarkResolved(_ context.Context, id primitive.ObjectID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rec, ok := r.s.reconciliations[id]
	if !ok {
		return repository.ErrNotFound
	}
	now := time.Now().UTC()
	rec.Status = domain.ReconciliationResolved
	rec.ResolvedAt = &now
	rec.Attempts++
	r.s.reconciliations[id] = rec
	return nil
}

func (r *reconciliationRepo) RecordFailure(_ context.Context, id primitive.ObjectID, cause string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rec, ok := r.s.reconciliations[id]
	if !ok {
		return repository.ErrNotFound
	}
	rec.Attempts++
	rec.LastError = cause
	r.s.reconciliations[id] = rec
	return nil
}
