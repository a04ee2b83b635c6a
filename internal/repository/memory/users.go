package memory

import (
	"context"
	"gymbook/internal/domain"
	"gymbook/internal/repository"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type visitorRepo struct{ s *Store }

func (r *visitorRepo) Create(_ context.Context, visitor *domain.Visitor) (primitive.ObjectID, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if usernameTaken(r.s.visitors, visitor.Username, func(v domain.Visitor) string { return v.Username }) {
		return primitive.NilObjectID, repository.ErrDuplicateKey
	}
	visitor.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	visitor.CreatedAt, visitor.UpdatedAt = now, now
	if visitor.Sessions == nil {
		visitor.Sessions = []primitive.ObjectID{}
	}
	if visitor.Reviews == nil {
		visitor.Reviews = []primitive.ObjectID{}
	}
	r.s.visitors[visitor.ID] = cloneVisitor(*visitor)
	return visitor.ID, nil
}

func (r *visitorRepo) GetByID(_ context.Context, id primitive.ObjectID) (*domain.Visitor, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	v, ok := r.s.visitors[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := cloneVisitor(v)
	return &out, nil
}

func (r *visitorRepo) GetByUsername(_ context.Context, username string) (*domain.Visitor, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, v := range r.s.visitors {
		if v.Username == username {
			out := cloneVisitor(v)
			return &out, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *visitorRepo) GetByIDs(_ context.Context, ids []primitive.ObjectID) ([]domain.Visitor, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []domain.Visitor{}
	for id := range idSet(ids) {
		if v, ok := r.s.visitors[id]; ok {
			out = append(out, cloneVisitor(v))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (r *visitorRepo) AddSession(_ context.Context, visitorID, sessionID primitive.ObjectID) error {
	return r.mutate(visitorID, func(v *domain.Visitor) { v.Sessions = addID(v.Sessions, sessionID) })
}

func (r *visitorRepo) RemoveSession(_ context.Context, visitorID, sessionID primitive.ObjectID) error {
	return r.mutate(visitorID, func(v *domain.Visitor) { v.Sessions = removeID(v.Sessions, sessionID) })
}

func (r *visitorRepo) AddReview(_ context.Context, visitorID, reviewID primitive.ObjectID) error {
	return r.mutate(visitorID, func(v *domain.Visitor) { v.Reviews = addID(v.Reviews, reviewID) })
}

func (r *visitorRepo) mutate(id primitive.ObjectID, fn func(*domain.Visitor)) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	v, ok := r.s.visitors[id]
	if !ok {
		return repository.ErrNotFound
	}
	v = cloneVisitor(v)
	fn(&v)
	v.UpdatedAt = time.Now().UTC()
	r.s.visitors[id] = v
	return nil
}

func (r *visitorRepo) TopBySessionCount(_ context.Context, limit int) ([]domain.VisitorRanking, error) {
	if limit <= 0 {
		limit = 5
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	rankings := make([]domain.VisitorRanking, 0, len(r.s.visitors))
	for _, v := range r.s.visitors {
		rankings = append(rankings, domain.VisitorRanking{Visitor: cloneVisitor(v), SessionCount: len(v.Sessions)})
	}
	sort.Slice(rankings, func(i, j int) bool {
		if rankings[i].SessionCount != rankings[j].SessionCount {
			return rankings[i].SessionCount > rankings[j].SessionCount
		}
		return rankings[i].Username < rankings[j].Username
	})
	if len(rankings) > limit {
		rankings = rankings[:limit]
	}
	return rankings, nil
}

type trainerRepo struct{ s *Store }

func (r *trainerRepo) Create(_ context.Context, trainer *domain.Trainer) (primitive.ObjectID, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if usernameTaken(r.s.trainers, trainer.Username, func(t domain.Trainer) string { return t.Username }) {
		return primitive.NilObjectID, repository.ErrDuplicateKey
	}
	trainer.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	trainer.CreatedAt, trainer.UpdatedAt = now, now
	if trainer.Sessions == nil {
		trainer.Sessions = []primitive.ObjectID{}
	}
	r.s.trainers[trainer.ID] = cloneTrainer(*trainer)
	return trainer.ID, nil
}

func (r *trainerRepo) GetByID(_ context.Context, id primitive.ObjectID) (*domain.Trainer, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	t, ok := r.s.trainers[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := cloneTrainer(t)
	return &out, nil
}

func (r *trainerRepo) GetByUsername(_ context.Context, username string) (*domain.Trainer, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, t := range r.s.trainers {
		if t.Username == username {
			out := cloneTrainer(t)
			return &out, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *trainerRepo) GetByIDs(_ context.Context, ids []primitive.ObjectID) ([]domain.Trainer, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []domain.Trainer{}
	for id := range idSet(ids) {
		if t, ok := r.s.trainers[id]; ok {
			out = append(out, cloneTrainer(t))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *trainerRepo) List(_ context.Context) ([]domain.Trainer, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]domain.Trainer, 0, len(r.s.trainers))
	for _, t := range r.s.trainers {
		out = append(out, cloneTrainer(t))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *trainerRepo) Update(_ context.Context, trainer *domain.Trainer) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	existing, ok := r.s.trainers[trainer.ID]
	if !ok {
		return repository.ErrNotFound
	}
	existing.Name = trainer.Name
	existing.Email = trainer.Email
	existing.Rating = trainer.Rating
	existing.MaxVisitors = trainer.MaxVisitors
	existing.UpdatedAt = time.Now().UTC()
	trainer.UpdatedAt = existing.UpdatedAt
	r.s.trainers[trainer.ID] = existing
	return nil
}

func (r *trainerRepo) Delete(_ context.Context, id primitive.ObjectID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.trainers[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.trainers, id)
	return nil
}

func (r *trainerRepo) AddSession(_ context.Context, trainerID, sessionID primitive.ObjectID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.trainers[trainerID]
	if !ok {
		return repository.ErrNotFound
	}
	t = cloneTrainer(t)
	t.Sessions = addID(t.Sessions, sessionID)
	t.UpdatedAt = time.Now().UTC()
	r.s.trainers[trainerID] = t
	return nil
}

type managerRepo struct{ s *Store }

func (r *managerRepo) Create(_ context.Context, manager *domain.Manager) (primitive.ObjectID, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if usernameTaken(r.s.managers, manager.Username, func(m domain.Manager) string { return m.Username }) {
		return primitive.NilObjectID, repository.ErrDuplicateKey
	}
	manager.ID = primitive.NewObjectID()
	manager.CreatedAt = time.Now().UTC()
	r.s.managers[manager.ID] = *manager
	return manager.ID, nil
}

func (r *managerRepo) GetByID(_ context.Context, id primitive.ObjectID) (*domain.Manager, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	m, ok := r.s.managers[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &m, nil
}

func (r *managerRepo) GetByUsername(_ context.Context, username string) (*domain.Manager, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, m := range r.s.managers {
		if m.Username == username {
			out := m
			return &out, nil
		}
	}
	return nil, repository.ErrNotFound
}
