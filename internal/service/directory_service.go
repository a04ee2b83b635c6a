package service

import (
	"context"
	"errors"
	"gymbook/internal/domain"
	"gymbook/internal/repository"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const defaultTopVisitors = 5

// TrainerPatch carries manager-editable trainer fields. Nil means unchanged.
type TrainerPatch struct {
	Name        *string
	Email       *string
	Rating      *float64
	MaxVisitors *int
}

// SessionWithReviews pairs a session with its resolved reviews.
type SessionWithReviews struct {
	domain.Session
	ReviewDocs []domain.Review `json:"reviewDocs"`
}

// DirectoryService serves the role-specific read models and manager administration.
type DirectoryService interface {
	// Visitor views
	MySessions(ctx context.Context, principal domain.Principal) ([]domain.Session, error)
	MyTrainers(ctx context.Context, principal domain.Principal) ([]domain.Trainer, error)

	// Manager views
	ListTrainers(ctx context.Context, principal domain.Principal) ([]domain.Trainer, error)
	CreateTrainer(ctx context.Context, principal domain.Principal, account NewAccount) (*domain.Trainer, error)
	UpdateTrainer(ctx context.Context, principal domain.Principal, trainerID primitive.ObjectID, patch TrainerPatch) (*domain.Trainer, error)
	DeleteTrainer(ctx context.Context, principal domain.Principal, trainerID primitive.ObjectID) error
	TopVisitors(ctx context.Context, principal domain.Principal, limit int) ([]domain.VisitorRanking, error)
	AllSessionsWithReviews(ctx context.Context, principal domain.Principal) ([]SessionWithReviews, error)
}

type directoryService struct {
	sessions repository.SessionRepository
	visitors repository.VisitorRepository
	trainers repository.TrainerRepository
	reviews  repository.ReviewRepository
	accounts AccountService
}

// NewDirectoryService creates a new DirectoryService.
func NewDirectoryService(
	sessions repository.SessionRepository,
	visitors repository.VisitorRepository,
	trainers repository.TrainerRepository,
	reviews repository.ReviewRepository,
	accounts AccountService,
) DirectoryService {
	return &directoryService{
		sessions: sessions,
		visitors: visitors,
		trainers: trainers,
		reviews:  reviews,
		accounts: accounts,
	}
}

// MySessions reads the roster side, which is authoritative for bookings.
func (s *directoryService) MySessions(ctx context.Context, principal domain.Principal) ([]domain.Session, error) {
	if err := requireRole(principal, VisitorOnly); err != nil {
		return nil, err
	}
	sessions, err := s.sessions.ListByVisitor(ctx, principal.ID)
	if err != nil {
		return nil, storeError(err)
	}
	return sessions, nil
}

// MyTrainers returns the trainers owning any session the visitor is booked into.
func (s *directoryService) MyTrainers(ctx context.Context, principal domain.Principal) ([]domain.Trainer, error) {
	sessions, err := s.MySessions(ctx, principal)
	if err != nil {
		return nil, err
	}
	ids := make([]primitive.ObjectID, 0, len(sessions))
	for _, session := range sessions {
		ids = append(ids, session.TrainerID)
	}
	trainers, err := s.trainers.GetByIDs(ctx, ids)
	if err != nil {
		return nil, storeError(err)
	}
	return trainers, nil
}

func (s *directoryService) ListTrainers(ctx context.Context, principal domain.Principal) ([]domain.Trainer, error) {
	if err := requireRole(principal, ManagerOnly); err != nil {
		return nil, err
	}
	trainers, err := s.trainers.List(ctx)
	if err != nil {
		return nil, storeError(err)
	}
	return trainers, nil
}

func (s *directoryService) CreateTrainer(ctx context.Context, principal domain.Principal, account NewAccount) (*domain.Trainer, error) {
	if err := requireRole(principal, ManagerOnly); err != nil {
		return nil, err
	}
	account.Role = domain.RoleTrainer
	created, err := s.accounts.Provision(ctx, account)
	if err != nil {
		return nil, err
	}
	trainer, err := s.trainers.GetByID(ctx, created.ID)
	if err != nil {
		return nil, storeError(err)
	}
	return trainer, nil
}

func (s *directoryService) UpdateTrainer(ctx context.Context, principal domain.Principal, trainerID primitive.ObjectID, patch TrainerPatch) (*domain.Trainer, error) {
	if err := requireRole(principal, ManagerOnly); err != nil {
		return nil, err
	}
	trainer, err := s.trainers.GetByID(ctx, trainerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrTrainerNotFound
		}
		return nil, storeError(err)
	}

	if patch.Name != nil {
		trainer.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Email != nil {
		trainer.Email = strings.TrimSpace(*patch.Email)
	}
	if patch.Rating != nil {
		if *patch.Rating < 0 {
			return nil, invalidInput("rating cannot be negative")
		}
		trainer.Rating = *patch.Rating
	}
	if patch.MaxVisitors != nil {
		if *patch.MaxVisitors < 0 {
			return nil, invalidInput("maxVisitors cannot be negative")
		}
		trainer.MaxVisitors = *patch.MaxVisitors
	}

	if err := s.trainers.Update(ctx, trainer); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrTrainerNotFound
		}
		return nil, storeError(err)
	}
	return trainer, nil
}

// DeleteTrainer refuses while the trainer still owns sessions, so no session loses its owner.
func (s *directoryService) DeleteTrainer(ctx context.Context, principal domain.Principal, trainerID primitive.ObjectID) error {
	if err := requireRole(principal, ManagerOnly); err != nil {
		return err
	}
	owned, err := s.sessions.CountByTrainer(ctx, trainerID)
	if err != nil {
		return storeError(err)
	}
	if owned > 0 {
		return ErrConflict
	}
	if err := s.trainers.Delete(ctx, trainerID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrTrainerNotFound
		}
		return storeError(err)
	}
	return nil
}

func (s *directoryService) TopVisitors(ctx context.Context, principal domain.Principal, limit int) ([]domain.VisitorRanking, error) {
	if err := requireRole(principal, ManagerOnly); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultTopVisitors
	}
	rankings, err := s.visitors.TopBySessionCount(ctx, limit)
	if err != nil {
		return nil, storeError(err)
	}
	return rankings, nil
}

func (s *directoryService) AllSessionsWithReviews(ctx context.Context, principal domain.Principal) ([]SessionWithReviews, error) {
	if err := requireRole(principal, ManagerOnly); err != nil {
		return nil, err
	}
	sessions, err := s.sessions.List(ctx)
	if err != nil {
		return nil, storeError(err)
	}
	ids := make([]primitive.ObjectID, 0, len(sessions))
	for _, session := range sessions {
		ids = append(ids, session.ID)
	}
	reviews, err := s.reviews.ListBySessionIDs(ctx, ids)
	if err != nil {
		return nil, storeError(err)
	}

	bySession := map[primitive.ObjectID][]domain.Review{}
	for _, review := range reviews {
		bySession[review.SessionID] = append(bySession[review.SessionID], review)
	}
	out := make([]SessionWithReviews, 0, len(sessions))
	for _, session := range sessions {
		// Only linked reviews count; an unlinked one is awaiting compensation.
		docs := []domain.Review{}
		for _, review := range bySession[session.ID] {
			if session.HasReview(review.ID) {
				docs = append(docs, review)
			}
		}
		out = append(out, SessionWithReviews{Session: session, ReviewDocs: docs})
	}
	return out, nil
}
