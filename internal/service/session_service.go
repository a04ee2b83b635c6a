package service

import (
	"context"
	"errors"
	"gymbook/internal/domain"
	"gymbook/internal/repository"
	"log/slog"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// NewSession is the input for CreateSession.
type NewSession struct {
	Title       string
	Description string
	Date        time.Time
	MaxVisitors *int
	// TrainerID names the owner when a manager creates a session. Trainers always own their own.
	TrainerID primitive.ObjectID
}

// SessionService is the session catalog: creation, listing and owner edits.
type SessionService interface {
	CreateSession(ctx context.Context, principal domain.Principal, input NewSession) (*domain.Session, error)
	ListAllSessions(ctx context.Context, principal domain.Principal) ([]domain.Session, error)
	ListMySessions(ctx context.Context, principal domain.Principal) ([]domain.Session, error)
	GetSession(ctx context.Context, principal domain.Principal, sessionID primitive.ObjectID) (*domain.Session, error)
	UpdateSession(ctx context.Context, principal domain.Principal, sessionID primitive.ObjectID, update domain.SessionUpdate) (*domain.Session, error)
	ListTrainerVisitors(ctx context.Context, principal domain.Principal) ([]domain.Visitor, error)
	ListTrainerReviews(ctx context.Context, principal domain.Principal) ([]domain.Review, error)
}

type sessionService struct {
	sessions           repository.SessionRepository
	trainers           repository.TrainerRepository
	visitors           repository.VisitorRepository
	reviews            repository.ReviewRepository
	reconciliations    repository.ReconciliationRepository
	defaultMaxVisitors int
	logger             *slog.Logger
}

// NewSessionService creates a new SessionService.
func NewSessionService(
	sessions repository.SessionRepository,
	trainers repository.TrainerRepository,
	visitors repository.VisitorRepository,
	reviews repository.ReviewRepository,
	reconciliations repository.ReconciliationRepository,
	defaultMaxVisitors int,
	logger *slog.Logger,
) SessionService {
	if defaultMaxVisitors <= 0 {
		defaultMaxVisitors = domain.DefaultMaxVisitors
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &sessionService{
		sessions:           sessions,
		trainers:           trainers,
		visitors:           visitors,
		reviews:            reviews,
		reconciliations:    reconciliations,
		defaultMaxVisitors: defaultMaxVisitors,
		logger:             logger,
	}
}

func (s *sessionService) CreateSession(ctx context.Context, principal domain.Principal, input NewSession) (*domain.Session, error) {
	if err := requireRole(principal, TrainerOrManager); err != nil {
		return nil, err
	}

	// 1. Validate input
	input.Title = strings.TrimSpace(input.Title)
	if input.Title == "" {
		return nil, invalidInput("title is required")
	}
	if input.Date.IsZero() {
		return nil, invalidInput("date is required")
	}
	maxVisitors := s.defaultMaxVisitors
	if input.MaxVisitors != nil {
		maxVisitors = *input.MaxVisitors
	}
	if maxVisitors < 1 {
		return nil, invalidInput("maxVisitors must be at least 1")
	}

	// 2. Resolve the owner
	ownerID := principal.ID
	if principal.IsManager() {
		if input.TrainerID.IsZero() {
			return nil, invalidInput("trainerId is required when a manager creates a session")
		}
		ownerID = input.TrainerID
	}
	if _, err := s.trainers.GetByID(ctx, ownerID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrTrainerNotFound
		}
		return nil, storeError(err)
	}

	// 3. Reject duplicates
	date := input.Date.UTC()
	if _, err := s.sessions.FindDuplicate(ctx, ownerID, input.Title, input.Description, date); err == nil {
		return nil, ErrDuplicateSession
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, storeError(err)
	}

	session := &domain.Session{
		Title:       input.Title,
		Description: input.Description,
		Date:        date,
		MaxVisitors: maxVisitors,
		TrainerID:   ownerID,
	}
	if _, err := s.sessions.Create(ctx, session); err != nil {
		return nil, storeError(err)
	}

	// The session's trainer field is authoritative; the reconciler repairs Trainer.sessions from it.
	if err := s.trainers.AddSession(ctx, ownerID, session.ID); err != nil {
		s.queueTrainerLink(ctx, session, err)
	}
	s.logger.InfoContext(ctx, "Session created", "session_id", session.ID.Hex(), "trainer_id", ownerID.Hex())
	return session, nil
}

func (s *sessionService) queueTrainerLink(ctx context.Context, session *domain.Session, cause error) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), defaultCompensationTimeout)
	defer cancel()
	rec := &domain.Reconciliation{
		Kind:      domain.KindTrainerLink,
		SessionID: session.ID,
		Cause:     cause.Error(),
	}
	if _, err := s.reconciliations.Create(cctx, rec); err != nil {
		s.logger.ErrorContext(ctx, "Failed to queue trainer link",
			"event", "reconciliation_lost", "session_id", session.ID.Hex(), "trainer_id", session.TrainerID.Hex(), "error", err)
		return
	}
	s.logger.WarnContext(ctx, "Session not linked to trainer, reconciliation queued",
		"session_id", session.ID.Hex(), "trainer_id", session.TrainerID.Hex(), "error", cause)
}

func (s *sessionService) ListAllSessions(ctx context.Context, principal domain.Principal) ([]domain.Session, error) {
	if err := requireRole(principal, TrainerOrManager); err != nil {
		return nil, err
	}
	sessions, err := s.sessions.List(ctx)
	if err != nil {
		return nil, storeError(err)
	}
	return sessions, nil
}

// ListMySessions returns the trainer's own sessions; managers see every session.
func (s *sessionService) ListMySessions(ctx context.Context, principal domain.Principal) ([]domain.Session, error) {
	if err := requireRole(principal, TrainerOrManager); err != nil {
		return nil, err
	}
	sessions, err := s.ownedSessions(ctx, principal)
	if err != nil {
		return nil, storeError(err)
	}
	return sessions, nil
}

func (s *sessionService) GetSession(ctx context.Context, principal domain.Principal, sessionID primitive.ObjectID) (*domain.Session, error) {
	if err := requireRole(principal, AnyRole); err != nil {
		return nil, err
	}
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, storeError(err)
	}
	return session, nil
}

func (s *sessionService) UpdateSession(ctx context.Context, principal domain.Principal, sessionID primitive.ObjectID, update domain.SessionUpdate) (*domain.Session, error) {
	if err := requireRole(principal, TrainerOrManager); err != nil {
		return nil, err
	}
	if update.IsEmpty() {
		return nil, invalidInput("nothing to update")
	}
	if update.Title != nil {
		title := strings.TrimSpace(*update.Title)
		if title == "" {
			return nil, invalidInput("title cannot be empty")
		}
		update.Title = &title
	}
	if update.Date != nil && update.Date.IsZero() {
		return nil, invalidInput("date cannot be empty")
	}
	if update.MaxVisitors != nil && *update.MaxVisitors < 1 {
		return nil, invalidInput("maxVisitors must be at least 1")
	}

	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, storeError(err)
	}
	if err := requireManage(principal, session); err != nil {
		return nil, err
	}

	updated, err := s.sessions.UpdateDetails(ctx, sessionID, update)
	if err != nil {
		return nil, mapRosterError(err, ErrSessionNotFound)
	}
	return updated, nil
}

// ListTrainerVisitors returns the distinct visitors booked into the principal's sessions.
func (s *sessionService) ListTrainerVisitors(ctx context.Context, principal domain.Principal) ([]domain.Visitor, error) {
	if err := requireRole(principal, TrainerOrManager); err != nil {
		return nil, err
	}
	sessions, err := s.ownedSessions(ctx, principal)
	if err != nil {
		return nil, storeError(err)
	}

	seen := map[primitive.ObjectID]struct{}{}
	ids := []primitive.ObjectID{}
	for _, session := range sessions {
		for _, id := range session.Visitors {
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				ids = append(ids, id)
			}
		}
	}
	visitors, err := s.visitors.GetByIDs(ctx, ids)
	if err != nil {
		return nil, storeError(err)
	}
	return visitors, nil
}

// ListTrainerReviews returns every review left on the principal's sessions.
func (s *sessionService) ListTrainerReviews(ctx context.Context, principal domain.Principal) ([]domain.Review, error) {
	if err := requireRole(principal, TrainerOrManager); err != nil {
		return nil, err
	}
	sessions, err := s.ownedSessions(ctx, principal)
	if err != nil {
		return nil, storeError(err)
	}
	ids := []primitive.ObjectID{}
	for _, session := range sessions {
		ids = append(ids, session.Reviews...)
	}
	reviews, err := s.reviews.GetByIDs(ctx, ids)
	if err != nil {
		return nil, storeError(err)
	}
	return reviews, nil
}

func (s *sessionService) ownedSessions(ctx context.Context, principal domain.Principal) ([]domain.Session, error) {
	if principal.IsManager() {
		return s.sessions.List(ctx)
	}
	return s.sessions.ListByTrainer(ctx, principal.ID)
}
