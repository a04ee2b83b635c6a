package service

import (
	"context"
	"errors"
	"gymbook/internal/domain"
	"gymbook/internal/events"
	"gymbook/internal/metrics"
	"gymbook/internal/repository"
	"log/slog"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("gymbook/internal/service")

// Roster operation labels.
const (
	opAddVisitor    = "add_visitor"
	opRemoveVisitor = "remove_visitor"
	opSelfBook      = "self_book"
	opSelfUnbook    = "self_unbook"
)

// --- Service Interface ---
type RosterService interface {
	// AddVisitor books visitorID into a session on behalf of its owner (or a manager).
	AddVisitor(ctx context.Context, sessionID, visitorID primitive.ObjectID, principal domain.Principal) (*domain.Session, error)
	RemoveVisitor(ctx context.Context, sessionID, visitorID primitive.ObjectID, principal domain.Principal) (*domain.Session, error)
	// SelfBook and SelfUnbook act on the calling visitor.
	SelfBook(ctx context.Context, sessionID primitive.ObjectID, principal domain.Principal) (*domain.Session, error)
	SelfUnbook(ctx context.Context, sessionID primitive.ObjectID, principal domain.Principal) (*domain.Session, error)
}

// --- Service Implementation ---

type rosterService struct {
	sessions  repository.SessionRepository
	visitors  repository.VisitorRepository
	sync      *Synchronizer
	publisher events.EventPublisher
	logger    *slog.Logger
}

// NewRosterService creates a new RosterService.
func NewRosterService(
	sessions repository.SessionRepository,
	visitors repository.VisitorRepository,
	sync *Synchronizer,
	publisher events.EventPublisher,
	logger *slog.Logger,
) RosterService {
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &rosterService{
		sessions:  sessions,
		visitors:  visitors,
		sync:      sync,
		publisher: publisher,
		logger:    logger,
	}
}

func (s *rosterService) AddVisitor(ctx context.Context, sessionID, visitorID primitive.ObjectID, principal domain.Principal) (session *domain.Session, err error) {
	ctx, span := s.start(ctx, opAddVisitor, sessionID, visitorID, principal)
	defer func() { s.finish(ctx, span, opAddVisitor, sessionID, visitorID, principal, err) }()

	if err = s.authorizeOwner(ctx, sessionID, visitorID, principal); err != nil {
		return nil, err
	}
	return s.sync.Book(ctx, sessionID, visitorID)
}

func (s *rosterService) RemoveVisitor(ctx context.Context, sessionID, visitorID primitive.ObjectID, principal domain.Principal) (session *domain.Session, err error) {
	ctx, span := s.start(ctx, opRemoveVisitor, sessionID, visitorID, principal)
	defer func() { s.finish(ctx, span, opRemoveVisitor, sessionID, visitorID, principal, err) }()

	if err = s.authorizeOwner(ctx, sessionID, visitorID, principal); err != nil {
		return nil, err
	}
	return s.sync.Unbook(ctx, sessionID, visitorID)
}

func (s *rosterService) SelfBook(ctx context.Context, sessionID primitive.ObjectID, principal domain.Principal) (session *domain.Session, err error) {
	ctx, span := s.start(ctx, opSelfBook, sessionID, principal.ID, principal)
	defer func() { s.finish(ctx, span, opSelfBook, sessionID, principal.ID, principal, err) }()

	if err = s.authorizeSelf(ctx, principal); err != nil {
		return nil, err
	}
	return s.sync.Book(ctx, sessionID, principal.ID)
}

func (s *rosterService) SelfUnbook(ctx context.Context, sessionID primitive.ObjectID, principal domain.Principal) (session *domain.Session, err error) {
	ctx, span := s.start(ctx, opSelfUnbook, sessionID, principal.ID, principal)
	defer func() { s.finish(ctx, span, opSelfUnbook, sessionID, principal.ID, principal, err) }()

	if err = s.authorizeSelf(ctx, principal); err != nil {
		return nil, err
	}
	return s.sync.Unbook(ctx, sessionID, principal.ID)
}

// authorizeOwner checks, in order: role, session existence, ownership, visitor existence.
func (s *rosterService) authorizeOwner(ctx context.Context, sessionID, visitorID primitive.ObjectID, principal domain.Principal) error {
	if err := requireRole(principal, TrainerOrManager); err != nil {
		return err
	}

	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrSessionNotFound
		}
		return storeError(err)
	}
	if err := requireManage(principal, session); err != nil {
		return err
	}

	if _, err := s.visitors.GetByID(ctx, visitorID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrVisitorNotFound
		}
		return storeError(err)
	}
	return nil
}

// authorizeSelf requires a visitor principal that still maps to a stored visitor.
func (s *rosterService) authorizeSelf(ctx context.Context, principal domain.Principal) error {
	if err := requireRole(principal, VisitorOnly); err != nil {
		return err
	}
	if _, err := s.visitors.GetByID(ctx, principal.ID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrVisitorNotFound
		}
		return storeError(err)
	}
	return nil
}

func (s *rosterService) start(ctx context.Context, op string, sessionID, visitorID primitive.ObjectID, principal domain.Principal) (context.Context, trace.Span) {
	return tracer.Start(ctx, "roster."+op, trace.WithAttributes(
		attribute.String("session.id", sessionID.Hex()),
		attribute.String("visitor.id", visitorID.Hex()),
		attribute.String("principal.role", string(principal.Role)),
	))
}

// finish records the outcome on the span and metrics and publishes the roster event on success.
func (s *rosterService) finish(ctx context.Context, span trace.Span, op string, sessionID, visitorID primitive.ObjectID, principal domain.Principal, err error) {
	defer span.End()
	metrics.RosterOperations.WithLabelValues(op, outcomeOf(err)).Inc()

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if outcomeOf(err) == metrics.OutcomeRejected {
			s.logger.InfoContext(ctx, "Roster change rejected", "op", op, "session_id", sessionID.Hex(), "visitor_id", visitorID.Hex(), "reason", err.Error())
		}
		return
	}

	subject := events.SubjectSessionBooked
	if op == opRemoveVisitor || op == opSelfUnbook {
		subject = events.SubjectSessionUnbooked
	}
	event := events.NewEvent(subject, sessionID.Hex())
	event.VisitorID = visitorID.Hex()
	event.ActorID = principal.ID.Hex()
	if pubErr := s.publisher.Publish(ctx, event); pubErr != nil {
		s.logger.WarnContext(ctx, "Failed to publish roster event", "subject", subject, "error", pubErr)
	}
	s.logger.InfoContext(ctx, "Roster updated", "op", op, "session_id", sessionID.Hex(), "visitor_id", visitorID.Hex())
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case errors.Is(err, ErrPartialWrite), errors.Is(err, ErrStoreUnavailable):
		return metrics.OutcomeError
	default:
		return metrics.OutcomeRejected
	}
}
