package service

import (
	"context"
	"errors"
	"gymbook/internal/domain"
	"gymbook/internal/events"
	"gymbook/internal/metrics"
	"gymbook/internal/repository"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Operation names carried by PartialWriteError and the partial-write metric.
const (
	OpBook       = "book"
	OpUnbook     = "unbook"
	OpLinkReview = "link_review"
)

const (
	defaultCompensationTimeout = 5 * time.Second
	defaultMirrorAttempts      = 3
)

var errRosterUnsettled = errors.New("session roster kept changing while mirroring the visitor side")

// Synchronizer keeps Session.visitors and Visitor.sessions (and the review links) in step.
// The session document is always written first and is the source of truth: when the visitor
// side cannot follow, the session write is undone, and if that is impossible too a
// reconciliation record is stored so the Reconciler can bring the visitor side in line.
type Synchronizer struct {
	sessions        repository.SessionRepository
	visitors        repository.VisitorRepository
	reviews         repository.ReviewRepository
	reconciliations repository.ReconciliationRepository
	publisher       events.EventPublisher
	logger          *slog.Logger
	// Compensation runs detached from the request context, bounded by this timeout.
	compensationTimeout time.Duration
	mirrorAttempts      int
}

// NewSynchronizer creates a Synchronizer. A nil publisher or logger falls back to no-op/default.
func NewSynchronizer(
	sessions repository.SessionRepository,
	visitors repository.VisitorRepository,
	reviews repository.ReviewRepository,
	reconciliations repository.ReconciliationRepository,
	publisher events.EventPublisher,
	logger *slog.Logger,
) *Synchronizer {
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Synchronizer{
		sessions:            sessions,
		visitors:            visitors,
		reviews:             reviews,
		reconciliations:     reconciliations,
		publisher:           publisher,
		logger:              logger,
		compensationTimeout: defaultCompensationTimeout,
		mirrorAttempts:      defaultMirrorAttempts,
	}
}

// Book adds visitorID to the session roster and then mirrors the session onto the visitor.
func (s *Synchronizer) Book(ctx context.Context, sessionID, visitorID primitive.ObjectID) (*domain.Session, error) {
	session, err := s.sessions.AddVisitor(ctx, sessionID, visitorID)
	if err != nil {
		// Session side rejected: the visitor side is never touched.
		return nil, mapRosterError(err, ErrSessionNotFound)
	}

	if err := s.visitors.AddSession(ctx, visitorID, sessionID); err != nil {
		perr := &PartialWriteError{Op: OpBook, SessionID: sessionID, VisitorID: visitorID, Cause: err}
		return nil, s.recover(ctx, perr, domain.KindRosterAdd, func(cctx context.Context) error {
			_, undoErr := s.sessions.RemoveVisitor(cctx, sessionID, visitorID)
			if errors.Is(undoErr, repository.ErrNotBooked) {
				return nil
			}
			return undoErr
		})
	}
	s.settle(ctx, OpBook, domain.KindRosterAdd, sessionID, visitorID, true)
	return session, nil
}

// Unbook removes visitorID from the session roster and then from the visitor's sessions.
func (s *Synchronizer) Unbook(ctx context.Context, sessionID, visitorID primitive.ObjectID) (*domain.Session, error) {
	session, err := s.sessions.RemoveVisitor(ctx, sessionID, visitorID)
	if err != nil {
		return nil, mapRosterError(err, ErrSessionNotFound)
	}

	if err := s.visitors.RemoveSession(ctx, visitorID, sessionID); err != nil {
		perr := &PartialWriteError{Op: OpUnbook, SessionID: sessionID, VisitorID: visitorID, Cause: err}
		// Re-adding can lose the freed spot to a concurrent booking; the record then covers it.
		return nil, s.recover(ctx, perr, domain.KindRosterRemove, func(cctx context.Context) error {
			_, undoErr := s.sessions.AddVisitor(cctx, sessionID, visitorID)
			if errors.Is(undoErr, repository.ErrAlreadyBooked) {
				return nil
			}
			return undoErr
		})
	}
	s.settle(ctx, OpUnbook, domain.KindRosterRemove, sessionID, visitorID, false)
	return session, nil
}

// settle re-reads the roster after the visitor-side write. A concurrent book or unbook of the
// same pair may have moved the roster in between; the visitor side is then re-mirrored, and a
// reconciliation record is queued when that does not converge.
func (s *Synchronizer) settle(ctx context.Context, op string, kind domain.ReconciliationKind, sessionID, visitorID primitive.ObjectID, wrote bool) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.compensationTimeout)
	defer cancel()

	member, err := rosterMember(cctx, s.sessions, sessionID, visitorID)
	if err == nil && member == wrote {
		return
	}
	if err == nil {
		err = mirrorMembership(cctx, s.sessions, s.visitors, sessionID, visitorID, s.mirrorAttempts)
	}
	if err == nil {
		s.logger.InfoContext(ctx, "Roster changed during write, visitor side re-mirrored",
			"op", op, "session_id", sessionID.Hex(), "visitor_id", visitorID.Hex())
		return
	}

	rec := &domain.Reconciliation{Kind: kind, SessionID: sessionID, VisitorID: visitorID, Cause: err.Error()}
	queued := s.enqueue(ctx, cctx, rec)
	s.logger.ErrorContext(ctx, "Visitor side may disagree with roster",
		"event", "roster_unsettled", "op", op, "session_id", sessionID.Hex(), "visitor_id", visitorID.Hex(),
		"queued", queued, "error", err)
}

// rosterMember reports whether visitorID is on the roster. A missing session counts as not booked.
func rosterMember(ctx context.Context, sessions repository.SessionRepository, sessionID, visitorID primitive.ObjectID) (bool, error) {
	session, err := sessions.GetByID(ctx, sessionID)
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return session.HasVisitor(visitorID), nil
}

// mirrorMembership makes the visitor list the session iff the roster lists the visitor. The roster
// is re-read after each visitor write and the write repeated while the roster keeps moving.
func mirrorMembership(ctx context.Context, sessions repository.SessionRepository, visitors repository.VisitorRepository, sessionID, visitorID primitive.ObjectID, attempts int) error {
	member, err := rosterMember(ctx, sessions, sessionID, visitorID)
	if err != nil {
		return err
	}
	for i := 0; i < attempts; i++ {
		if member {
			err = visitors.AddSession(ctx, visitorID, sessionID)
		} else {
			err = visitors.RemoveSession(ctx, visitorID, sessionID)
		}
		if errors.Is(err, repository.ErrNotFound) {
			// Visitor gone: nothing to mirror.
			return nil
		}
		if err != nil {
			return err
		}

		after, err := rosterMember(ctx, sessions, sessionID, visitorID)
		if err != nil {
			return err
		}
		if after == member {
			return nil
		}
		member = after
	}
	return errRosterUnsettled
}

// LinkReview attaches a stored review to its session and then to its author.
// When the session is gone the review is deleted and ErrSessionNotFound returned.
func (s *Synchronizer) LinkReview(ctx context.Context, review *domain.Review) error {
	if err := s.sessions.AddReview(ctx, review.SessionID, review.ID); err != nil {
		deleteReview := func(cctx context.Context) error {
			delErr := s.reviews.Delete(cctx, review.ID)
			if errors.Is(delErr, repository.ErrNotFound) {
				return nil
			}
			return delErr
		}
		perr := &PartialWriteError{
			Op: OpLinkReview, SessionID: review.SessionID, VisitorID: review.VisitorID,
			ReviewID: review.ID, Cause: err,
		}
		if errors.Is(err, repository.ErrNotFound) {
			// The session vanished between validation and link. A clean delete makes this a plain miss.
			cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.compensationTimeout)
			delErr := deleteReview(cctx)
			cancel()
			if delErr == nil {
				return ErrSessionNotFound
			}
			perr.Cause = ErrSessionNotFound
			return s.recover(ctx, perr, domain.KindReviewOrphan, nil)
		}
		return s.recover(ctx, perr, domain.KindReviewOrphan, deleteReview)
	}

	if err := s.visitors.AddReview(ctx, review.VisitorID, review.ID); err != nil {
		perr := &PartialWriteError{
			Op: OpLinkReview, SessionID: review.SessionID, VisitorID: review.VisitorID,
			ReviewID: review.ID, Cause: err,
		}
		// The review is already visible on the session; it is kept and only the author link is queued.
		return s.recover(ctx, perr, domain.KindReviewLink, nil)
	}
	return nil
}

// recover runs the compensating write (if any) and, when that is not possible, queues a
// reconciliation record of kind. It always returns perr, filled in with what happened.
func (s *Synchronizer) recover(ctx context.Context, perr *PartialWriteError, kind domain.ReconciliationKind, undo func(context.Context) error) error {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.compensationTimeout)
	defer cancel()

	var undoErr error
	if undo != nil {
		undoErr = undo(cctx)
		perr.RolledBack = undoErr == nil
	}

	if !perr.RolledBack {
		rec := &domain.Reconciliation{
			Kind:      kind,
			SessionID: perr.SessionID,
			VisitorID: perr.VisitorID,
			Cause:     perr.Cause.Error(),
		}
		if !perr.ReviewID.IsZero() {
			reviewID := perr.ReviewID
			rec.ReviewID = &reviewID
		}
		perr.Queued = s.enqueue(ctx, cctx, rec)

		event := events.NewEvent(events.SubjectPartialWrite, perr.SessionID.Hex())
		event.VisitorID = perr.VisitorID.Hex()
		if !perr.ReviewID.IsZero() {
			event.ReviewID = perr.ReviewID.Hex()
		}
		event.Detail = perr.Op
		_ = s.publisher.Publish(cctx, event)
	}

	attrs := []any{
		"event", "partial_write",
		"op", perr.Op,
		"session_id", perr.SessionID.Hex(),
		"visitor_id", perr.VisitorID.Hex(),
		"rolled_back", perr.RolledBack,
		"queued", perr.Queued,
		"error", perr.Cause,
	}
	if undoErr != nil {
		attrs = append(attrs, "compensation_error", undoErr)
	}
	s.logger.ErrorContext(ctx, "Two-sided write left incomplete", attrs...)
	metrics.PartialWrites.WithLabelValues(perr.Op).Inc()

	return perr
}

// enqueue stores rec with the detached cctx and reports whether it was stored.
func (s *Synchronizer) enqueue(ctx, cctx context.Context, rec *domain.Reconciliation) bool {
	if _, err := s.reconciliations.Create(cctx, rec); err != nil {
		s.logger.ErrorContext(ctx, "Failed to queue reconciliation",
			"event", "reconciliation_lost", "kind", rec.Kind, "session_id", rec.SessionID.Hex(), "error", err)
		return false
	}
	return true
}
