package service

import (
	"context"
	"errors"
	"gymbook/internal/domain"
	"gymbook/internal/events"
	"gymbook/internal/repository"
	"log/slog"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type ReviewService interface {
	// SubmitReview stores a rating for a session and links it to the session and its author.
	SubmitReview(ctx context.Context, sessionID primitive.ObjectID, principal domain.Principal, rating int, comment string) (*domain.Review, error)
}

// ReviewPolicy tunes who may review.
type ReviewPolicy struct {
	// RequireBooking rejects reviews from visitors not on the session roster.
	RequireBooking bool
}

type reviewService struct {
	sessions  repository.SessionRepository
	visitors  repository.VisitorRepository
	reviews   repository.ReviewRepository
	sync      *Synchronizer
	publisher events.EventPublisher
	logger    *slog.Logger
	policy    ReviewPolicy
}

// NewReviewService creates a new ReviewService.
func NewReviewService(
	sessions repository.SessionRepository,
	visitors repository.VisitorRepository,
	reviews repository.ReviewRepository,
	sync *Synchronizer,
	publisher events.EventPublisher,
	logger *slog.Logger,
	policy ReviewPolicy,
) ReviewService {
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &reviewService{
		sessions:  sessions,
		visitors:  visitors,
		reviews:   reviews,
		sync:      sync,
		publisher: publisher,
		logger:    logger,
		policy:    policy,
	}
}

func (s *reviewService) SubmitReview(ctx context.Context, sessionID primitive.ObjectID, principal domain.Principal, rating int, comment string) (review *domain.Review, err error) {
	ctx, span := tracer.Start(ctx, "review.SubmitReview", trace.WithAttributes(
		attribute.String("session.id", sessionID.Hex()),
		attribute.Int("review.rating", rating),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	// 1. Role and input validation
	if err = requireRole(principal, VisitorOnly); err != nil {
		return nil, err
	}
	if rating < domain.MinRating || rating > domain.MaxRating {
		return nil, invalidInput("rating must be between %d and %d", domain.MinRating, domain.MaxRating)
	}
	comment = strings.TrimSpace(comment)
	if comment == "" {
		return nil, invalidInput("comment is required")
	}

	// 2. Session and author must exist
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, storeError(err)
	}
	if _, err = s.visitors.GetByID(ctx, principal.ID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrVisitorNotFound
		}
		return nil, storeError(err)
	}
	if s.policy.RequireBooking && !session.HasVisitor(principal.ID) {
		return nil, ErrForbidden
	}

	// 3. Store, then link
	review = &domain.Review{
		Rating:    rating,
		Comment:   comment,
		VisitorID: principal.ID,
		SessionID: sessionID,
		CreatedAt: time.Now().UTC(),
	}
	if _, err = s.reviews.Create(ctx, review); err != nil {
		return nil, storeError(err)
	}
	if err = s.sync.LinkReview(ctx, review); err != nil {
		return nil, err
	}

	event := events.NewEvent(events.SubjectReviewSubmitted, sessionID.Hex())
	event.VisitorID = principal.ID.Hex()
	event.ReviewID = review.ID.Hex()
	if pubErr := s.publisher.Publish(ctx, event); pubErr != nil {
		s.logger.WarnContext(ctx, "Failed to publish review event", "error", pubErr)
	}
	s.logger.InfoContext(ctx, "Review submitted", "session_id", sessionID.Hex(), "review_id", review.ID.Hex(), "rating", rating)
	return review, nil
}
