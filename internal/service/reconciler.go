package service

import (
	"context"
	"errors"
	"fmt"
	"gymbook/internal/domain"
	"gymbook/internal/metrics"
	"gymbook/internal/repository"
	"log/slog"
	"time"
)

const defaultReconcileBatch = 100

// Reconciler drains pending reconciliation records. For every record it makes the visitor or trainer side
// agree with the session document, which is treated as the source of truth.
type Reconciler struct {
	sessions        repository.SessionRepository
	trainers        repository.TrainerRepository
	visitors        repository.VisitorRepository
	reviews         repository.ReviewRepository
	reconciliations repository.ReconciliationRepository
	logger          *slog.Logger
	batch           int
}

// NewReconciler creates a Reconciler.
func NewReconciler(
	sessions repository.SessionRepository,
	trainers repository.TrainerRepository,
	visitors repository.VisitorRepository,
	reviews repository.ReviewRepository,
	reconciliations repository.ReconciliationRepository,
	logger *slog.Logger,
) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		sessions:        sessions,
		trainers:        trainers,
		visitors:        visitors,
		reviews:         reviews,
		reconciliations: reconciliations,
		logger:          logger,
		batch:           defaultReconcileBatch,
	}
}

// RunOnce processes one batch of pending records.
func (r *Reconciler) RunOnce(ctx context.Context) (resolved, failed int, err error) {
	pending, err := r.reconciliations.ListPending(ctx, r.batch)
	if err != nil {
		return 0, 0, storeError(err)
	}

	for _, rec := range pending {
		if ctx.Err() != nil {
			return resolved, failed, ctx.Err()
		}
		if applyErr := r.apply(ctx, rec); applyErr != nil {
			failed++
			metrics.Reconciliations.WithLabelValues("failed").Inc()
			r.logger.WarnContext(ctx, "Reconciliation failed", "id", rec.ID.Hex(), "kind", rec.Kind, "attempts", rec.Attempts+1, "error", applyErr)
			if recErr := r.reconciliations.RecordFailure(ctx, rec.ID, applyErr.Error()); recErr != nil {
				r.logger.ErrorContext(ctx, "Failed to record reconciliation failure", "id", rec.ID.Hex(), "error", recErr)
			}
			continue
		}
		if markErr := r.reconciliations.MarkResolved(ctx, rec.ID); markErr != nil {
			failed++
			r.logger.ErrorContext(ctx, "Failed to mark reconciliation resolved", "id", rec.ID.Hex(), "error", markErr)
			continue
		}
		resolved++
		metrics.Reconciliations.WithLabelValues("resolved").Inc()
		r.logger.InfoContext(ctx, "Reconciliation resolved", "id", rec.ID.Hex(), "kind", rec.Kind, "session_id", rec.SessionID.Hex())
	}
	return resolved, failed, nil
}

// Run calls RunOnce every interval until ctx is cancelled.
func (r *Reconciler) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			resolved, failed, err := r.RunOnce(ctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				r.logger.ErrorContext(ctx, "Reconciliation pass failed", "error", err)
				continue
			}
			if resolved+failed > 0 {
				r.logger.InfoContext(ctx, "Reconciliation pass finished", "resolved", resolved, "failed", failed)
			}
		}
	}
}

func (r *Reconciler) apply(ctx context.Context, rec domain.Reconciliation) error {
	if rec.Kind == domain.KindRosterAdd || rec.Kind == domain.KindRosterRemove {
		// Both kinds converge to the same state: the visitor lists the session iff the roster lists the visitor.
		return mirrorMembership(ctx, r.sessions, r.visitors, rec.SessionID, rec.VisitorID, defaultMirrorAttempts)
	}

	session, err := r.sessions.GetByID(ctx, rec.SessionID)
	sessionGone := errors.Is(err, repository.ErrNotFound)
	if err != nil && !sessionGone {
		return err
	}

	switch rec.Kind {
	case domain.KindTrainerLink:
		if sessionGone {
			return nil
		}
		err = r.trainers.AddSession(ctx, session.TrainerID, session.ID)
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return err

	case domain.KindReviewLink:
		if rec.ReviewID == nil {
			return fmt.Errorf("reconciliation %s has no review id", rec.ID.Hex())
		}
		if _, err := r.reviews.GetByID(ctx, *rec.ReviewID); errors.Is(err, repository.ErrNotFound) {
			return nil
		} else if err != nil {
			return err
		}
		err = r.visitors.AddReview(ctx, rec.VisitorID, *rec.ReviewID)
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return err

	case domain.KindReviewOrphan:
		if rec.ReviewID == nil {
			return fmt.Errorf("reconciliation %s has no review id", rec.ID.Hex())
		}
		if !sessionGone && session.HasReview(*rec.ReviewID) {
			return nil
		}
		err = r.reviews.Delete(ctx, *rec.ReviewID)
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return err
	}
	return fmt.Errorf("unknown reconciliation kind %q", rec.Kind)
}
