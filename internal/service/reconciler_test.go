package service

import (
	"context"
	"gymbook/internal/domain"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestReconcilerRepairsQueuedBooking(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	coach := f.trainer("coach")
	ann := f.visitor("ann")
	yoga := f.session(coach, "Morning yoga", 10)

	f.visitors.failAddSession = true
	f.sessions.failRemoveVisitor = true
	_, err := f.roster.SelfBook(ctx, yoga.ID, ann)
	require.ErrorIs(t, err, ErrPartialWrite)
	require.Len(t, f.pending(), 1)
	assert.False(t, f.reloadVisitor(ann.ID).HasSession(yoga.ID))

	// The store recovers.
	f.visitors.failAddSession = false
	f.sessions.failRemoveVisitor = false

	resolved, failed, err := f.reconciler.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, resolved)
	assert.Zero(t, failed)
	assert.Empty(t, f.pending())
	f.requireConsistent(yoga.ID, ann)
	assert.True(t, f.reloadVisitor(ann.ID).HasSession(yoga.ID))
}

func TestReconcilerFollowsRosterForRemovals(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	coach := f.trainer("coach")
	ann := f.visitor("ann")
	yoga := f.session(coach, "Morning yoga", 10)
	_, err := f.roster.SelfBook(ctx, yoga.ID, ann)
	require.NoError(t, err)

	f.visitors.failRemoveSession = true
	f.sessions.failAddVisitor = true
	_, err = f.roster.SelfUnbook(ctx, yoga.ID, ann)
	require.ErrorIs(t, err, ErrPartialWrite)
	f.visitors.failRemoveSession = false
	f.sessions.failAddVisitor = false

	resolved, _, err := f.reconciler.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, resolved)
	assert.False(t, f.reloadVisitor(ann.ID).HasSession(yoga.ID))
	f.requireConsistent(yoga.ID, ann)
}

func TestReconcilerDeletesOrphanReview(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	coach := f.trainer("coach")
	ann := f.visitor("ann")
	yoga := f.session(coach, "Morning yoga", 10)

	orphan := &domain.Review{Rating: 2, Comment: "meh", VisitorID: ann.ID, SessionID: yoga.ID, CreatedAt: time.Now().UTC()}
	_, err := f.store.Reviews().Create(ctx, orphan)
	require.NoError(t, err)
	reviewID := orphan.ID
	_, err = f.store.Reconciliations().Create(ctx, &domain.Reconciliation{
		Kind: domain.KindReviewOrphan, SessionID: yoga.ID, VisitorID: ann.ID, ReviewID: &reviewID,
	})
	require.NoError(t, err)

	resolved, failed, err := f.reconciler.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, resolved)
	assert.Zero(t, failed)
	_, err = f.store.Reviews().GetByID(ctx, reviewID)
	assert.Error(t, err)
}

func TestReconcilerLinksReviewToAuthor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	coach := f.trainer("coach")
	ann := f.visitor("ann")
	yoga := f.session(coach, "Morning yoga", 10)

	f.visitors.failAddReview = true
	_, err := f.reviews.SubmitReview(ctx, yoga.ID, ann, 5, "Loved it")
	require.ErrorIs(t, err, ErrPartialWrite)
	f.visitors.failAddReview = false

	resolved, _, err := f.reconciler.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, resolved)

	session := f.reloadSession(yoga.ID)
	require.Len(t, session.Reviews, 1)
	assert.True(t, f.reloadVisitor(ann.ID).HasReview(session.Reviews[0]))
}

func TestReconcilerRecordsFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.store.Reconciliations().Create(ctx, &domain.Reconciliation{
		Kind: domain.KindReviewLink, SessionID: primitive.NewObjectID(), VisitorID: primitive.NewObjectID(),
	})
	require.NoError(t, err)

	resolved, failed, err := f.reconciler.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, resolved)
	assert.Equal(t, 1, failed)

	recs := f.pending()
	require.Len(t, recs, 1)
	assert.Equal(t, 1, recs[0].Attempts)
	assert.Contains(t, recs[0].LastError, "no review id")
}

func TestReconcilerRunStopsOnCancel(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.reconciler.Run(ctx, 10*time.Millisecond)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("reconciler did not stop after cancel")
	}
}

func TestReconcilerFollowsRosterChangedDuringRepair(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	coach := f.trainer("coach")
	ann := f.visitor("ann")
	yoga := f.session(coach, "Morning yoga", 10)

	// A booking whose visitor side is missing and queued.
	_, err := f.store.Sessions().AddVisitor(ctx, yoga.ID, ann.ID)
	require.NoError(t, err)
	_, err = f.store.Reconciliations().Create(ctx, &domain.Reconciliation{
		Kind: domain.KindRosterAdd, SessionID: yoga.ID, VisitorID: ann.ID, Cause: "visitor write failed",
	})
	require.NoError(t, err)

	// The visitor unbooks after the reconciler read the roster and before it writes the visitor.
	f.visitors.onAddSession = func() {
		_, err := f.store.Sessions().RemoveVisitor(ctx, yoga.ID, ann.ID)
		require.NoError(t, err)
	}
	reconciler := NewReconciler(f.sessions, f.store.Trainers(), f.visitors, f.store.Reviews(), f.store.Reconciliations(), discardLogger())

	resolved, failed, err := reconciler.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, resolved)
	assert.Zero(t, failed)
	assert.False(t, f.reloadVisitor(ann.ID).HasSession(yoga.ID))
	f.requireConsistent(yoga.ID, ann)
}
