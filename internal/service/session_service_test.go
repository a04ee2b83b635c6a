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

func ptr[T any](v T) *T { return &v }

func TestCreateSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	coach := f.trainer("coach")
	date := time.Date(2026, 12, 1, 9, 0, 0, 0, time.UTC)

	session, err := f.catalog.CreateSession(ctx, coach, NewSession{Title: " Pilates ", Date: date})
	require.NoError(t, err)
	assert.Equal(t, "Pilates", session.Title)
	assert.Equal(t, domain.DefaultMaxVisitors, session.MaxVisitors)
	assert.Equal(t, coach.ID, session.TrainerID)
	assert.Empty(t, session.Visitors)

	trainer, err := f.store.Trainers().GetByID(ctx, coach.ID)
	require.NoError(t, err)
	assert.Contains(t, trainer.Sessions, session.ID)

	_, err = f.catalog.CreateSession(ctx, coach, NewSession{Title: "Pilates", Date: date})
	assert.ErrorIs(t, err, ErrDuplicateSession)
}

func TestCreateSessionValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	coach := f.trainer("coach")
	boss := f.manager("boss")
	ann := f.visitor("ann")
	date := time.Date(2026, 12, 1, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		principal domain.Principal
		input     NewSession
		wantErr   error
	}{
		{name: "visitor", principal: ann, input: NewSession{Title: "x", Date: date}, wantErr: ErrForbidden},
		{name: "no title", principal: coach, input: NewSession{Date: date}, wantErr: ErrInvalidInput},
		{name: "no date", principal: coach, input: NewSession{Title: "x"}, wantErr: ErrInvalidInput},
		{name: "zero capacity", principal: coach, input: NewSession{Title: "x", Date: date, MaxVisitors: ptr(0)}, wantErr: ErrInvalidInput},
		{name: "manager without trainer", principal: boss, input: NewSession{Title: "x", Date: date}, wantErr: ErrInvalidInput},
		{name: "manager with unknown trainer", principal: boss, input: NewSession{Title: "x", Date: date, TrainerID: primitive.NewObjectID()}, wantErr: ErrTrainerNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.catalog.CreateSession(ctx, tt.principal, tt.input)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	session, err := f.catalog.CreateSession(ctx, boss, NewSession{Title: "Boxing", Date: date, TrainerID: coach.ID, MaxVisitors: ptr(3)})
	require.NoError(t, err)
	assert.Equal(t, coach.ID, session.TrainerID)
	assert.Equal(t, 3, session.MaxVisitors)
}

func TestUpdateSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.trainer("owner")
	other := f.trainer("other")
	ann := f.visitor("ann")
	bob := f.visitor("bob")
	yoga := f.session(owner, "Morning yoga", 10)
	for _, v := range []domain.Principal{ann, bob} {
		_, err := f.roster.SelfBook(ctx, yoga.ID, v)
		require.NoError(t, err)
	}

	_, err := f.catalog.UpdateSession(ctx, other, yoga.ID, domain.SessionUpdate{Title: ptr("Hijacked")})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.catalog.UpdateSession(ctx, owner, yoga.ID, domain.SessionUpdate{})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.catalog.UpdateSession(ctx, owner, yoga.ID, domain.SessionUpdate{MaxVisitors: ptr(1)})
	assert.ErrorIs(t, err, ErrInvalidInput)

	updated, err := f.catalog.UpdateSession(ctx, owner, yoga.ID, domain.SessionUpdate{Title: ptr("Evening yoga"), MaxVisitors: ptr(2)})
	require.NoError(t, err)
	assert.Equal(t, "Evening yoga", updated.Title)
	assert.Equal(t, 2, updated.MaxVisitors)
	assert.ElementsMatch(t, []primitive.ObjectID{ann.ID, bob.ID}, updated.Visitors)

	// Now full.
	carl := f.visitor("carl")
	_, err = f.roster.SelfBook(ctx, yoga.ID, carl)
	assert.ErrorIs(t, err, ErrCapacityExceeded)
}

func TestTrainerViews(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.trainer("owner")
	other := f.trainer("other")
	ann := f.visitor("ann")
	yoga := f.session(owner, "Morning yoga", 10)
	f.session(other, "Crossfit", 10)

	_, err := f.roster.SelfBook(ctx, yoga.ID, ann)
	require.NoError(t, err)
	review, err := f.reviews.SubmitReview(ctx, yoga.ID, ann, 4, "Good")
	require.NoError(t, err)

	mine, err := f.catalog.ListMySessions(ctx, owner)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, yoga.ID, mine[0].ID)

	all, err := f.catalog.ListAllSessions(ctx, owner)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	visitors, err := f.catalog.ListTrainerVisitors(ctx, owner)
	require.NoError(t, err)
	require.Len(t, visitors, 1)
	assert.Equal(t, ann.ID, visitors[0].ID)

	reviews, err := f.catalog.ListTrainerReviews(ctx, owner)
	require.NoError(t, err)
	require.Len(t, reviews, 1)
	assert.Equal(t, review.ID, reviews[0].ID)

	otherReviews, err := f.catalog.ListTrainerReviews(ctx, other)
	require.NoError(t, err)
	assert.Empty(t, otherReviews)

	_, err = f.catalog.GetSession(ctx, ann, primitive.NewObjectID())
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestCreateSessionQueuesTrainerLinkRepair(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	coach := f.trainer("coach")
	f.trainers.failAddSession = true

	session, err := f.catalog.CreateSession(ctx, coach, NewSession{Title: "Spin", Date: time.Date(2026, 12, 3, 18, 0, 0, 0, time.UTC)})
	require.NoError(t, err)

	pending := f.pending()
	require.Len(t, pending, 1)
	assert.Equal(t, domain.KindTrainerLink, pending[0].Kind)
	assert.Equal(t, session.ID, pending[0].SessionID)

	trainer, err := f.store.Trainers().GetByID(ctx, coach.ID)
	require.NoError(t, err)
	assert.NotContains(t, trainer.Sessions, session.ID)

	f.trainers.failAddSession = false
	resolved, failed, err := f.reconciler.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, resolved)
	assert.Zero(t, failed)
	assert.Empty(t, f.pending())

	trainer, err = f.store.Trainers().GetByID(ctx, coach.ID)
	require.NoError(t, err)
	assert.Contains(t, trainer.Sessions, session.ID)

	mine, err := f.catalog.ListMySessions(ctx, coach)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, session.ID, mine[0].ID)
}
