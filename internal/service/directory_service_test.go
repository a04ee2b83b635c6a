package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"gymbook/internal/domain"
	"gymbook/internal/storage"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestVisitorViews(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	coach := f.trainer("coach")
	other := f.trainer("other")
	ann := f.visitor("ann")
	yoga := f.session(coach, "Morning yoga", 10)
	boxing := f.session(other, "Boxing", 10)
	f.session(other, "Crossfit", 10)

	for _, id := range []primitive.ObjectID{yoga.ID, boxing.ID} {
		_, err := f.roster.SelfBook(ctx, id, ann)
		require.NoError(t, err)
	}

	sessions, err := f.directory.MySessions(ctx, ann)
	require.NoError(t, err)
	assert.Len(t, sessions, 2)

	trainers, err := f.directory.MyTrainers(ctx, ann)
	require.NoError(t, err)
	ids := []primitive.ObjectID{}
	for _, tr := range trainers {
		ids = append(ids, tr.ID)
	}
	assert.ElementsMatch(t, []primitive.ObjectID{coach.ID, other.ID}, ids)

	_, err = f.directory.MySessions(ctx, coach)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestManagerTrainerAdministration(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	boss := f.manager("boss")
	coach := f.trainer("coach")

	_, err := f.directory.ListTrainers(ctx, coach)
	assert.ErrorIs(t, err, ErrForbidden)

	created, err := f.directory.CreateTrainer(ctx, boss, NewAccount{Username: "newbie", Password: "password123", Name: "New Bie", Rating: 4.5})
	require.NoError(t, err)
	assert.Equal(t, "newbie", created.Username)
	assert.Equal(t, 4.5, created.Rating)

	_, err = f.directory.CreateTrainer(ctx, boss, NewAccount{Username: "coach", Password: "password123"})
	assert.ErrorIs(t, err, ErrUsernameTaken)

	trainers, err := f.directory.ListTrainers(ctx, boss)
	require.NoError(t, err)
	assert.Len(t, trainers, 2)

	updated, err := f.directory.UpdateTrainer(ctx, boss, created.ID, TrainerPatch{Name: ptr("Renamed"), MaxVisitors: ptr(12)})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Name)
	assert.Equal(t, 12, updated.MaxVisitors)

	_, err = f.directory.UpdateTrainer(ctx, boss, created.ID, TrainerPatch{Rating: ptr(-1.0)})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.directory.UpdateTrainer(ctx, boss, primitive.NewObjectID(), TrainerPatch{Name: ptr("ghost")})
	assert.ErrorIs(t, err, ErrTrainerNotFound)

	// A trainer who owns sessions cannot be deleted.
	f.session(coach, "Morning yoga", 10)
	err = f.directory.DeleteTrainer(ctx, boss, coach.ID)
	assert.ErrorIs(t, err, ErrConflict)

	require.NoError(t, f.directory.DeleteTrainer(ctx, boss, created.ID))
	err = f.directory.DeleteTrainer(ctx, boss, created.ID)
	assert.ErrorIs(t, err, ErrTrainerNotFound)
}

func TestTopVisitors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	boss := f.manager("boss")
	coach := f.trainer("coach")
	ann := f.visitor("ann")
	bob := f.visitor("bob")
	f.visitor("carl")
	a := f.session(coach, "A", 10)
	b := f.session(coach, "B", 10)

	for _, id := range []primitive.ObjectID{a.ID, b.ID} {
		_, err := f.roster.SelfBook(ctx, id, ann)
		require.NoError(t, err)
	}
	_, err := f.roster.SelfBook(ctx, a.ID, bob)
	require.NoError(t, err)

	top, err := f.directory.TopVisitors(ctx, boss, 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, ann.ID, top[0].ID)
	assert.Equal(t, 2, top[0].SessionCount)
	assert.Equal(t, bob.ID, top[1].ID)

	_, err = f.directory.TopVisitors(ctx, coach, 0)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestAllSessionsWithReviewsSkipsUnlinked(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	boss := f.manager("boss")
	coach := f.trainer("coach")
	ann := f.visitor("ann")
	yoga := f.session(coach, "Morning yoga", 10)

	linked, err := f.reviews.SubmitReview(ctx, yoga.ID, ann, 5, "great")
	require.NoError(t, err)
	// A review stored but never linked to its session.
	_, err = f.store.Reviews().Create(ctx, &domain.Review{Rating: 1, Comment: "stray", VisitorID: ann.ID, SessionID: yoga.ID})
	require.NoError(t, err)

	all, err := f.directory.AllSessionsWithReviews(ctx, boss)
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.Len(t, all[0].ReviewDocs, 1)
	assert.Equal(t, linked.ID, all[0].ReviewDocs[0].ID)
}

func TestExportRoster(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	boss := f.manager("boss")
	coach := f.trainer("coach")
	other := f.trainer("other")
	ann := f.visitor("ann")
	yoga := f.session(coach, "Morning yoga", 10)
	_, err := f.roster.SelfBook(ctx, yoga.ID, ann)
	require.NoError(t, err)

	files := storage.NewMemoryStorage()
	exports := NewExportService(f.sessions, f.visitors, files, discardLogger())

	_, err = exports.ExportRoster(ctx, other, yoga.ID)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = exports.ExportRoster(ctx, boss, primitive.NewObjectID())
	assert.ErrorIs(t, err, ErrSessionNotFound)

	export, err := exports.ExportRoster(ctx, boss, yoga.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, export.Visitors)
	assert.True(t, strings.HasPrefix(export.ObjectKey, "exports/rosters/"+yoga.ID.Hex()+"/"))
	assert.True(t, strings.HasPrefix(export.URL, "mem://"))

	obj, ok := files.Get(export.ObjectKey)
	require.True(t, ok)
	assert.Equal(t, "text/csv", obj.ContentType)
	rows, err := csv.NewReader(bytes.NewReader(obj.Body)).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"visitor_id", "name", "email", "username"}, rows[0])
	assert.Equal(t, ann.ID.Hex(), rows[1][0])
	assert.Equal(t, "ann", rows[1][3])
}

// unsignableStorage stores objects but cannot presign them.
type unsignableStorage struct {
	*storage.MemoryStorage
}

func (unsignableStorage) GeneratePresignedDownloadURL(context.Context, string, time.Duration) (string, error) {
	return "", errInjected
}

func TestExportRosterRemovesUnsignedObject(t *testing.T) {
	f := newFixture(t)
	boss := f.manager("boss")
	coach := f.trainer("coach")
	yoga := f.session(coach, "Morning yoga", 10)

	files := unsignableStorage{storage.NewMemoryStorage()}
	exports := NewExportService(f.sessions, f.visitors, files, discardLogger())

	_, err := exports.ExportRoster(context.Background(), boss, yoga.ID)
	assert.ErrorIs(t, err, ErrStoreUnavailable)

	prefix := "exports/rosters/" + yoga.ID.Hex() + "/"
	assert.Empty(t, files.Keys(prefix))
}
