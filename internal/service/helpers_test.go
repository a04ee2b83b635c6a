package service

import (
	"context"
	"errors"
	"gymbook/internal/domain"
	"gymbook/internal/events"
	"gymbook/internal/repository"
	"gymbook/internal/repository/memory"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var errInjected = errors.New("injected store failure")

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// recordingPublisher keeps every published event.
type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) subjects() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.EventType)
	}
	return out
}

// flakyVisitors fails the visitor-side writes that are switched on.
type flakyVisitors struct {
	repository.VisitorRepository
	failAddSession    bool
	failRemoveSession bool
	failAddReview     bool
	// onAddSession runs once, before the next AddSession reaches the store.
	onAddSession func()
}

func (f *flakyVisitors) AddSession(ctx context.Context, visitorID, sessionID primitive.ObjectID) error {
	if hook := f.onAddSession; hook != nil {
		f.onAddSession = nil
		hook()
	}
	if f.failAddSession {
		return errInjected
	}
	return f.VisitorRepository.AddSession(ctx, visitorID, sessionID)
}

func (f *flakyVisitors) RemoveSession(ctx context.Context, visitorID, sessionID primitive.ObjectID) error {
	if f.failRemoveSession {
		return errInjected
	}
	return f.VisitorRepository.RemoveSession(ctx, visitorID, sessionID)
}

func (f *flakyVisitors) AddReview(ctx context.Context, visitorID, reviewID primitive.ObjectID) error {
	if f.failAddReview {
		return errInjected
	}
	return f.VisitorRepository.AddReview(ctx, visitorID, reviewID)
}

// flakySessions fails the session-side writes used as compensation.
type flakySessions struct {
	repository.SessionRepository
	failRemoveVisitor bool
	failAddVisitor    bool
	failAddReview     bool
}

func (f *flakySessions) RemoveVisitor(ctx context.Context, sessionID, visitorID primitive.ObjectID) (*domain.Session, error) {
	if f.failRemoveVisitor {
		return nil, errInjected
	}
	return f.SessionRepository.RemoveVisitor(ctx, sessionID, visitorID)
}

func (f *flakySessions) AddVisitor(ctx context.Context, sessionID, visitorID primitive.ObjectID) (*domain.Session, error) {
	if f.failAddVisitor {
		return nil, errInjected
	}
	return f.SessionRepository.AddVisitor(ctx, sessionID, visitorID)
}

func (f *flakySessions) AddReview(ctx context.Context, sessionID, reviewID primitive.ObjectID) error {
	if f.failAddReview {
		return errInjected
	}
	return f.SessionRepository.AddReview(ctx, sessionID, reviewID)
}

// flakyTrainers fails Trainer.sessions writes when switched on.
type flakyTrainers struct {
	repository.TrainerRepository
	failAddSession bool
}

func (f *flakyTrainers) AddSession(ctx context.Context, trainerID, sessionID primitive.ObjectID) error {
	if f.failAddSession {
		return errInjected
	}
	return f.TrainerRepository.AddSession(ctx, trainerID, sessionID)
}

// fixture wires every service over one in-memory store. The flaky wrappers start disabled.
type fixture struct {
	t         *testing.T
	store     *memory.Store
	sessions  *flakySessions
	visitors  *flakyVisitors
	trainers  *flakyTrainers
	publisher *recordingPublisher

	sync       *Synchronizer
	roster     RosterService
	reviews    ReviewService
	catalog    SessionService
	accounts   AccountService
	directory  DirectoryService
	reconciler *Reconciler
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWithPolicy(t, ReviewPolicy{})
}

func newFixtureWithPolicy(t *testing.T, policy ReviewPolicy) *fixture {
	t.Helper()
	store := memory.NewStore()
	f := &fixture{
		t:         t,
		store:     store,
		sessions:  &flakySessions{SessionRepository: store.Sessions()},
		visitors:  &flakyVisitors{VisitorRepository: store.Visitors()},
		trainers:  &flakyTrainers{TrainerRepository: store.Trainers()},
		publisher: &recordingPublisher{},
	}
	logger := discardLogger()
	f.sync = NewSynchronizer(f.sessions, f.visitors, store.Reviews(), store.Reconciliations(), f.publisher, logger)
	f.roster = NewRosterService(f.sessions, f.visitors, f.sync, f.publisher, logger)
	f.reviews = NewReviewService(f.sessions, f.visitors, store.Reviews(), f.sync, f.publisher, logger, policy)
	f.catalog = NewSessionService(f.sessions, f.trainers, f.visitors, store.Reviews(), store.Reconciliations(), domain.DefaultMaxVisitors, logger)
	f.accounts = NewAccountService(f.visitors, store.Trainers(), store.Managers(), nil)
	f.directory = NewDirectoryService(f.sessions, f.visitors, store.Trainers(), store.Reviews(), f.accounts)
	f.reconciler = NewReconciler(f.sessions, f.trainers, store.Visitors(), store.Reviews(), store.Reconciliations(), logger)
	return f
}

func (f *fixture) visitor(username string) domain.Principal {
	f.t.Helper()
	p, err := f.accounts.Provision(context.Background(), NewAccount{
		Role: domain.RoleVisitor, Username: username, Password: "password123", Name: username,
	})
	require.NoError(f.t, err)
	return p
}

func (f *fixture) trainer(username string) domain.Principal {
	f.t.Helper()
	p, err := f.accounts.Provision(context.Background(), NewAccount{
		Role: domain.RoleTrainer, Username: username, Password: "password123", Name: username,
	})
	require.NoError(f.t, err)
	return p
}

func (f *fixture) manager(username string) domain.Principal {
	f.t.Helper()
	p, err := f.accounts.Provision(context.Background(), NewAccount{
		Role: domain.RoleManager, Username: username, Password: "password123", Name: username,
	})
	require.NoError(f.t, err)
	return p
}

func (f *fixture) session(owner domain.Principal, title string, maxVisitors int) *domain.Session {
	f.t.Helper()
	session, err := f.catalog.CreateSession(context.Background(), owner, NewSession{
		Title:       title,
		Date:        time.Date(2026, 11, 2, 18, 0, 0, 0, time.UTC),
		MaxVisitors: &maxVisitors,
	})
	require.NoError(f.t, err)
	return session
}

func (f *fixture) reloadSession(id primitive.ObjectID) *domain.Session {
	f.t.Helper()
	session, err := f.store.Sessions().GetByID(context.Background(), id)
	require.NoError(f.t, err)
	return session
}

func (f *fixture) reloadVisitor(id primitive.ObjectID) *domain.Visitor {
	f.t.Helper()
	visitor, err := f.store.Visitors().GetByID(context.Background(), id)
	require.NoError(f.t, err)
	return visitor
}

func (f *fixture) pending() []domain.Reconciliation {
	f.t.Helper()
	recs, err := f.store.Reconciliations().ListPending(context.Background(), 0)
	require.NoError(f.t, err)
	return recs
}

// requireConsistent checks both directions of the booking relation for one session.
func (f *fixture) requireConsistent(sessionID primitive.ObjectID, visitors ...domain.Principal) {
	f.t.Helper()
	session := f.reloadSession(sessionID)
	for _, v := range visitors {
		visitor := f.reloadVisitor(v.ID)
		require.Equal(f.t, session.HasVisitor(v.ID), visitor.HasSession(sessionID),
			"visitor %s: roster and visitor sessions disagree", v.ID.Hex())
	}
	require.LessOrEqual(f.t, len(session.Visitors), session.MaxVisitors)
}
