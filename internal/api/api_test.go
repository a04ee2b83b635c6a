package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"gymbook/internal/auth"
	"gymbook/internal/domain"
	"gymbook/internal/events"
	"gymbook/internal/repository/memory"
	"gymbook/internal/service"
	"gymbook/internal/storage"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	t        *testing.T
	router   *gin.Engine
	tokens   *auth.TokenManager
	accounts service.AccountService
	sessions service.SessionService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := memory.NewStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tokens, err := auth.NewTokenManager("api-test-secret", time.Hour)
	require.NoError(t, err)

	publisher := events.NoopPublisher{}
	sync := service.NewSynchronizer(store.Sessions(), store.Visitors(), store.Reviews(), store.Reconciliations(), publisher, logger)
	accounts := service.NewAccountService(store.Visitors(), store.Trainers(), store.Managers(), tokens)
	sessions := service.NewSessionService(store.Sessions(), store.Trainers(), store.Visitors(), store.Reviews(), store.Reconciliations(), domain.DefaultMaxVisitors, logger)
	services := Services{
		Accounts:   accounts,
		Roster:     service.NewRosterService(store.Sessions(), store.Visitors(), sync, publisher, logger),
		Reviews:    service.NewReviewService(store.Sessions(), store.Visitors(), store.Reviews(), sync, publisher, logger, service.ReviewPolicy{}),
		Sessions:   sessions,
		Directory:  service.NewDirectoryService(store.Sessions(), store.Visitors(), store.Trainers(), store.Reviews(), accounts),
		Exports:    service.NewExportService(store.Sessions(), store.Visitors(), storage.NewMemoryStorage(), logger),
		Reconciler: service.NewReconciler(store.Sessions(), store.Trainers(), store.Visitors(), store.Reviews(), store.Reconciliations(), logger),
	}
	router := NewRouter(services, RouterOptions{Tokens: tokens, RequestTimeout: 5 * time.Second, Logger: logger})
	return &testServer{t: t, router: router, tokens: tokens, accounts: accounts, sessions: sessions}
}

// user provisions an account and returns its principal and bearer token.
func (s *testServer) user(role domain.Role, username string) (domain.Principal, string) {
	s.t.Helper()
	p, err := s.accounts.Provision(context.Background(), service.NewAccount{Role: role, Username: username, Password: "password123", Name: username})
	require.NoError(s.t, err)
	token, err := s.tokens.Issue(p)
	require.NoError(s.t, err)
	return p, token
}

func (s *testServer) session(owner domain.Principal, maxVisitors int) *domain.Session {
	s.t.Helper()
	session, err := s.sessions.CreateSession(context.Background(), owner, service.NewSession{
		Title: "Session " + owner.ID.Hex(), Date: time.Date(2026, 11, 2, 18, 0, 0, 0, time.UTC), MaxVisitors: &maxVisitors,
	})
	require.NoError(s.t, err)
	return session
}

func (s *testServer) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	s.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(s.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestPingAndMetrics(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodGet, "/ping", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"pong"}`, w.Body.String())

	w = s.do(http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "http_requests_total")
}

func TestAuthRequired(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodGet, "/api/v1/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(http.MethodGet, "/api/v1/me", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Invalid token", decode[map[string]string](t, w)["error"])
}

func TestMe(t *testing.T) {
	s := newTestServer(t)
	ann, token := s.user(domain.RoleVisitor, "ann")

	w := s.do(http.MethodGet, "/api/v1/me", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	profile := decode[service.Profile](t, w)
	assert.Equal(t, ann.ID.Hex(), profile.ID)
	assert.Equal(t, domain.RoleVisitor, profile.Role)
	assert.Equal(t, "ann", profile.Username)
}

func TestBookingFlow(t *testing.T) {
	s := newTestServer(t)
	coach, coachToken := s.user(domain.RoleTrainer, "coach")
	ann, annToken := s.user(domain.RoleVisitor, "ann")
	_, bobToken := s.user(domain.RoleVisitor, "bob")
	session := s.session(coach, 1)
	bookPath := "/api/v1/book/" + session.ID.Hex()

	w := s.do(http.MethodPost, bookPath, annToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	booked := decode[domain.Session](t, w)
	assert.Equal(t, ann.ID, booked.Visitors[0])

	w = s.do(http.MethodPost, bookPath, annToken, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, service.ErrAlreadyBooked.Error(), decode[map[string]string](t, w)["error"])

	w = s.do(http.MethodPost, bookPath, bobToken, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, service.ErrCapacityExceeded.Error(), decode[map[string]string](t, w)["error"])

	w = s.do(http.MethodPost, bookPath, coachToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(http.MethodGet, "/api/v1/visitor/sessions", annToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]domain.Session](t, w), 1)

	w = s.do(http.MethodDelete, "/api/v1/unbook/"+session.ID.Hex(), annToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = s.do(http.MethodDelete, "/api/v1/unbook/"+session.ID.Hex(), annToken, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBookErrors(t *testing.T) {
	s := newTestServer(t)
	_, annToken := s.user(domain.RoleVisitor, "ann")

	w := s.do(http.MethodPost, "/api/v1/book/not-an-id", annToken, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPost, "/api/v1/book/0123456789abcdef01234567", annToken, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestOwnerRosterRoutes(t *testing.T) {
	s := newTestServer(t)
	owner, ownerToken := s.user(domain.RoleTrainer, "owner")
	_, otherToken := s.user(domain.RoleTrainer, "other")
	ann, _ := s.user(domain.RoleVisitor, "ann")
	session := s.session(owner, 10)
	path := fmt.Sprintf("/api/v1/addVisitor/%s/%s", ann.ID.Hex(), session.ID.Hex())

	w := s.do(http.MethodPost, path, otherToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(http.MethodPost, path, ownerToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(http.MethodGet, "/api/v1/trainer/visitors", ownerToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	visitors := decode[[]domain.Visitor](t, w)
	require.Len(t, visitors, 1)
	assert.Equal(t, ann.ID, visitors[0].ID)

	w = s.do(http.MethodDelete, fmt.Sprintf("/api/v1/removeVisitor/%s/%s", ann.ID.Hex(), session.ID.Hex()), ownerToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSubmitReviewRoute(t *testing.T) {
	s := newTestServer(t)
	coach, _ := s.user(domain.RoleTrainer, "coach")
	_, annToken := s.user(domain.RoleVisitor, "ann")
	session := s.session(coach, 10)
	path := "/api/v1/review/" + session.ID.Hex()

	w := s.do(http.MethodPost, path, annToken, SubmitReviewRequest{Rating: 6, Comment: "too good"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPost, path, annToken, SubmitReviewRequest{Rating: 5, Comment: "great"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	review := decode[domain.Review](t, w)
	assert.Equal(t, 5, review.Rating)
	assert.Equal(t, session.ID, review.SessionID)
}

func TestSessionRoutes(t *testing.T) {
	s := newTestServer(t)
	_, coachToken := s.user(domain.RoleTrainer, "coach")
	_, annToken := s.user(domain.RoleVisitor, "ann")

	body := CreateSessionRequest{Title: "HIIT", Date: time.Date(2026, 12, 5, 7, 0, 0, 0, time.UTC)}
	w := s.do(http.MethodPost, "/api/v1/sessions", coachToken, body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[domain.Session](t, w)
	assert.Equal(t, domain.DefaultMaxVisitors, created.MaxVisitors)

	w = s.do(http.MethodPost, "/api/v1/sessions", coachToken, body)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPost, "/api/v1/sessions", annToken, body)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(http.MethodGet, "/api/v1/sessions/"+created.ID.Hex(), annToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	title := "HIIT advanced"
	w = s.do(http.MethodPut, "/api/v1/sessions/"+created.ID.Hex(), coachToken, UpdateSessionRequest{Title: &title})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, title, decode[domain.Session](t, w).Title)

	w = s.do(http.MethodGet, "/api/v1/trainer/sessions", coachToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]domain.Session](t, w), 1)
}

func TestManagerRoutes(t *testing.T) {
	s := newTestServer(t)
	_, bossToken := s.user(domain.RoleManager, "boss")
	_, coachToken := s.user(domain.RoleTrainer, "coach")

	w := s.do(http.MethodGet, "/api/v1/manager/trainers", coachToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	req := CreateTrainerRequest{Username: "newbie", Password: "password123", Name: "New Bie"}
	w = s.do(http.MethodPost, "/api/v1/manager/trainers", bossToken, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	trainer := decode[domain.Trainer](t, w)

	w = s.do(http.MethodPost, "/api/v1/manager/trainers", bossToken, req)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(http.MethodPost, "/api/v1/manager/trainers", bossToken, CreateTrainerRequest{Username: "x", Password: "short", Name: "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	session := s.session(domain.Principal{ID: trainer.ID, Role: domain.RoleTrainer}, 5)
	w = s.do(http.MethodDelete, "/api/v1/manager/trainers/"+trainer.ID.Hex(), bossToken, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(http.MethodPost, "/api/v1/manager/sessions/"+session.ID.Hex()+"/export", bossToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	export := decode[service.RosterExport](t, w)
	assert.NotEmpty(t, export.URL)

	w = s.do(http.MethodGet, "/api/v1/manager/sessions/reviews", bossToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(http.MethodGet, "/api/v1/manager/topVisitors?limit=abc", bossToken, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = s.do(http.MethodGet, "/api/v1/manager/topVisitors", bossToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(http.MethodPost, "/api/v1/manager/reconcile", bossToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, ReconcileResponse{}, decode[ReconcileResponse](t, w))
}

func TestStatusFor(t *testing.T) {
	partial := &service.PartialWriteError{Op: service.OpBook, Cause: service.ErrNotBooked}
	tests := []struct {
		err  error
		want int
	}{
		{err: partial, want: http.StatusInternalServerError},
		{err: service.ErrStoreUnavailable, want: http.StatusInternalServerError},
		{err: service.ErrForbidden, want: http.StatusForbidden},
		{err: service.ErrSessionNotFound, want: http.StatusNotFound},
		{err: service.ErrCapacityExceeded, want: http.StatusBadRequest},
		{err: service.ErrAlreadyBooked, want: http.StatusBadRequest},
		{err: service.ErrNotBooked, want: http.StatusBadRequest},
		{err: service.ErrDuplicateSession, want: http.StatusBadRequest},
		{err: fmt.Errorf("%w: rating", service.ErrInvalidInput), want: http.StatusBadRequest},
		{err: service.ErrUsernameTaken, want: http.StatusConflict},
		{err: service.ErrConflict, want: http.StatusConflict},
		{err: io.EOF, want: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}
