package auth_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/terrabook/terrabook/internal/auth"
	"github.com/terrabook/terrabook/internal/shared"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRouter(handler *auth.Handler) chi.Router {
	r := chi.NewRouter()
	r.Route("/auth", handler.MountRoutes)
	return r
}

type stubRepo struct {
	user     *auth.User
	sessions map[string]int64
}

func (s *stubRepo) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	if s.user == nil {
		return nil, shared.ErrNotFound
	}
	return s.user, nil
}

func (s *stubRepo) FindByID(ctx context.Context, id int64) (*auth.User, error) {
	if s.user == nil || s.user.ID != id {
		return nil, shared.ErrNotFound
	}
	return s.user, nil
}

func (s *stubRepo) CreateSession(ctx context.Context, id string, userID int64, expiresAt time.Time, ip, ua string) error {
	if s.sessions == nil {
		s.sessions = map[string]int64{}
	}
	s.sessions[id] = userID
	return nil
}

func (s *stubRepo) DeleteSession(ctx context.Context, id string) error {
	delete(s.sessions, id)
	return nil
}

func newAuthHandler(t *testing.T, repo auth.Repository) (*auth.Handler, *shared.SessionManager) {
	t.Helper()
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = redisClient.Close() })
	sessionManager := shared.NewSessionManager(redisClient, "test_session", "secret", time.Hour, false)
	handler := auth.NewHandler(testLogger(), auth.NewService(repo), sessionManager, shared.NewCSRFManager("csrfsecret"))
	return handler, sessionManager
}

func activeUser(t *testing.T, password string) *auth.User {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	return &auth.User{ID: 1, Email: "user@test.local", Name: "Test User", PasswordHash: string(hashed), IsActive: true}
}

func doLogin(t *testing.T, handler *auth.Handler, sessions *shared.SessionManager, body string) (*httptest.ResponseRecorder, *shared.Session) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	sess, err := sessions.Load(context.Background(), req)
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	ctx := shared.ContextWithSession(req.Context(), sess)
	req = req.WithContext(ctx)

	res := httptest.NewRecorder()
	router := newTestRouter(handler)
	router.ServeHTTP(res, req)
	if err := sessions.Commit(ctx, res, req, sess); err != nil {
		t.Fatalf("commit session: %v", err)
	}
	return res, sess
}

func TestLoginSuccess(t *testing.T) {
	repo := &stubRepo{user: activeUser(t, "correctpass")}
	handler, sessions := newAuthHandler(t, repo)

	res, sess := doLogin(t, handler, sessions, `{"email":"user@test.local","password":"correctpass"}`)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if !strings.Contains(res.Body.String(), `"email":"user@test.local"`) {
		t.Fatalf("expected user in body, got %s", res.Body.String())
	}
	if strings.Contains(res.Body.String(), "password") {
		t.Fatalf("password hash leaked in response")
	}
	if sess.User() != "1" {
		t.Fatalf("expected session user 1, got %q", sess.User())
	}
	if _, ok := repo.sessions[sess.ID]; !ok {
		t.Fatalf("expected session registered in repository")
	}
	if res.Header().Get("X-CSRF-Token") == "" {
		t.Fatalf("expected csrf token header on login")
	}
}

func TestLoginInvalidCredentials(t *testing.T) {
	handler, sessions := newAuthHandler(t, &stubRepo{user: activeUser(t, "correctpass")})

	res, sess := doLogin(t, handler, sessions, `{"email":"user@test.local","password":"wrongpass1"}`)
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", res.Code)
	}
	if sess.User() != "" {
		t.Fatalf("session must not carry a user after failed login")
	}
}

func TestLoginInactiveUser(t *testing.T) {
	user := activeUser(t, "correctpass")
	user.IsActive = false
	handler, sessions := newAuthHandler(t, &stubRepo{user: user})

	res, _ := doLogin(t, handler, sessions, `{"email":"user@test.local","password":"correctpass"}`)
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for inactive account, got %d", res.Code)
	}
}

func TestLoginValidation(t *testing.T) {
	handler, sessions := newAuthHandler(t, &stubRepo{})

	res, _ := doLogin(t, handler, sessions, `{"email":"not-an-email","password":"short"}`)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestLogoutRemovesSession(t *testing.T) {
	repo := &stubRepo{user: activeUser(t, "correctpass")}
	handler, sessions := newAuthHandler(t, repo)

	_, sess := doLogin(t, handler, sessions, `{"email":"user@test.local","password":"correctpass"}`)

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	ctx := shared.ContextWithSession(req.Context(), sess)
	req = req.WithContext(ctx)
	res := httptest.NewRecorder()
	newTestRouter(handler).ServeHTTP(res, req)

	if res.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", res.Code)
	}
	if _, ok := repo.sessions[sess.ID]; ok {
		t.Fatalf("expected session removed from repository")
	}
}
