package auth_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/tradepost-erp/tradepost/internal/auth"
	"github.com/tradepost-erp/tradepost/internal/shared"
)

type stubRepo struct {
	user *auth.User
}

func (s *stubRepo) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	if s.user == nil || s.user.Email != email {
		return nil, shared.ErrNotFound
	}
	return s.user, nil
}

func newRouter(t *testing.T, repo auth.Repository) (*chi.Mux, *auth.Service) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	service := auth.NewService(repo, client, time.Hour)
	handler := auth.NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), service)
	router := chi.NewRouter()
	router.Route("/auth", handler.MountRoutes)
	return router, service
}

func postLogin(t *testing.T, router http.Handler, email, password string) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(map[string]string{"email": email, "password": password})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func hashed(t *testing.T, password string) string {
	t.Helper()
	raw, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(raw)
}

func TestLoginIssuesSessionToken(t *testing.T) {
	router, service := newRouter(t, &stubRepo{user: &auth.User{
		ID: 1, Email: "user@test.local", PasswordHash: hashed(t, "correctpass"), IsActive: true,
	}})

	rec := postLogin(t, router, "user@test.local", "correctpass")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Success bool   `json:"success"`
		Token   string `json:"token"`
		User    struct {
			ID    int64  `json:"id"`
			Email string `json:"email"`
		} `json:"user"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.True(t, body.Success)
	require.NotEmpty(t, body.Token)
	require.Equal(t, "user@test.local", body.User.Email)

	session, err := service.LookupSession(context.Background(), body.Token)
	require.NoError(t, err)
	require.EqualValues(t, 1, session.UserID)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	router, _ := newRouter(t, &stubRepo{user: &auth.User{
		ID: 1, Email: "user@test.local", PasswordHash: hashed(t, "correctpass"), IsActive: true,
	}})

	rec := postLogin(t, router, "user@test.local", "wrongpass")
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = postLogin(t, router, "nobody@test.local", "correctpass")
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = postLogin(t, router, "not-an-email", "x")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLoginRejectsInactiveUser(t *testing.T) {
	router, _ := newRouter(t, &stubRepo{user: &auth.User{
		ID: 1, Email: "user@test.local", PasswordHash: hashed(t, "correctpass"), IsActive: false,
	}})

	rec := postLogin(t, router, "user@test.local", "correctpass")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogoutInvalidatesSession(t *testing.T) {
	router, service := newRouter(t, &stubRepo{user: &auth.User{
		ID: 1, Email: "user@test.local", PasswordHash: hashed(t, "correctpass"), IsActive: true,
	}})

	rec := postLogin(t, router, "user@test.local", "correctpass")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.Header.Set("Authorization", "Bearer "+body.Token)
	out := httptest.NewRecorder()
	router.ServeHTTP(out, req)
	require.Equal(t, http.StatusOK, out.Code)

	_, err := service.LookupSession(context.Background(), body.Token)
	require.ErrorIs(t, err, auth.ErrSessionNotFound)

	noToken := httptest.NewRecorder()
	router.ServeHTTP(noToken, httptest.NewRequest(http.MethodPost, "/auth/logout", nil))
	require.Equal(t, http.StatusUnauthorized, noToken.Code)
}
