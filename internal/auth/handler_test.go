package auth_test

import (
	"encoding/json"
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
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/tripcast/tripcast-admin/internal/auth"
	_ "github.com/tripcast/tripcast-admin/testing"
)

func newAuthServer(t *testing.T) http.Handler {
	t.Helper()
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = redisClient.Close() })

	hash, err := bcrypt.GenerateFromPassword([]byte("correct-horse"), bcrypt.MinCost)
	require.NoError(t, err)
	repo := &stubRepo{admins: map[int64]*auth.Admin{
		1: {ID: 1, Email: "ops@tripcast.local", PasswordHash: string(hash), Status: auth.StatusActive},
	}}
	tokens := auth.NewTokenManager("test-secret", time.Minute, time.Hour)
	service := auth.NewService(repo, tokens, auth.NewDenylist(redisClient))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := auth.NewHandler(logger, service)

	r := chi.NewRouter()
	r.Route("/api/admin/auth", handler.MountRoutes)
	return r
}

func postJSON(h http.Handler, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestLogin(t *testing.T) {
	srv := newAuthServer(t)

	rec := postJSON(srv, "/api/admin/auth/login",
		`{"email":"ops@tripcast.local","password":"correct-horse"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		TokenType    string `json:"token_type"`
		AdminID      int64  `json:"admin_id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.Equal(t, "bearer", resp.TokenType)
	assert.Equal(t, int64(1), resp.AdminID)
}

func TestLoginBadCredentials(t *testing.T) {
	srv := newAuthServer(t)

	rec := postJSON(srv, "/api/admin/auth/login",
		`{"email":"ops@tripcast.local","password":"wrong-password"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = postJSON(srv, "/api/admin/auth/login",
		`{"email":"nobody@tripcast.local","password":"correct-horse"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLoginValidation(t *testing.T) {
	srv := newAuthServer(t)

	rec := postJSON(srv, "/api/admin/auth/login", `{"email":"not-an-email","password":"correct-horse"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postJSON(srv, "/api/admin/auth/login", `{"email":"ops@tripcast.local","password":"short"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postJSON(srv, "/api/admin/auth/login", `{broken`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRefreshEndpoint(t *testing.T) {
	srv := newAuthServer(t)

	rec := postJSON(srv, "/api/admin/auth/login",
		`{"email":"ops@tripcast.local","password":"correct-horse"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var login struct {
		RefreshToken string `json:"refresh_token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &login))

	rec = postJSON(srv, "/api/admin/auth/refresh",
		`{"refresh_token":"`+login.RefreshToken+`"}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Single use: replaying the same refresh token fails.
	rec = postJSON(srv, "/api/admin/auth/refresh",
		`{"refresh_token":"`+login.RefreshToken+`"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogout(t *testing.T) {
	srv := newAuthServer(t)

	rec := postJSON(srv, "/api/admin/auth/login",
		`{"email":"ops@tripcast.local","password":"correct-horse"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var login struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &login))

	req := httptest.NewRequest(http.MethodPost, "/api/admin/auth/logout", nil)
	req.Header.Set("Authorization", "Bearer "+login.AccessToken)
	out := httptest.NewRecorder()
	srv.ServeHTTP(out, req)
	assert.Equal(t, http.StatusOK, out.Code)

	// No token at all.
	out = httptest.NewRecorder()
	srv.ServeHTTP(out, httptest.NewRequest(http.MethodPost, "/api/admin/auth/logout", nil))
	assert.Equal(t, http.StatusUnauthorized, out.Code)
}
