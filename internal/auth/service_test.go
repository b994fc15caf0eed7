package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/tripcast/tripcast-admin/internal/auth"
	"github.com/tripcast/tripcast-admin/internal/shared"
	_ "github.com/tripcast/tripcast-admin/testing"
)

type stubRepo struct {
	admins map[int64]*auth.Admin
}

func (s *stubRepo) FindByEmail(ctx context.Context, email string) (*auth.Admin, error) {
	for _, a := range s.admins {
		if a.Email == email {
			return a, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (s *stubRepo) FindByID(ctx context.Context, id int64) (*auth.Admin, error) {
	a, ok := s.admins[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return a, nil
}

func (s *stubRepo) TouchLastLogin(ctx context.Context, id int64, at time.Time) error {
	return nil
}

func newTestService(t *testing.T) (*auth.Service, *stubRepo) {
	t.Helper()
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = redisClient.Close() })

	hash, err := bcrypt.GenerateFromPassword([]byte("correct-horse"), bcrypt.MinCost)
	require.NoError(t, err)
	repo := &stubRepo{admins: map[int64]*auth.Admin{
		1: {ID: 1, Email: "ops@tripcast.local", PasswordHash: string(hash), Status: auth.StatusActive},
		2: {ID: 2, Email: "gone@tripcast.local", PasswordHash: string(hash), Status: auth.StatusInactive},
	}}
	tokens := auth.NewTokenManager("test-secret", time.Minute, time.Hour)
	return auth.NewService(repo, tokens, auth.NewDenylist(redisClient)), repo
}

func TestAuthenticate(t *testing.T) {
	svc, _ := newTestService(t)

	admin, pair, err := svc.Authenticate(context.Background(), "ops@tripcast.local", "correct-horse")
	require.NoError(t, err)
	assert.Equal(t, int64(1), admin.ID)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)
	assert.NotEqual(t, pair.AccessToken, pair.RefreshToken)
}

func TestAuthenticateFailures(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, _, err := svc.Authenticate(ctx, "ops@tripcast.local", "wrong-password")
	assert.ErrorIs(t, err, shared.ErrInvalidCredentials)

	_, _, err = svc.Authenticate(ctx, "nobody@tripcast.local", "correct-horse")
	assert.ErrorIs(t, err, shared.ErrInvalidCredentials)

	_, _, err = svc.Authenticate(ctx, "gone@tripcast.local", "correct-horse")
	assert.ErrorIs(t, err, shared.ErrInvalidCredentials)
}

func TestVerifyAccess(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, pair, err := svc.Authenticate(ctx, "ops@tripcast.local", "correct-horse")
	require.NoError(t, err)

	admin, err := svc.VerifyAccess(ctx, pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "ops@tripcast.local", admin.GetEmail())
}

func TestVerifyAccessRejectsRefreshToken(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, pair, err := svc.Authenticate(ctx, "ops@tripcast.local", "correct-horse")
	require.NoError(t, err)

	_, err = svc.VerifyAccess(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestVerifyAccessRejectsGarbage(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.VerifyAccess(context.Background(), "not-a-token")
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestVerifyAccessRejectsForeignSignature(t *testing.T) {
	svc, _ := newTestService(t)

	other := auth.NewTokenManager("another-secret", time.Minute, time.Hour)
	token, err := other.Issue(&auth.Admin{ID: 1, Email: "ops@tripcast.local"}, auth.TokenTypeAccess)
	require.NoError(t, err)

	_, err = svc.VerifyAccess(context.Background(), token)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestVerifyAccessRejectsDeactivatedAdmin(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	_, pair, err := svc.Authenticate(ctx, "ops@tripcast.local", "correct-horse")
	require.NoError(t, err)

	repo.admins[1].Status = auth.StatusLocked
	_, err = svc.VerifyAccess(ctx, pair.AccessToken)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestRevokeDenylistsToken(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, pair, err := svc.Authenticate(ctx, "ops@tripcast.local", "correct-horse")
	require.NoError(t, err)

	require.NoError(t, svc.Revoke(ctx, pair.AccessToken))
	_, err = svc.VerifyAccess(ctx, pair.AccessToken)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestRefreshRotatesTokens(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, pair, err := svc.Authenticate(ctx, "ops@tripcast.local", "correct-horse")
	require.NoError(t, err)

	admin, fresh, err := svc.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, int64(1), admin.ID)
	assert.NotEmpty(t, fresh.AccessToken)

	// The consumed refresh token must not work twice.
	_, _, err = svc.Refresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestRefreshRejectsAccessToken(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, pair, err := svc.Authenticate(ctx, "ops@tripcast.local", "correct-horse")
	require.NoError(t, err)

	_, _, err = svc.Refresh(ctx, pair.AccessToken)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}
