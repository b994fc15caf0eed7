package auth

import (
	"context"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/tripcast/tripcast-admin/internal/shared"
)

// TokenPair bundles the access and refresh tokens returned on login.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// Service wraps authentication business rules.
type Service struct {
	repo     Repository
	tokens   *TokenManager
	denylist *Denylist
}

// NewService constructs a new Service.
func NewService(repo Repository, tokens *TokenManager, denylist *Denylist) *Service {
	return &Service{repo: repo, tokens: tokens, denylist: denylist}
}

// Authenticate validates email/password credentials and mints a token pair.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*Admin, TokenPair, error) {
	admin, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, TokenPair{}, shared.ErrInvalidCredentials
	}
	if !admin.IsActive() {
		return nil, TokenPair{}, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(password)); err != nil {
		return nil, TokenPair{}, shared.ErrInvalidCredentials
	}
	pair, err := s.issuePair(admin)
	if err != nil {
		return nil, TokenPair{}, err
	}
	if err := s.repo.TouchLastLogin(ctx, admin.ID, time.Now()); err != nil {
		// Login still succeeds; the timestamp is advisory.
		return admin, pair, nil
	}
	return admin, pair, nil
}

// Refresh exchanges a valid refresh token for a fresh pair.
func (s *Service) Refresh(ctx context.Context, rawToken string) (*Admin, TokenPair, error) {
	claims, err := s.verifyClaims(ctx, rawToken, TokenTypeRefresh)
	if err != nil {
		return nil, TokenPair{}, err
	}
	admin, err := s.lookupPrincipal(ctx, claims)
	if err != nil {
		return nil, TokenPair{}, err
	}
	pair, err := s.issuePair(admin)
	if err != nil {
		return nil, TokenPair{}, err
	}
	// The old refresh token is single-use.
	if claims.ExpiresAt != nil {
		_ = s.denylist.Revoke(ctx, claims.ID, claims.ExpiresAt.Time)
	}
	return admin, pair, nil
}

// VerifyAccess validates a bearer access token and resolves the active admin.
// Any failure collapses to ErrInvalidToken so callers answer 401 without detail.
func (s *Service) VerifyAccess(ctx context.Context, rawToken string) (*Admin, error) {
	claims, err := s.verifyClaims(ctx, rawToken, TokenTypeAccess)
	if err != nil {
		return nil, err
	}
	return s.lookupPrincipal(ctx, claims)
}

// Revoke denylists the presented token until its natural expiry.
func (s *Service) Revoke(ctx context.Context, rawToken string) error {
	claims, err := s.tokens.Parse(rawToken)
	if err != nil {
		return err
	}
	if claims.ExpiresAt == nil {
		return ErrInvalidToken
	}
	return s.denylist.Revoke(ctx, claims.ID, claims.ExpiresAt.Time)
}

func (s *Service) issuePair(admin *Admin) (TokenPair, error) {
	access, err := s.tokens.Issue(admin, TokenTypeAccess)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := s.tokens.Issue(admin, TokenTypeRefresh)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (s *Service) verifyClaims(ctx context.Context, rawToken, wantType string) (*Claims, error) {
	claims, err := s.tokens.Parse(rawToken)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != wantType {
		return nil, ErrInvalidToken
	}
	revoked, err := s.denylist.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// lookupPrincipal loads the admin matching both the id and email claims
// and requires the account to be active.
func (s *Service) lookupPrincipal(ctx context.Context, claims *Claims) (*Admin, error) {
	id, err := claims.AdminID()
	if err != nil {
		return nil, err
	}
	admin, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, ErrInvalidToken
	}
	if admin.Email != claims.Email || !admin.IsActive() {
		return nil, ErrInvalidToken
	}
	return admin, nil
}
