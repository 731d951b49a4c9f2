package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alumni-api/internal/domain"
	"github.com/alumni-api/internal/pkg/id"
	"github.com/alumni-api/internal/pkg/identity"
	"github.com/alumni-api/internal/pkg/validate"
	"golang.org/x/crypto/bcrypt"
)

// Compared against when the account does not exist so unknown emails cost
// the same as wrong passwords.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("alumni-api-dummy-password"), bcrypt.DefaultCost)

// Service is the auth capability: it owns identity ids, credentials and sessions.
type Service interface {
	EnsureUser(ctx context.Context, email string) (*domain.Account, error)
	SignUp(ctx context.Context, req domain.SignUpRequest) (*domain.Account, error)
	Authenticate(ctx context.Context, req domain.LoginRequest) (*domain.Account, error)
	IssueSession(ctx context.Context, a *domain.Account) (*domain.Session, error)
}

type accountStore interface {
	Get(ctx context.Context, email string) (*domain.Account, error)
	Create(ctx context.Context, a *domain.Account) error
}

type jwtSigner interface {
	Sign(authID, email string) (string, time.Time, error)
}

type service struct {
	repo        accountStore
	jwtProvider jwtSigner
	now         func() time.Time
}

type ServiceDeps struct {
	AccountRepo accountStore
	JWTProvider jwtSigner
	Now         func() time.Time
}

func NewService(deps ServiceDeps) Service {
	s := &service{repo: deps.AccountRepo, jwtProvider: deps.JWTProvider, now: deps.Now}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	return s
}

// EnsureUser returns the account for email, creating a password-less one if
// needed. Concurrent callers converge on the same auth id.
func (s *service) EnsureUser(ctx context.Context, email string) (*domain.Account, error) {
	email = identity.NormalizeEmail(email)
	a, err := s.repo.Get(ctx, email)
	if err == nil {
		return a, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("lookup account: %w", err)
	}

	a = &domain.Account{Email: email, AuthID: id.New(), CreatedAt: s.now()}
	err = s.repo.Create(ctx, a)
	if errors.Is(err, domain.ErrConflict) {
		return s.repo.Get(ctx, email)
	}
	if err != nil {
		return nil, fmt.Errorf("create account: %w", err)
	}
	slog.InfoContext(ctx, "account created", "auth_id", a.AuthID)
	return a, nil
}

// SignUp creates a password account. An existing email, including one created
// by OTP sign-in, is a conflict: passwords are never attached after the fact.
func (s *service) SignUp(ctx context.Context, req domain.SignUpRequest) (*domain.Account, error) {
	req.Email = identity.NormalizeEmail(req.Email)
	if err := validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%s: %w", err.Error(), domain.ErrBadRequest)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	a := &domain.Account{
		Email:        req.Email,
		AuthID:       id.New(),
		PasswordHash: string(hash),
		CreatedAt:    s.now(),
	}
	if err := s.repo.Create(ctx, a); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return nil, fmt.Errorf("account already exists: %w", domain.ErrConflict)
		}
		return nil, fmt.Errorf("create account: %w", err)
	}
	slog.InfoContext(ctx, "account signed up", "auth_id", a.AuthID)
	return a, nil
}

func (s *service) Authenticate(ctx context.Context, req domain.LoginRequest) (*domain.Account, error) {
	req.Email = identity.NormalizeEmail(req.Email)
	if err := validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%s: %w", err.Error(), domain.ErrBadRequest)
	}
	a, err := s.repo.Get(ctx, req.Email)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("lookup account: %w", err)
	}
	hash := dummyHash
	if a != nil && a.PasswordHash != "" {
		hash = []byte(a.PasswordHash)
	}
	if bcrypt.CompareHashAndPassword(hash, []byte(req.Password)) != nil || a == nil || a.PasswordHash == "" {
		return nil, fmt.Errorf("invalid credentials: %w", domain.ErrUnauthorized)
	}
	return a, nil
}

func (s *service) IssueSession(ctx context.Context, a *domain.Account) (*domain.Session, error) {
	token, exp, err := s.jwtProvider.Sign(a.AuthID, a.Email)
	if err != nil {
		return nil, fmt.Errorf("sign session: %w", err)
	}
	return &domain.Session{AuthID: a.AuthID, Email: a.Email, Token: token, ExpiresAt: exp}, nil
}
