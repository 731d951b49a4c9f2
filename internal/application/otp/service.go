package otp

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alumni-api/internal/domain"
	"github.com/alumni-api/internal/pkg/identity"
	pkgtoken "github.com/alumni-api/internal/pkg/token"
	"github.com/alumni-api/internal/pkg/validate"
)

const (
	DefaultTTL         = 10 * time.Minute
	DefaultMaxAttempts = 5
)

type Service interface {
	Issue(ctx context.Context, email string, userData map[string]interface{}) (*domain.IssueResult, error)
	Verify(ctx context.Context, email, code string) (*domain.VerifyResult, error)
}

// Store keeps at most one live code per email. Apply must run the mutator and
// persist its decision atomically with respect to other calls for the same email.
type Store interface {
	Put(ctx context.Context, rec *domain.OTPRecord) error
	Apply(ctx context.Context, email string, fn domain.OTPMutator) error
}

// Deliverer sends a code out-of-band.
type Deliverer interface {
	Deliver(ctx context.Context, email, code string, expiresAt time.Time) error
}

type service struct {
	store       Store
	deliverer   Deliverer
	ttl         time.Duration
	maxAttempts int
	exposeCode  bool
	now         func() time.Time
}

type ServiceDeps struct {
	Store       Store
	Deliverer   Deliverer
	TTL         time.Duration
	MaxAttempts int
	// ExposeCode echoes the raw code in IssueResult. Only ever true outside production.
	ExposeCode bool
	Now        func() time.Time
}

func NewService(deps ServiceDeps) Service {
	s := &service{
		store:       deps.Store,
		deliverer:   deps.Deliverer,
		ttl:         deps.TTL,
		maxAttempts: deps.MaxAttempts,
		exposeCode:  deps.ExposeCode,
		now:         deps.Now,
	}
	if s.ttl <= 0 {
		s.ttl = DefaultTTL
	}
	if s.maxAttempts <= 0 {
		s.maxAttempts = DefaultMaxAttempts
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	return s
}

func (s *service) Issue(ctx context.Context, email string, userData map[string]interface{}) (*domain.IssueResult, error) {
	email = identity.NormalizeEmail(email)
	if err := validate.Var("email", email, "required,email"); err != nil {
		return nil, fmt.Errorf("%s: %w", err.Error(), domain.ErrBadRequest)
	}

	code, err := pkgtoken.NewCode()
	if err != nil {
		return nil, err
	}
	now := s.now()
	rec := &domain.OTPRecord{
		Email:         email,
		Code:          code,
		IssuedAt:      now,
		ExpiresAt:     now.Add(s.ttl),
		ExpiresAtUnix: now.Add(s.ttl).Unix(),
		UserData:      userData,
		// Distinct per issuance so durable stores can tell a superseded code from the live one.
		Version: now.UnixNano(),
	}
	if err := s.store.Put(ctx, rec); err != nil {
		return nil, fmt.Errorf("store otp: %w", err)
	}
	if err := s.deliverer.Deliver(ctx, email, code, rec.ExpiresAt); err != nil {
		s.discard(ctx, rec)
		return nil, fmt.Errorf("deliver otp: %w", err)
	}
	slog.InfoContext(ctx, "otp issued", "email", email, "expires_at", rec.ExpiresAt)

	res := &domain.IssueResult{Email: email, ExpiresAt: rec.ExpiresAt}
	if s.exposeCode {
		res.DevCode = code
	}
	return res, nil
}

// discard removes an undelivered code unless it has been superseded. The code
// it replaced is not restored.
func (s *service) discard(ctx context.Context, rec *domain.OTPRecord) {
	err := s.store.Apply(context.WithoutCancel(ctx), rec.Email, func(cur *domain.OTPRecord) domain.OTPOp {
		if cur != nil && cur.Code == rec.Code && cur.IssuedAt.Equal(rec.IssuedAt) {
			return domain.OTPDelete
		}
		return domain.OTPKeep
	})
	if err != nil {
		slog.WarnContext(ctx, "could not discard undelivered otp", "email", rec.Email, "err", err)
	}
}

func (s *service) Verify(ctx context.Context, email, code string) (*domain.VerifyResult, error) {
	email = identity.NormalizeEmail(email)
	code = strings.TrimSpace(code)
	if email == "" || code == "" {
		return nil, fmt.Errorf("email and otp are required: %w", domain.ErrBadRequest)
	}

	now := s.now()
	var res domain.VerifyResult
	err := s.store.Apply(ctx, email, func(rec *domain.OTPRecord) domain.OTPOp {
		var op domain.OTPOp
		res, op = evaluate(rec, code, now, s.maxAttempts)
		return op
	})
	if err != nil {
		return nil, fmt.Errorf("verify otp: %w", err)
	}
	if res.Valid {
		slog.InfoContext(ctx, "otp verified", "email", email)
	} else {
		slog.WarnContext(ctx, "otp rejected", "email", email, "reason", string(res.Reason), "attempts_remaining", res.AttemptsRemaining)
	}
	return &res, nil
}

// evaluate is the verifier state machine for one identity. A nil record is
// NoCode; expiry is detected lazily and does not count as an attempt; the
// mismatch that spends the budget deletes the record so a new code is required.
func evaluate(rec *domain.OTPRecord, code string, now time.Time, maxAttempts int) (domain.VerifyResult, domain.OTPOp) {
	if rec == nil {
		return domain.VerifyResult{Reason: domain.ReasonNoCode}, domain.OTPKeep
	}
	if rec.Expired(now) {
		return domain.VerifyResult{Reason: domain.ReasonExpired}, domain.OTPDelete
	}
	if rec.Attempts >= maxAttempts {
		return domain.VerifyResult{Reason: domain.ReasonExhausted}, domain.OTPDelete
	}
	if !pkgtoken.Equal(rec.Code, code) {
		rec.Attempts++
		remaining := maxAttempts - rec.Attempts
		if remaining <= 0 {
			return domain.VerifyResult{Reason: domain.ReasonExhausted}, domain.OTPDelete
		}
		return domain.VerifyResult{Reason: domain.ReasonInvalid, AttemptsRemaining: remaining}, domain.OTPSave
	}
	return domain.VerifyResult{
		Valid:             true,
		AttemptsRemaining: maxAttempts - rec.Attempts,
		UserData:          rec.UserData,
	}, domain.OTPDelete
}
