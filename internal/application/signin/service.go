// Package signin orchestrates the sign-in flows: prove the identity, ensure
// an auth account, provision the profile, issue a session and decide where
// the client goes next.
package signin

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alumni-api/internal/application/session"
	"github.com/alumni-api/internal/domain"
	"github.com/alumni-api/internal/pkg/identity"
)

// Outcome is the result of a sign-in attempt. When Result is set and not
// valid, the OTP was rejected and nothing else was done.
type Outcome struct {
	Result   *domain.VerifyResult
	Session  *domain.Session
	Profile  *domain.Profile
	Created  bool
	Redirect string
}

type Service interface {
	VerifyOTP(ctx context.Context, email, code string) (*Outcome, error)
	SignUp(ctx context.Context, req domain.SignUpRequest) (*Outcome, error)
	Login(ctx context.Context, req domain.LoginRequest) (*Outcome, error)
}

type otpVerifier interface {
	Verify(ctx context.Context, email, code string) (*domain.VerifyResult, error)
}

type accounts interface {
	EnsureUser(ctx context.Context, email string) (*domain.Account, error)
	SignUp(ctx context.Context, req domain.SignUpRequest) (*domain.Account, error)
	Authenticate(ctx context.Context, req domain.LoginRequest) (*domain.Account, error)
	IssueSession(ctx context.Context, a *domain.Account) (*domain.Session, error)
}

type provisioner interface {
	Provision(ctx context.Context, req domain.ProvisionProfileRequest) (*domain.Profile, bool, error)
}

type decider interface {
	Decide(state session.RouteState) session.Decision
}

type service struct {
	otp      otpVerifier
	accounts accounts
	profiles provisioner
	routes   decider
	proof    string
}

type ServiceDeps struct {
	OTP       otpVerifier
	Accounts  accounts
	Profiles  provisioner
	Decider   decider
	ProofPath string
}

func NewService(deps ServiceDeps) Service {
	return &service{
		otp:      deps.OTP,
		accounts: deps.Accounts,
		profiles: deps.Profiles,
		routes:   deps.Decider,
		proof:    deps.ProofPath,
	}
}

// VerifyOTP checks the identity format before spending the code, so a
// malformed email never burns an attempt.
func (s *service) VerifyOTP(ctx context.Context, email, code string) (*Outcome, error) {
	email = identity.NormalizeEmail(email)
	if _, err := identity.Parse(email); err != nil {
		return nil, err
	}
	res, err := s.otp.Verify(ctx, email, code)
	if err != nil {
		return nil, err
	}
	if !res.Valid {
		return &Outcome{Result: res}, nil
	}

	acct, err := s.accounts.EnsureUser(ctx, email)
	if err != nil {
		return nil, err
	}
	first, last := namesFrom(res.UserData)
	out, err := s.complete(ctx, acct, first, last)
	if err != nil {
		return nil, err
	}
	out.Result = res
	return out, nil
}

func (s *service) SignUp(ctx context.Context, req domain.SignUpRequest) (*Outcome, error) {
	if _, err := identity.Parse(req.Email); err != nil {
		return nil, err
	}
	acct, err := s.accounts.SignUp(ctx, req)
	if err != nil {
		return nil, err
	}
	return s.complete(ctx, acct, req.FirstName, req.LastName)
}

func (s *service) Login(ctx context.Context, req domain.LoginRequest) (*Outcome, error) {
	acct, err := s.accounts.Authenticate(ctx, req)
	if err != nil {
		return nil, err
	}
	return s.complete(ctx, acct, "", "")
}

// complete provisions the profile, issues the session and decides the next route.
func (s *service) complete(ctx context.Context, acct *domain.Account, first, last string) (*Outcome, error) {
	p, created, err := s.profiles.Provision(ctx, domain.ProvisionProfileRequest{
		AuthID:    acct.AuthID,
		Email:     acct.Email,
		FirstName: first,
		LastName:  last,
	})
	if err != nil {
		return nil, fmt.Errorf("provision profile: %w", err)
	}
	sess, err := s.accounts.IssueSession(ctx, acct)
	if err != nil {
		return nil, err
	}
	d := s.routes.Decide(session.RouteState{
		HasSession:       true,
		ProfileCompleted: p.ProfileCompleted,
		Path:             s.proof,
		InFlow:           true,
	})
	slog.InfoContext(ctx, "signed in", "auth_id", acct.AuthID, "profile_created", created, "redirect", d.Redirect)
	return &Outcome{Session: sess, Profile: p, Created: created, Redirect: d.Redirect}, nil
}

func namesFrom(data map[string]interface{}) (string, string) {
	pick := func(keys ...string) string {
		for _, k := range keys {
			if v, ok := data[k].(string); ok && v != "" {
				return v
			}
		}
		return ""
	}
	first := pick("first_name", "firstName")
	last := pick("last_name", "lastName")
	if first == "" && last == "" {
		first = pick("name")
	}
	return first, last
}
