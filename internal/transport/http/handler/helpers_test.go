package handler

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alumni-api/internal/application/signin"
	"github.com/alumni-api/internal/config"
	"github.com/alumni-api/internal/domain"
	jwtinfra "github.com/alumni-api/internal/infrastructure/jwt"
	"github.com/alumni-api/internal/transport/http/middleware"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockOTPSvc struct{ mock.Mock }

func (m *mockOTPSvc) Issue(ctx context.Context, email string, userData map[string]interface{}) (*domain.IssueResult, error) {
	args := m.Called(ctx, email, userData)
	if r, _ := args.Get(0).(*domain.IssueResult); r != nil {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockOTPSvc) Verify(ctx context.Context, email, code string) (*domain.VerifyResult, error) {
	args := m.Called(ctx, email, code)
	if r, _ := args.Get(0).(*domain.VerifyResult); r != nil {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

type mockSigninSvc struct{ mock.Mock }

func (m *mockSigninSvc) outcome(args mock.Arguments) (*signin.Outcome, error) {
	if o, _ := args.Get(0).(*signin.Outcome); o != nil {
		return o, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockSigninSvc) VerifyOTP(ctx context.Context, email, code string) (*signin.Outcome, error) {
	return m.outcome(m.Called(ctx, email, code))
}

func (m *mockSigninSvc) SignUp(ctx context.Context, req domain.SignUpRequest) (*signin.Outcome, error) {
	return m.outcome(m.Called(ctx, req))
}

func (m *mockSigninSvc) Login(ctx context.Context, req domain.LoginRequest) (*signin.Outcome, error) {
	return m.outcome(m.Called(ctx, req))
}

type mockProfileSvc struct{ mock.Mock }

func profileResult(args mock.Arguments) (*domain.Profile, error) {
	if p, _ := args.Get(0).(*domain.Profile); p != nil {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockProfileSvc) Provision(ctx context.Context, req domain.ProvisionProfileRequest) (*domain.Profile, bool, error) {
	args := m.Called(ctx, req)
	p, _ := args.Get(0).(*domain.Profile)
	return p, args.Bool(1), args.Error(2)
}

func (m *mockProfileSvc) Complete(ctx context.Context, authID string, req domain.CompleteProfileRequest) (*domain.Profile, error) {
	return profileResult(m.Called(ctx, authID, req))
}

func (m *mockProfileSvc) Get(ctx context.Context, authID string) (*domain.Profile, error) {
	return profileResult(m.Called(ctx, authID))
}

func (m *mockProfileSvc) Update(ctx context.Context, authID string, req domain.UpdateProfileRequest) (*domain.Profile, error) {
	return profileResult(m.Called(ctx, authID, req))
}

func (m *mockProfileSvc) Delete(ctx context.Context, authID string) error {
	return m.Called(ctx, authID).Error(0)
}

func (m *mockProfileSvc) UploadAvatar(ctx context.Context, authID string, r io.Reader, contentType string) (*domain.Profile, error) {
	return profileResult(m.Called(ctx, authID, r, contentType))
}

// --- helpers ---

// newTestJWTProvider generates a fresh RSA key pair and returns a *jwtinfra.Provider.
func newTestJWTProvider(t *testing.T) *jwtinfra.Provider {
	t.Helper()
	privKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	dir := t.TempDir()
	privPath := filepath.Join(dir, "private.pem")
	pubPath := filepath.Join(dir, "public.pem")

	privPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(privKey)})
	require.NoError(t, os.WriteFile(privPath, privPEM, 0600))

	pubBytes, err := x509.MarshalPKIXPublicKey(&privKey.PublicKey)
	require.NoError(t, err)
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubBytes})
	require.NoError(t, os.WriteFile(pubPath, pubPEM, 0600))

	p, err := jwtinfra.NewProvider(&config.Config{
		JWTPrivateKeyPath: privPath,
		JWTPublicKeyPath:  pubPath,
		JWTExpiry:         24 * time.Hour,
	})
	require.NoError(t, err)
	return p
}

// bearerReq builds a request with a signed Bearer token for authID.
func bearerReq(t *testing.T, p *jwtinfra.Provider, method, target, authID string, body []byte) *http.Request {
	t.Helper()
	token, _, err := p.Sign(authID, authID+"@example.com")
	require.NoError(t, err)
	var r *http.Request
	if body != nil {
		r = httptest.NewRequest(method, target, bytes.NewReader(body))
	} else {
		r = httptest.NewRequest(method, target, nil)
	}
	r.Header.Set("Authorization", "Bearer "+token)
	return r
}

// serveAuthed wraps the handler with middleware.Auth before serving.
func serveAuthed(p *jwtinfra.Provider, h http.Handler, w http.ResponseWriter, r *http.Request) {
	middleware.Auth(p)(h).ServeHTTP(w, r)
}

func serveOptional(p *jwtinfra.Provider, h http.Handler, w http.ResponseWriter, r *http.Request) {
	middleware.OptionalAuth(p)(h).ServeHTTP(w, r)
}
