package http

import (
	"net/http"

	"github.com/alumni-api/internal/application/otp"
	"github.com/alumni-api/internal/application/profile"
	"github.com/alumni-api/internal/application/session"
	"github.com/alumni-api/internal/application/signin"
	"github.com/alumni-api/internal/config"
	jwtinfra "github.com/alumni-api/internal/infrastructure/jwt"
	"github.com/alumni-api/internal/transport/http/handler"
	appmiddleware "github.com/alumni-api/internal/transport/http/middleware"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/time/rate"
)

// Deps holds the application services the router exposes.
type Deps struct {
	OTP         otp.Service
	SignIn      signin.Service
	Profiles    profile.Service
	Session     session.Service
	JWTProvider *jwtinfra.Provider
}

// NewRouter builds and returns the application router.
func NewRouter(cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	if cfg.TrustProxy {
		r.Use(chimiddleware.RealIP)
	}
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	authMw := appmiddleware.Auth(deps.JWTProvider)
	optionalAuth := appmiddleware.OptionalAuth(deps.JWTProvider)

	// OTP issuance is the expensive, abusable path: 1 request/second, burst of 5.
	issueRL := appmiddleware.NewRateLimiter(rate.Limit(1), 5)
	// Verification and password endpoints: 5 requests/second, burst of 10.
	sensitiveRL := appmiddleware.NewRateLimiter(rate.Limit(5), 10)

	healthH := handler.NewHealthHandler()
	otpH := handler.NewOTPHandler(deps.OTP)
	authH := handler.NewAuthHandler(deps.SignIn)
	profileH := handler.NewProfileHandler(deps.Profiles)
	sessionH := handler.NewSessionHandler(deps.Session, deps.Profiles)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/health-check/{action}", healthH.Ping)

		r.With(issueRL.Limit).Post("/otp/send", otpH.Send)
		r.With(sensitiveRL.Limit).Get("/otp/verify", otpH.Verify)
		r.With(sensitiveRL.Limit).Post("/otp/verify", otpH.Verify)

		r.Route("/auth", func(r chi.Router) {
			r.Use(sensitiveRL.Limit)
			r.Post("/otp/verify", authH.VerifyOTP)
			r.Post("/signup", authH.SignUp)
			r.Post("/login", authH.Login)
		})

		r.With(optionalAuth).Get("/session/route", sessionH.Route)
		r.With(optionalAuth).Post("/profiles", profileH.Provision)

		r.Group(func(r chi.Router) {
			r.Use(authMw)
			r.Get("/profiles/me", profileH.Me)
			r.Put("/profiles/me", profileH.Update)
			r.Put("/profiles/me/complete", profileH.Complete)
			r.Put("/profiles/me/avatar", profileH.UploadAvatar)
			r.Delete("/profiles/me", profileH.Delete)
		})
	})

	return r
}
