package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alumni-api/internal/application/account"
	"github.com/alumni-api/internal/application/otp"
	"github.com/alumni-api/internal/application/profile"
	"github.com/alumni-api/internal/application/session"
	"github.com/alumni-api/internal/application/signin"
	"github.com/alumni-api/internal/config"
	jwtinfra "github.com/alumni-api/internal/infrastructure/jwt"
	s3infra "github.com/alumni-api/internal/infrastructure/s3"
	transporthttp "github.com/alumni-api/internal/transport/http"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, reading from environment")
	}

	cfg := config.Load()
	setupLogger(cfg)

	if err := run(cfg); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func setupLogger(cfg *config.Config) {
	var h slog.Handler
	if cfg.IsProduction() {
		h = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	} else {
		h = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	}
	slog.SetDefault(slog.New(h))
}

func run(cfg *config.Config) error {
	ctx := context.Background()

	jwtProvider, err := jwtinfra.NewProvider(cfg)
	if err != nil {
		return fmt.Errorf("jwt provider: %w", err)
	}

	b := newBackends(cfg)
	defer b.close()

	otpStore, err := b.otpStore(ctx)
	if err != nil {
		return err
	}
	profileStore, err := b.profileStore(ctx)
	if err != nil {
		return err
	}
	accountStore, err := b.accountStore(ctx)
	if err != nil {
		return err
	}
	deliverer, err := b.deliverer()
	if err != nil {
		return err
	}

	otpSvc := otp.NewService(otp.ServiceDeps{
		Store:       otpStore,
		Deliverer:   deliverer,
		TTL:         cfg.OTPTTL,
		MaxAttempts: cfg.OTPMaxAttempts,
		ExposeCode:  !cfg.IsProduction(),
	})
	profileSvc := profile.NewService(profile.ServiceDeps{
		ProfileRepo: profileStore,
		FileStore:   s3infra.NewStore(s3infra.NewClient(cfg), cfg),
	})
	accountSvc := account.NewService(account.ServiceDeps{
		AccountRepo: accountStore,
		JWTProvider: jwtProvider,
	})
	sessionSvc := session.NewService(cfg.Routes)
	signinSvc := signin.NewService(signin.ServiceDeps{
		OTP:       otpSvc,
		Accounts:  accountSvc,
		Profiles:  profileSvc,
		Decider:   sessionSvc,
		ProofPath: cfg.Routes.Proof,
	})

	router := transporthttp.NewRouter(cfg, &transporthttp.Deps{
		OTP:         otpSvc,
		SignIn:      signinSvc,
		Profiles:    profileSvc,
		Session:     sessionSvc,
		JWTProvider: jwtProvider,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting",
			"port", cfg.AppPort, "env", cfg.AppEnv,
			"otp_store", cfg.OTPStore, "profile_store", cfg.ProfileStore,
			"account_store", cfg.AccountStore, "otp_delivery", cfg.OTPDelivery)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-quit:
	}

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}
	slog.Info("server stopped")
	return nil
}
