package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alumni-api/internal/application/otp"
	"github.com/alumni-api/internal/application/profile"
	"github.com/alumni-api/internal/config"
	"github.com/alumni-api/internal/domain"
	"github.com/alumni-api/internal/infrastructure/dynamo"
	"github.com/alumni-api/internal/infrastructure/memory"
	"github.com/alumni-api/internal/infrastructure/postgres"
	redisinfra "github.com/alumni-api/internal/infrastructure/redis"
	"github.com/alumni-api/internal/infrastructure/smtp"
	snsinfra "github.com/alumni-api/internal/infrastructure/sns"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
)

type accountStore interface {
	Get(ctx context.Context, email string) (*domain.Account, error)
	Create(ctx context.Context, a *domain.Account) error
}

// backends lazily opens each external client the first time a selected store
// needs it, and bootstraps its schema once.
type backends struct {
	cfg    *config.Config
	dynamo *dynamodb.Client
	redis  *goredis.Client
	pg     *pgxpool.Pool
}

func newBackends(cfg *config.Config) *backends {
	return &backends{cfg: cfg}
}

func (b *backends) dynamoClient(ctx context.Context) *dynamodb.Client {
	if b.dynamo == nil {
		b.dynamo = dynamo.NewClient(b.cfg)
		dynamo.Bootstrap(ctx, b.dynamo, b.cfg.DynamoTables)
	}
	return b.dynamo
}

func (b *backends) otpStore(ctx context.Context) (otp.Store, error) {
	switch b.cfg.OTPStore {
	case "memory":
		if b.cfg.IsProduction() {
			slog.Warn("in-memory OTP store does not share codes across instances")
		}
		return memory.NewOTPStore(), nil
	case "redis":
		rdb, err := redisinfra.NewClient(ctx, b.cfg)
		if err != nil {
			return nil, err
		}
		b.redis = rdb
		return redisinfra.NewOTPStore(rdb), nil
	case "dynamo":
		return dynamo.NewOTPRepo(b.dynamoClient(ctx), b.cfg.DynamoTables.OTPCodes), nil
	default:
		return nil, fmt.Errorf("unknown OTP_STORE %q", b.cfg.OTPStore)
	}
}

func (b *backends) profileStore(ctx context.Context) (profile.Store, error) {
	switch b.cfg.ProfileStore {
	case "memory":
		return memory.NewProfileStore(), nil
	case "postgres":
		pool, err := postgres.NewPool(ctx, b.cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		b.pg = pool
		if err := postgres.Bootstrap(ctx, pool); err != nil {
			return nil, err
		}
		return postgres.NewProfileRepo(pool), nil
	case "dynamo":
		t := b.cfg.DynamoTables
		return dynamo.NewProfileRepo(b.dynamoClient(ctx), t.Profiles, t.ProfileEmails), nil
	default:
		return nil, fmt.Errorf("unknown PROFILE_STORE %q", b.cfg.ProfileStore)
	}
}

func (b *backends) accountStore(ctx context.Context) (accountStore, error) {
	switch b.cfg.AccountStore {
	case "memory":
		return memory.NewAccountStore(), nil
	case "dynamo":
		return dynamo.NewAccountRepo(b.dynamoClient(ctx), b.cfg.DynamoTables.Accounts), nil
	default:
		return nil, fmt.Errorf("unknown ACCOUNT_STORE %q", b.cfg.AccountStore)
	}
}

func (b *backends) deliverer() (otp.Deliverer, error) {
	switch b.cfg.OTPDelivery {
	case "smtp":
		return otp.NewEmailDeliverer(smtp.NewMailer(b.cfg)), nil
	case "sns":
		client, err := snsinfra.NewClient(b.cfg)
		if err != nil {
			return nil, err
		}
		return otp.NewTopicDeliverer(snsinfra.NewPublisher(client, b.cfg.SNSTopicARN)), nil
	case "log":
		return otp.NewLogDeliverer(!b.cfg.IsProduction()), nil
	default:
		return nil, fmt.Errorf("unknown OTP_DELIVERY %q", b.cfg.OTPDelivery)
	}
}

func (b *backends) close() {
	if b.redis != nil {
		_ = b.redis.Close()
	}
	if b.pg != nil {
		b.pg.Close()
	}
}
