package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/alumni-api/internal/domain"
	goredis "github.com/redis/go-redis/v9"
)

const (
	otpKeyPrefix = "otp:"
	maxTxRetries = 8
)

// Expired records stay readable for this long past ExpiresAt so a late
// verification still reports Expired instead of NoCode.
const expiredRetention = time.Hour

var errOTPContention = errors.New("otp record changed concurrently")

// OTPStore keeps one JSON-encoded OTP per email. Apply runs inside
// WATCH/MULTI so concurrent verifications of the same email serialize.
type OTPStore struct {
	rdb *goredis.Client
	now func() time.Time
}

func NewOTPStore(rdb *goredis.Client) *OTPStore {
	return &OTPStore{rdb: rdb, now: time.Now}
}

func otpKey(email string) string { return otpKeyPrefix + email }

func (s *OTPStore) Put(ctx context.Context, rec *domain.OTPRecord) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal otp: %w", err)
	}
	return s.rdb.Set(ctx, otpKey(rec.Email), b, s.retention(rec)).Err()
}

func (s *OTPStore) retention(rec *domain.OTPRecord) time.Duration {
	ttl := rec.ExpiresAt.Sub(s.now()) + expiredRetention
	if ttl < time.Second {
		ttl = time.Second
	}
	return ttl
}

func (s *OTPStore) Apply(ctx context.Context, email string, fn domain.OTPMutator) error {
	key := otpKey(email)
	txf := func(tx *goredis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, goredis.Nil) {
			fn(nil)
			return nil
		}
		if err != nil {
			return err
		}
		var rec domain.OTPRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return fmt.Errorf("unmarshal otp: %w", err)
		}

		op := fn(&rec)
		if op == domain.OTPKeep {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			if op == domain.OTPDelete {
				pipe.Del(ctx, key)
				return nil
			}
			rec.Version++
			b, err := json.Marshal(&rec)
			if err != nil {
				return err
			}
			pipe.Set(ctx, key, b, goredis.KeepTTL)
			return nil
		})
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := s.rdb.Watch(ctx, txf, key)
		if errors.Is(err, goredis.TxFailedErr) {
			continue
		}
		return err
	}
	return errOTPContention
}
