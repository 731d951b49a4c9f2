// Package memory holds single-process stores used for local runs and tests.
package memory

import (
	"context"
	"sync"

	"github.com/alumni-api/internal/domain"
	"github.com/cespare/xxhash/v2"
)

const otpShards = 64

type otpShard struct {
	mu      sync.Mutex
	records map[string]domain.OTPRecord
}

// OTPStore keeps one live OTP per email. Each email hashes to a shard with its
// own mutex, so contention is scoped to identities sharing a shard.
type OTPStore struct {
	shards [otpShards]otpShard
}

func NewOTPStore() *OTPStore {
	s := &OTPStore{}
	for i := range s.shards {
		s.shards[i].records = make(map[string]domain.OTPRecord)
	}
	return s
}

func (s *OTPStore) shard(email string) *otpShard {
	return &s.shards[xxhash.Sum64String(email)%otpShards]
}

// Put stores rec, replacing any live code for the same email.
func (s *OTPStore) Put(ctx context.Context, rec *domain.OTPRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	sh := s.shard(rec.Email)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	sh.records[rec.Email] = cloneOTP(*rec)
	return nil
}

// Apply runs fn against the live record for email and persists its decision
// while holding the shard lock.
func (s *OTPStore) Apply(ctx context.Context, email string, fn domain.OTPMutator) error {
	sh := s.shard(email)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}

	var rec *domain.OTPRecord
	if cur, ok := sh.records[email]; ok {
		c := cloneOTP(cur)
		rec = &c
	}
	switch fn(rec) {
	case domain.OTPSave:
		if rec == nil {
			return nil
		}
		rec.Version++
		sh.records[email] = cloneOTP(*rec)
	case domain.OTPDelete:
		delete(sh.records, email)
	}
	return nil
}

// Len returns the number of stored records.
func (s *OTPStore) Len() int {
	n := 0
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.Lock()
		n += len(sh.records)
		sh.mu.Unlock()
	}
	return n
}

func cloneOTP(r domain.OTPRecord) domain.OTPRecord {
	if r.UserData != nil {
		m := make(map[string]interface{}, len(r.UserData))
		for k, v := range r.UserData {
			m[k] = v
		}
		r.UserData = m
	}
	return r
}
