package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/alumni-api/internal/domain"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
)

// ProfileStore enforces the auth_id and email uniqueness of the profiles
// table in process memory.
type ProfileStore struct {
	mu      sync.RWMutex
	byAuth  map[string]domain.Profile
	byEmail map[string]string // email -> auth_id
}

func NewProfileStore() *ProfileStore {
	return &ProfileStore{
		byAuth:  make(map[string]domain.Profile),
		byEmail: make(map[string]string),
	}
}

func (s *ProfileStore) GetByAuthID(ctx context.Context, authID string) (*domain.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.byAuth[authID]
	if !ok {
		return nil, fmt.Errorf("profile not found: %w", domain.ErrNotFound)
	}
	return &p, nil
}

// InsertOrGet stores p unless a profile with the same auth_id or email exists,
// in which case the existing row is returned with created=false.
func (s *ProfileStore) InsertOrGet(ctx context.Context, p *domain.Profile) (*domain.Profile, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.byAuth[p.AuthID]; ok {
		return &existing, false, nil
	}
	if owner, ok := s.byEmail[p.Email]; ok {
		existing := s.byAuth[owner]
		return &existing, false, nil
	}
	s.byAuth[p.AuthID] = *p
	s.byEmail[p.Email] = p.AuthID
	out := *p
	return &out, true, nil
}

// Update applies attribute-name keyed updates to an existing profile.
// The attributevalue codec keeps the field names identical to the DynamoDB store.
func (s *ProfileStore) Update(ctx context.Context, authID string, updates map[string]interface{}) (*domain.Profile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byAuth[authID]
	if !ok {
		return nil, fmt.Errorf("profile not found: %w", domain.ErrNotFound)
	}
	item, err := attributevalue.MarshalMap(p)
	if err != nil {
		return nil, fmt.Errorf("marshal profile: %w", err)
	}
	for k, v := range updates {
		av, err := attributevalue.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("marshal field %s: %w", k, err)
		}
		item[k] = av
	}
	var out domain.Profile
	if err := attributevalue.UnmarshalMap(item, &out); err != nil {
		return nil, fmt.Errorf("unmarshal profile: %w", err)
	}
	s.byAuth[authID] = out
	return &out, nil
}

// Len returns the number of stored profiles.
func (s *ProfileStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byAuth)
}
