package profiles

import (
	"context"
	"sync"
	"time"

	apperr "github.com/Alexander-D-Karpov/tandem/internal/common/errors"
)

// MemoryStore keeps profiles in process memory. It backs PROFILE_STORE=memory
// and tests.
type MemoryStore struct {
	mu       sync.RWMutex
	profiles map[int64]Profile
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		profiles: make(map[int64]Profile),
		now:      time.Now,
	}
}

func (s *MemoryStore) Get(_ context.Context, participantID int64) (*Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[participantID]
	if !ok {
		return nil, apperr.NotFound("profile not found")
	}
	return &p, nil
}

func (s *MemoryStore) Save(_ context.Context, p *Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if existing, ok := s.profiles[p.ParticipantID]; ok {
		p.CreatedAt = existing.CreatedAt
	} else {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	s.profiles[p.ParticipantID] = *p
	return nil
}
