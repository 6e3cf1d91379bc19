package profile

import (
	"context"
	"sync"
)

// MemoryStore keeps profiles in process. It backs the API when postgres is unavailable.
type MemoryStore struct {
	mu       sync.Mutex
	profiles map[string]Profile
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{profiles: map[string]Profile{}}
}

func (m *MemoryStore) Load(_ context.Context, userID string) (Profile, error) {
	if userID == "" {
		return Profile{}, ErrInvalidUser
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[userID]
	if !ok {
		return newProfile(userID), nil
	}
	return p.clone(), nil
}

func (m *MemoryStore) Mutate(_ context.Context, userID string, fn func(*Profile) error) (Profile, error) {
	if userID == "" {
		return Profile{}, ErrInvalidUser
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.profiles[userID]
	if !ok {
		p = newProfile(userID)
	}
	p = p.clone()
	if err := fn(&p); err != nil {
		return Profile{}, err
	}
	m.profiles[userID] = p
	return p.clone(), nil
}

func (m *MemoryStore) IncrementProfileStats(ctx context.Context, userID string, d StatsDelta) error {
	_, err := m.Mutate(ctx, userID, func(p *Profile) error {
		d.apply(p)
		return nil
	})
	return err
}
