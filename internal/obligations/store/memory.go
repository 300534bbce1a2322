package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"fiscus/internal/obligations/models"
	"fiscus/pkg/platform/sentinel"
)

// MemoryStore keeps payloads in process. Used for local runs and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string][]byte
}

func NewMemory() *MemoryStore {
	return &MemoryStore{records: make(map[string][]byte)}
}

func (s *MemoryStore) GetClientRecord(ctx context.Context, clientID string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	payload, ok := s.records[clientID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return append([]byte(nil), payload...), nil
}

func (s *MemoryStore) UpdateClientRecord(ctx context.Context, clientID string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !json.Valid(payload) {
		return fmt.Errorf("update client record %s: %w", clientID, sentinel.ErrRejected)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[clientID] = append([]byte(nil), payload...)
	return nil
}

// MemoryProfiles serves client profiles from a map.
type MemoryProfiles struct {
	mu       sync.RWMutex
	profiles map[string]models.ClientProfile
}

func NewMemoryProfiles(profiles ...models.ClientProfile) *MemoryProfiles {
	p := &MemoryProfiles{profiles: make(map[string]models.ClientProfile, len(profiles))}
	for _, profile := range profiles {
		p.profiles[profile.ID] = profile
	}
	return p
}

// Put adds or replaces a profile.
func (p *MemoryProfiles) Put(profile models.ClientProfile) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.profiles[profile.ID] = profile
}

func (p *MemoryProfiles) Profile(_ context.Context, clientID string) (models.ClientProfile, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	profile, ok := p.profiles[clientID]
	if !ok {
		return models.ClientProfile{}, fmt.Errorf("profile %s: %w", clientID, sentinel.ErrNotFound)
	}
	return profile, nil
}
