package state

import (
	"context"
	"sync"
	"time"
)

type memMarker struct {
	raidID    string
	expiresAt time.Time
}

type MemMarkerStore struct {
	mu      sync.Mutex
	markers map[string]memMarker
	now     func() time.Time
}

var _ RaidMarkerStore = (*MemMarkerStore)(nil)

func NewMemMarkerStore() *MemMarkerStore {
	return &MemMarkerStore{
		markers: make(map[string]memMarker),
		now:     time.Now,
	}
}

func (s *MemMarkerStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

// live must be called with mu held.
func (s *MemMarkerStore) live(guildID string) (memMarker, bool) {
	m, ok := s.markers[guildID]
	if !ok {
		return memMarker{}, false
	}
	if !m.expiresAt.IsZero() && !s.now().Before(m.expiresAt) {
		delete(s.markers, guildID)
		return memMarker{}, false
	}
	return m, true
}

func (s *MemMarkerStore) TryStart(ctx context.Context, guildID, raidID string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.live(guildID); ok {
		return false, nil
	}
	m := memMarker{raidID: raidID}
	if ttl > 0 {
		m.expiresAt = s.now().Add(ttl)
	}
	s.markers[guildID] = m
	return true, nil
}

func (s *MemMarkerStore) Get(ctx context.Context, guildID string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.live(guildID)
	return m.raidID, ok, nil
}

func (s *MemMarkerStore) Clear(ctx context.Context, guildID, raidID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.live(guildID)
	if !ok || m.raidID != raidID {
		return false, nil
	}
	delete(s.markers, guildID)
	return true, nil
}
