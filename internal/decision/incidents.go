package decision

import (
	"context"
	"slices"
	"sync"

	"go-antiraid/internal/config"
	"go-antiraid/internal/models"
)

type SettingsStore interface {
	Get(ctx context.Context, guildID string) (config.RaidProtectionSettings, error)
	Update(ctx context.Context, guildID string, settings config.RaidProtectionSettings) error
}

type IncidentStore interface {
	Append(ctx context.Context, inc models.RaidIncident) error
	// Recent returns up to limit incidents, newest first.
	Recent(ctx context.Context, guildID string, limit int) ([]models.RaidIncident, error)
}

// MemIncidentStore keeps incidents in memory in arrival order.
type MemIncidentStore struct {
	mu        sync.Mutex
	incidents map[string][]models.RaidIncident
}

func NewMemIncidentStore() *MemIncidentStore {
	return &MemIncidentStore{incidents: make(map[string][]models.RaidIncident)}
}

func (s *MemIncidentStore) Append(ctx context.Context, inc models.RaidIncident) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	inc.AffectedAccounts = slices.Clone(inc.AffectedAccounts)
	s.incidents[inc.GuildID] = append(s.incidents[inc.GuildID], inc)
	return nil
}

func (s *MemIncidentStore) Recent(ctx context.Context, guildID string, limit int) ([]models.RaidIncident, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := s.incidents[guildID]
	if limit <= 0 {
		return nil, nil
	}
	out := make([]models.RaidIncident, 0, min(limit, len(all)))
	for i := len(all) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, all[i])
	}
	return out, nil
}
