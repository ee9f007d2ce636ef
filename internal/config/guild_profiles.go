package config

import (
	"context"
	"sync"
)

// ProfileStore keeps raid settings in memory. It backs tests and deployments
// that run without a database.
type ProfileStore struct {
	mu       sync.RWMutex
	profiles map[string]RaidProtectionSettings
}

func NewProfileStore() *ProfileStore {
	return &ProfileStore{
		profiles: make(map[string]RaidProtectionSettings),
	}
}

// Get returns the guild's settings, creating the default record on first read.
func (ps *ProfileStore) Get(ctx context.Context, guildID string) (RaidProtectionSettings, error) {
	ps.mu.RLock()
	profile, exists := ps.profiles[guildID]
	ps.mu.RUnlock()

	if exists {
		return profile.Clone(), nil
	}
	return ps.getOrCreate(guildID), nil
}

func (ps *ProfileStore) getOrCreate(guildID string) RaidProtectionSettings {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	if profile, exists := ps.profiles[guildID]; exists {
		return profile.Clone()
	}

	profile := DefaultRaidSettings()
	ps.profiles[guildID] = profile
	return profile.Clone()
}

func (ps *ProfileStore) Update(ctx context.Context, guildID string, settings RaidProtectionSettings) error {
	if err := settings.Validate(); err != nil {
		return err
	}

	settings.Version = SettingsVersion

	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.profiles[guildID] = settings.Clone()
	return nil
}

func (ps *ProfileStore) Guilds() []string {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	guilds := make([]string, 0, len(ps.profiles))
	for id := range ps.profiles {
		guilds = append(guilds, id)
	}
	return guilds
}
