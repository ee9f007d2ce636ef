package commands

import (
	"context"
	"fmt"
	"time"

	"go-antiraid/internal/config"
	"go-antiraid/internal/decision"
	"go-antiraid/internal/models"
)

const (
	DefaultIncidentLimit = 10
	MaxIncidentLimit     = 25
)

// RaidControl is the part of the engine administrators drive directly.
type RaidControl interface {
	TriggerLockdown(ctx context.Context, guildID, reason string) (int, error)
	EndLockdown(ctx context.Context, guildID string) (int, error)
	IsLocked(guildID string) bool
	RecentIncidents(ctx context.Context, guildID string, limit int) ([]models.RaidIncident, error)
	Status(ctx context.Context, guildID string) (decision.Status, error)
}

// Admin is the administrative surface over per-guild settings and the engine.
// Every setter validates the whole record before it is stored.
type Admin struct {
	settings decision.SettingsStore
	engine   RaidControl
}

func NewAdmin(settings decision.SettingsStore, engine RaidControl) *Admin {
	return &Admin{settings: settings, engine: engine}
}

func (a *Admin) update(ctx context.Context, guildID string, mutate func(s *config.RaidProtectionSettings) error) (config.RaidProtectionSettings, error) {
	current, err := a.settings.Get(ctx, guildID)
	if err != nil {
		return config.RaidProtectionSettings{}, err
	}
	next := current.Clone()
	if err := mutate(&next); err != nil {
		return current, err
	}
	if err := a.settings.Update(ctx, guildID, next); err != nil {
		return current, err
	}
	return next, nil
}

func (a *Admin) Settings(ctx context.Context, guildID string) (config.RaidProtectionSettings, error) {
	return a.settings.Get(ctx, guildID)
}

func (a *Admin) SetEnabled(ctx context.Context, guildID string, enabled bool) (config.RaidProtectionSettings, error) {
	return a.update(ctx, guildID, func(s *config.RaidProtectionSettings) error {
		s.Enabled = enabled
		return nil
	})
}

func (a *Admin) SetActionType(ctx context.Context, guildID, action string) (config.RaidProtectionSettings, error) {
	at, err := models.ParseActionType(action)
	if err != nil {
		return config.RaidProtectionSettings{}, err
	}
	return a.update(ctx, guildID, func(s *config.RaidProtectionSettings) error {
		s.ActionType = at
		return nil
	})
}

// SetJoinThreshold sets the join count and the window it is counted over.
func (a *Admin) SetJoinThreshold(ctx context.Context, guildID string, threshold int, windowMs int64) (config.RaidProtectionSettings, error) {
	return a.update(ctx, guildID, func(s *config.RaidProtectionSettings) error {
		s.JoinThreshold = threshold
		s.JoinTimeWindowMs = windowMs
		return nil
	})
}

func (a *Admin) SetAccountAgeDays(ctx context.Context, guildID string, days int) (config.RaidProtectionSettings, error) {
	return a.update(ctx, guildID, func(s *config.RaidProtectionSettings) error {
		s.AccountAgeDaysMin = days
		return nil
	})
}

func (a *Admin) AddExemptRole(ctx context.Context, guildID, roleID string) (config.RaidProtectionSettings, error) {
	return a.update(ctx, guildID, func(s *config.RaidProtectionSettings) error {
		if !s.AddExemptRole(roleID) {
			return &models.ConfigurationError{Field: "ExemptRoles", Reason: fmt.Sprintf("role %s is already exempt", roleID)}
		}
		return nil
	})
}

func (a *Admin) RemoveExemptRole(ctx context.Context, guildID, roleID string) (config.RaidProtectionSettings, error) {
	return a.update(ctx, guildID, func(s *config.RaidProtectionSettings) error {
		if !s.RemoveExemptRole(roleID) {
			return fmt.Errorf("role %s: %w", roleID, models.ErrNotFound)
		}
		return nil
	})
}

func (a *Admin) AddExemptChannel(ctx context.Context, guildID, channelID string) (config.RaidProtectionSettings, error) {
	return a.update(ctx, guildID, func(s *config.RaidProtectionSettings) error {
		if !s.AddExemptChannel(channelID) {
			return &models.ConfigurationError{Field: "ExemptChannels", Reason: fmt.Sprintf("channel %s is already exempt", channelID)}
		}
		return nil
	})
}

func (a *Admin) RemoveExemptChannel(ctx context.Context, guildID, channelID string) (config.RaidProtectionSettings, error) {
	return a.update(ctx, guildID, func(s *config.RaidProtectionSettings) error {
		if !s.RemoveExemptChannel(channelID) {
			return fmt.Errorf("channel %s: %w", channelID, models.ErrNotFound)
		}
		return nil
	})
}

// SetAlertChannel sets where raid alerts go. An empty ID turns alerts off.
func (a *Admin) SetAlertChannel(ctx context.Context, guildID, channelID string) (config.RaidProtectionSettings, error) {
	return a.update(ctx, guildID, func(s *config.RaidProtectionSettings) error {
		s.AlertChannelID = channelID
		return nil
	})
}

func (a *Admin) SetNotifyRole(ctx context.Context, guildID, roleID string) (config.RaidProtectionSettings, error) {
	return a.update(ctx, guildID, func(s *config.RaidProtectionSettings) error {
		s.NotifyRoleID = roleID
		return nil
	})
}

// SetLockdownDuration sets how long a lockdown lasts; zero keeps it until ended by hand.
func (a *Admin) SetLockdownDuration(ctx context.Context, guildID string, d time.Duration) (config.RaidProtectionSettings, error) {
	return a.update(ctx, guildID, func(s *config.RaidProtectionSettings) error {
		s.LockdownDurationMs = d.Milliseconds()
		return nil
	})
}

func (a *Admin) SetMentionThreshold(ctx context.Context, guildID string, mentions int) (config.RaidProtectionSettings, error) {
	return a.update(ctx, guildID, func(s *config.RaidProtectionSettings) error {
		s.MentionThreshold = mentions
		return nil
	})
}

func (a *Admin) SetSimilarNameThreshold(ctx context.Context, guildID string, threshold float64) (config.RaidProtectionSettings, error) {
	return a.update(ctx, guildID, func(s *config.RaidProtectionSettings) error {
		s.SimilarNameThreshold = threshold
		return nil
	})
}

func (a *Admin) TriggerLockdown(ctx context.Context, guildID, reason string) (int, error) {
	return a.engine.TriggerLockdown(ctx, guildID, reason)
}

// EndLockdown returns models.ErrNotLocked when there was nothing to restore.
func (a *Admin) EndLockdown(ctx context.Context, guildID string) (int, error) {
	wasLocked := a.engine.IsLocked(guildID)
	n, err := a.engine.EndLockdown(ctx, guildID)
	if err != nil {
		return n, err
	}
	if n == 0 && !wasLocked {
		return 0, models.ErrNotLocked
	}
	return n, nil
}

// RecentIncidents clamps limit to 1..25; zero or less means the default of 10.
func (a *Admin) RecentIncidents(ctx context.Context, guildID string, limit int) ([]models.RaidIncident, error) {
	switch {
	case limit <= 0:
		limit = DefaultIncidentLimit
	case limit > MaxIncidentLimit:
		limit = MaxIncidentLimit
	}
	return a.engine.RecentIncidents(ctx, guildID, limit)
}

type GuildStatus struct {
	Settings config.RaidProtectionSettings
	Engine   decision.Status
}

func (a *Admin) Status(ctx context.Context, guildID string) (GuildStatus, error) {
	settings, err := a.settings.Get(ctx, guildID)
	if err != nil {
		return GuildStatus{}, err
	}
	st, err := a.engine.Status(ctx, guildID)
	if err != nil {
		return GuildStatus{Settings: settings}, err
	}
	return GuildStatus{Settings: settings, Engine: st}, nil
}
