package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"go-antiraid/internal/models"
)

// SettingsVersion is the schema version written with every persisted settings record.
const SettingsVersion = 1

const dayMs = 86_400_000

// RaidProtectionSettings is the per-guild raid protection configuration.
type RaidProtectionSettings struct {
	Version              int               `json:"version"`
	Enabled              bool              `json:"enabled"`
	ActionType           models.ActionType `json:"action_type" validate:"oneof=lockdown ban kick"`
	JoinThreshold        int               `json:"join_threshold" validate:"min=1,max=1000"`
	JoinTimeWindowMs     int64             `json:"join_time_window_ms" validate:"min=1000,max=3600000"`
	AccountAgeDaysMin    int               `json:"account_age_days_min" validate:"min=0,max=3650"`
	SimilarNameThreshold float64           `json:"similar_name_threshold" validate:"gte=0,lte=1"`
	MentionThreshold     int               `json:"mention_threshold" validate:"min=1,max=500"`
	ExemptRoles          []string          `json:"exempt_roles"`
	ExemptChannels       []string          `json:"exempt_channels"`
	AlertChannelID       string            `json:"alert_channel_id,omitempty"`
	NotifyRoleID         string            `json:"notify_role_id,omitempty"`
	LockdownDurationMs   int64             `json:"lockdown_duration_ms" validate:"min=0"`
	AutoModeDurationMs   int64             `json:"auto_mode_duration_ms" validate:"min=1000"`
}

func DefaultRaidSettings() RaidProtectionSettings {
	return RaidProtectionSettings{
		Version:              SettingsVersion,
		Enabled:              false,
		ActionType:           models.ActionLockdown,
		JoinThreshold:        10,
		JoinTimeWindowMs:     10_000,
		AccountAgeDaysMin:    7,
		SimilarNameThreshold: 0.8,
		MentionThreshold:     10,
		ExemptRoles:          []string{},
		ExemptChannels:       []string{},
		LockdownDurationMs:   10 * 60 * 1000,
		AutoModeDurationMs:   5 * 60 * 1000,
	}
}

var validate = validator.New()

// Validate returns a *models.ConfigurationError naming the first invalid field.
func (s *RaidProtectionSettings) Validate() error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return &models.ConfigurationError{
			Field:  fe.Field(),
			Reason: fmt.Sprintf("failed %q constraint (%s)", fe.Tag(), fe.Param()),
		}
	}
	return &models.ConfigurationError{Field: "settings", Reason: err.Error()}
}

// JoinWindow is the window both the join query and the severity normalization use.
func (s *RaidProtectionSettings) JoinWindow() time.Duration {
	return time.Duration(s.JoinTimeWindowMs) * time.Millisecond
}

func (s *RaidProtectionSettings) LockdownDuration() time.Duration {
	return time.Duration(s.LockdownDurationMs) * time.Millisecond
}

func (s *RaidProtectionSettings) AutoModeDuration() time.Duration {
	return time.Duration(s.AutoModeDurationMs) * time.Millisecond
}

func (s *RaidProtectionSettings) MinAccountAge() time.Duration {
	return time.Duration(int64(s.AccountAgeDaysMin)*dayMs) * time.Millisecond
}

func (s *RaidProtectionSettings) IsExemptRole(roleID string) bool {
	return slices.Contains(s.ExemptRoles, roleID)
}

func (s *RaidProtectionSettings) IsExemptChannel(channelID string) bool {
	return slices.Contains(s.ExemptChannels, channelID)
}

// AddExemptRole reports whether the role was newly added.
func (s *RaidProtectionSettings) AddExemptRole(roleID string) bool {
	if s.IsExemptRole(roleID) {
		return false
	}
	s.ExemptRoles = append(s.ExemptRoles, roleID)
	return true
}

func (s *RaidProtectionSettings) RemoveExemptRole(roleID string) bool {
	i := slices.Index(s.ExemptRoles, roleID)
	if i < 0 {
		return false
	}
	s.ExemptRoles = slices.Delete(s.ExemptRoles, i, i+1)
	return true
}

func (s *RaidProtectionSettings) AddExemptChannel(channelID string) bool {
	if s.IsExemptChannel(channelID) {
		return false
	}
	s.ExemptChannels = append(s.ExemptChannels, channelID)
	return true
}

func (s *RaidProtectionSettings) RemoveExemptChannel(channelID string) bool {
	i := slices.Index(s.ExemptChannels, channelID)
	if i < 0 {
		return false
	}
	s.ExemptChannels = slices.Delete(s.ExemptChannels, i, i+1)
	return true
}

// Clone returns a copy that shares no slices with s.
func (s RaidProtectionSettings) Clone() RaidProtectionSettings {
	s.ExemptRoles = slices.Clone(s.ExemptRoles)
	s.ExemptChannels = slices.Clone(s.ExemptChannels)
	if s.ExemptRoles == nil {
		s.ExemptRoles = []string{}
	}
	if s.ExemptChannels == nil {
		s.ExemptChannels = []string{}
	}
	return s
}

// DecodeRaidSettings merges a stored record over the defaults. Fields absent from
// the record keep their default value.
func DecodeRaidSettings(data []byte) (RaidProtectionSettings, error) {
	s := DefaultRaidSettings()
	if len(strings.TrimSpace(string(data))) == 0 {
		return s, nil
	}
	s.Version = 0
	if err := json.Unmarshal(data, &s); err != nil {
		return DefaultRaidSettings(), fmt.Errorf("failed to decode raid settings: %w", err)
	}
	migrateSettings(&s)
	return s.Clone(), nil
}

func EncodeRaidSettings(s RaidProtectionSettings) ([]byte, error) {
	s.Version = SettingsVersion
	return json.Marshal(s)
}

func migrateSettings(s *RaidProtectionSettings) {
	if s.Version < SettingsVersion {
		// unversioned records were written before the mention threshold existed
		if s.MentionThreshold <= 0 {
			s.MentionThreshold = DefaultRaidSettings().MentionThreshold
		}
	}
	s.Version = SettingsVersion
}
