package models

import (
	"strings"
	"time"
)

type IncidentType string

const (
	IncidentRaidDetected     IncidentType = "RAID_DETECTED"
	IncidentSuspiciousMember IncidentType = "SUSPICIOUS_MEMBER"
	IncidentSimilarUsernames IncidentType = "SIMILAR_USERNAMES"
	IncidentSpamPattern      IncidentType = "SPAM_PATTERN"
	IncidentManualLockdown   IncidentType = "MANUAL_LOCKDOWN"
)

type Severity uint8

const (
	SeverityLow Severity = iota + 1
	SeverityModerate
	SeveritySevere
)

func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "LOW"
	case SeverityModerate:
		return "MODERATE"
	case SeveritySevere:
		return "SEVERE"
	default:
		return "UNKNOWN"
	}
}

func ParseSeverity(s string) Severity {
	switch strings.ToUpper(s) {
	case "LOW":
		return SeverityLow
	case "MODERATE":
		return SeverityModerate
	case "SEVERE":
		return SeveritySevere
	default:
		return 0
	}
}

// IsElevated reports whether the tier warrants a raid response.
func (s Severity) IsElevated() bool {
	return s >= SeverityModerate
}

// RaidIncident is an immutable audit record.
type RaidIncident struct {
	ID               string       `json:"id"`
	GuildID          string       `json:"guild_id"`
	Type             IncidentType `json:"type"`
	Severity         Severity     `json:"severity"`
	Details          string       `json:"details"`
	ActionTaken      string       `json:"action_taken"`
	AffectedAccounts []string     `json:"affected_accounts"`
	Timestamp        time.Time    `json:"timestamp"`
}
