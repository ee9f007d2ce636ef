package forensics

import (
	"encoding/json"
	"time"

	"go-antiraid/internal/models"
)

const eventVersion = 1

// IncidentEvent is the record published for every stored incident.
type IncidentEvent struct {
	Version          int      `json:"version"`
	EmittedAt        int64    `json:"emitted_at"`
	IncidentID       string   `json:"incident_id"`
	GuildID          string   `json:"guild_id"`
	Type             string   `json:"type"`
	Severity         string   `json:"severity"`
	Details          string   `json:"details"`
	ActionTaken      string   `json:"action_taken"`
	AffectedAccounts []string `json:"affected_accounts"`
	Timestamp        int64    `json:"timestamp"`
}

func NewIncidentEvent(inc models.RaidIncident, emittedAt time.Time) IncidentEvent {
	accounts := inc.AffectedAccounts
	if accounts == nil {
		accounts = []string{}
	}
	return IncidentEvent{
		Version:          eventVersion,
		EmittedAt:        emittedAt.UnixMilli(),
		IncidentID:       inc.ID,
		GuildID:          inc.GuildID,
		Type:             string(inc.Type),
		Severity:         inc.Severity.String(),
		Details:          inc.Details,
		ActionTaken:      inc.ActionTaken,
		AffectedAccounts: accounts,
		Timestamp:        inc.Timestamp.UnixMilli(),
	}
}

func (e IncidentEvent) Encode() ([]byte, error) {
	return json.Marshal(e)
}
