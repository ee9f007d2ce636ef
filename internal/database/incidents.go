package database

import (
	"context"
	"encoding/json"
	"fmt"

	"go-antiraid/internal/models"
)

// Append stores an incident. Incidents are never updated.
func (s *Store) Append(ctx context.Context, inc models.RaidIncident) error {
	affected := inc.AffectedAccounts
	if affected == nil {
		affected = []string{}
	}
	accounts, err := json.Marshal(affected)
	if err != nil {
		return fmt.Errorf("failed to encode affected accounts: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO raid_incidents (id, guild_id, type, severity, details, action_taken, affected_accounts, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		inc.ID, inc.GuildID, string(inc.Type), int(inc.Severity), inc.Details, inc.ActionTaken, string(accounts), toMillis(inc.Timestamp),
	)
	if err != nil {
		return fmt.Errorf("failed to store incident %s: %w", inc.ID, err)
	}
	return nil
}

// Recent returns up to limit incidents for a guild, newest first
func (s *Store) Recent(ctx context.Context, guildID string, limit int) ([]models.RaidIncident, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, guild_id, type, severity, details, action_taken, affected_accounts, timestamp
		 FROM raid_incidents WHERE guild_id = ? ORDER BY timestamp DESC, rowid DESC LIMIT ?`,
		guildID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query incidents for %s: %w", guildID, err)
	}
	defer rows.Close()

	var incidents []models.RaidIncident
	for rows.Next() {
		var (
			inc      models.RaidIncident
			typ      string
			severity int
			accounts string
			ts       int64
		)
		if err := rows.Scan(&inc.ID, &inc.GuildID, &typ, &severity, &inc.Details, &inc.ActionTaken, &accounts, &ts); err != nil {
			return nil, err
		}
		inc.Type = models.IncidentType(typ)
		inc.Severity = models.Severity(severity)
		inc.Timestamp = fromMillis(ts)
		if err := json.Unmarshal([]byte(accounts), &inc.AffectedAccounts); err != nil {
			return nil, fmt.Errorf("failed to decode affected accounts of %s: %w", inc.ID, err)
		}
		incidents = append(incidents, inc)
	}

	return incidents, rows.Err()
}
