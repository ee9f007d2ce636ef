package database

import (
	"context"
	"fmt"
	"time"

	"go-antiraid/internal/models"
)

// SaveSnapshot stores the pre-lockdown overwrite of one channel
func (s *Store) SaveSnapshot(ctx context.Context, snap models.ChannelSnapshot) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO lockdown_snapshots (guild_id, channel_id, had_overwrite, allow_bits, deny_bits, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		snap.GuildID, snap.ChannelID, snap.HadOverwrite, snap.Overwrite.Allow, snap.Overwrite.Deny, time.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to store snapshot of %s: %w", snap.ChannelID, err)
	}
	return nil
}

// Snapshots returns every stored snapshot of a guild
func (s *Store) Snapshots(ctx context.Context, guildID string) ([]models.ChannelSnapshot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT guild_id, channel_id, had_overwrite, allow_bits, deny_bits
		 FROM lockdown_snapshots WHERE guild_id = ? ORDER BY channel_id`,
		guildID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snaps []models.ChannelSnapshot
	for rows.Next() {
		var snap models.ChannelSnapshot
		if err := rows.Scan(&snap.GuildID, &snap.ChannelID, &snap.HadOverwrite, &snap.Overwrite.Allow, &snap.Overwrite.Deny); err != nil {
			return nil, err
		}
		snaps = append(snaps, snap)
	}

	return snaps, rows.Err()
}

// DeleteSnapshot removes the snapshot of one channel
func (s *Store) DeleteSnapshot(ctx context.Context, guildID, channelID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM lockdown_snapshots WHERE guild_id = ? AND channel_id = ?`,
		guildID, channelID,
	)
	return err
}
