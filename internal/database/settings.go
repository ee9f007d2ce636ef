package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go-antiraid/internal/config"
)

// Get returns the guild's raid settings, or the defaults when none are stored
func (s *Store) Get(ctx context.Context, guildID string) (config.RaidProtectionSettings, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM raid_settings WHERE guild_id = ?`,
		guildID,
	).Scan(&data)

	if errors.Is(err, sql.ErrNoRows) {
		return config.DefaultRaidSettings(), nil
	}
	if err != nil {
		return config.DefaultRaidSettings(), fmt.Errorf("failed to load raid settings for %s: %w", guildID, err)
	}

	return config.DecodeRaidSettings([]byte(data))
}

// Update validates and stores the guild's raid settings
func (s *Store) Update(ctx context.Context, guildID string, settings config.RaidProtectionSettings) error {
	if err := settings.Validate(); err != nil {
		return err
	}

	data, err := config.EncodeRaidSettings(settings)
	if err != nil {
		return fmt.Errorf("failed to encode raid settings: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO raid_settings (guild_id, version, data, updated_at)
		 VALUES (?, ?, ?, ?)`,
		guildID, config.SettingsVersion, string(data), time.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to store raid settings for %s: %w", guildID, err)
	}
	return nil
}

// Guilds lists every guild with stored settings
func (s *Store) Guilds(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT guild_id FROM raid_settings ORDER BY guild_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var guilds []string
	for rows.Next() {
		var g string
		if err := rows.Scan(&g); err != nil {
			return nil, err
		}
		guilds = append(guilds, g)
	}
	return guilds, rows.Err()
}
