package database

import (
	"context"
	"fmt"
	"time"

	"go-antiraid/internal/models"
)

// AppendJoin records a join; the same account and join time is stored once
func (s *Store) AppendJoin(ctx context.Context, rec models.JoinRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO join_records (guild_id, user_id, username, account_created_at, joined_at)
		 VALUES (?, ?, ?, ?, ?)`,
		rec.GuildID, rec.UserID, rec.Username, toMillis(rec.AccountCreatedAt), toMillis(rec.JoinedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to record join: %w", err)
	}
	return nil
}

// JoinWindow returns joins at or after since, oldest first
func (s *Store) JoinWindow(ctx context.Context, guildID string, since time.Time) ([]models.JoinRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT guild_id, user_id, username, account_created_at, joined_at
		 FROM join_records WHERE guild_id = ? AND joined_at >= ? ORDER BY joined_at ASC`,
		guildID, since.UnixMilli(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []models.JoinRecord
	for rows.Next() {
		var (
			rec               models.JoinRecord
			createdAt, joined int64
		)
		if err := rows.Scan(&rec.GuildID, &rec.UserID, &rec.Username, &createdAt, &joined); err != nil {
			return nil, err
		}
		rec.AccountCreatedAt = fromMillis(createdAt)
		rec.JoinedAt = fromMillis(joined)
		recs = append(recs, rec)
	}

	return recs, rows.Err()
}

// DeleteJoinsOlderThan removes joins before cutoff and reports how many went
func (s *Store) DeleteJoinsOlderThan(ctx context.Context, guildID string, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM join_records WHERE guild_id = ? AND joined_at < ?`,
		guildID, cutoff.UnixMilli(),
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// JoinStore adapts the store to the join tracker's Append/Window/DeleteOlderThan contract.
type JoinStore struct {
	*Store
}

func (j JoinStore) Append(ctx context.Context, rec models.JoinRecord) error {
	return j.Store.AppendJoin(ctx, rec)
}

func (j JoinStore) Window(ctx context.Context, guildID string, since time.Time) ([]models.JoinRecord, error) {
	return j.Store.JoinWindow(ctx, guildID, since)
}

func (j JoinStore) DeleteOlderThan(ctx context.Context, guildID string, cutoff time.Time) (int64, error) {
	return j.Store.DeleteJoinsOlderThan(ctx, guildID, cutoff)
}
