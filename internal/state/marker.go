package state

import (
	"context"
	"time"
)

// RaidMarkerStore holds at most one active raid id per guild. TryStart is the
// only way to create a marker and must be atomic.
type RaidMarkerStore interface {
	// TryStart sets the marker to raidID unless one already exists.
	TryStart(ctx context.Context, guildID, raidID string, ttl time.Duration) (bool, error)
	Get(ctx context.Context, guildID string) (string, bool, error)
	// Clear removes the marker only while it still holds raidID.
	Clear(ctx context.Context, guildID, raidID string) (bool, error)
}
