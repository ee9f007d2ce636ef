package detectors

import (
	"context"
	"sync"
	"time"

	"go-antiraid/internal/models"
)

type joinKey struct {
	userID   string
	joinedAt int64
}

// MemJoinStore keeps join records per guild in memory. Appending the same
// account and join time twice stores one record.
type MemJoinStore struct {
	mu     sync.Mutex
	guilds map[string][]models.JoinRecord
	seen   map[string]map[joinKey]struct{}
}

func NewMemJoinStore() *MemJoinStore {
	return &MemJoinStore{
		guilds: make(map[string][]models.JoinRecord),
		seen:   make(map[string]map[joinKey]struct{}),
	}
}

func (s *MemJoinStore) Append(ctx context.Context, rec models.JoinRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := joinKey{userID: rec.UserID, joinedAt: rec.JoinedAt.UnixNano()}
	seen, ok := s.seen[rec.GuildID]
	if !ok {
		seen = make(map[joinKey]struct{})
		s.seen[rec.GuildID] = seen
	}
	if _, dup := seen[k]; dup {
		return nil
	}
	seen[k] = struct{}{}
	s.guilds[rec.GuildID] = append(s.guilds[rec.GuildID], rec)
	return nil
}

func (s *MemJoinStore) Window(ctx context.Context, guildID string, since time.Time) ([]models.JoinRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.JoinRecord
	for _, r := range s.guilds[guildID] {
		if !r.JoinedAt.Before(since) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *MemJoinStore) DeleteOlderThan(ctx context.Context, guildID string, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	recs := s.guilds[guildID]
	kept := recs[:0]
	var removed int64
	for _, r := range recs {
		if r.JoinedAt.Before(cutoff) {
			delete(s.seen[guildID], joinKey{userID: r.UserID, joinedAt: r.JoinedAt.UnixNano()})
			removed++
			continue
		}
		kept = append(kept, r)
	}
	s.guilds[guildID] = kept
	return removed, nil
}
