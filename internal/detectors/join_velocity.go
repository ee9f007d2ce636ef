package detectors

import (
	"context"
	"slices"
	"sync"
	"time"

	"go-antiraid/internal/logging"
	"go-antiraid/internal/metrics"
	"go-antiraid/internal/models"
)

// DefaultJoinRetention is how long join records are kept before the sweep drops them.
const DefaultJoinRetention = 24 * time.Hour

type JoinStore interface {
	Append(ctx context.Context, rec models.JoinRecord) error
	Window(ctx context.Context, guildID string, since time.Time) ([]models.JoinRecord, error)
	DeleteOlderThan(ctx context.Context, guildID string, cutoff time.Time) (int64, error)
}

type JoinVelocityTracker struct {
	store     JoinStore
	retention time.Duration
	now       func() time.Time

	mu     sync.Mutex
	guilds map[string]struct{}
}

func NewJoinVelocityTracker(store JoinStore, retention time.Duration) *JoinVelocityTracker {
	if retention <= 0 {
		retention = DefaultJoinRetention
	}
	return &JoinVelocityTracker{
		store:     store,
		retention: retention,
		now:       time.Now,
		guilds:    make(map[string]struct{}),
	}
}

// SetClock replaces the wall clock used for windows and retention cutoffs.
func (t *JoinVelocityTracker) SetClock(now func() time.Time) {
	t.now = now
}

// Track adds a guild to the prune sweep even before its first join.
func (t *JoinVelocityTracker) Track(guildID string) {
	t.mu.Lock()
	t.guilds[guildID] = struct{}{}
	t.mu.Unlock()
}

func (t *JoinVelocityTracker) Guilds() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, 0, len(t.guilds))
	for g := range t.guilds {
		out = append(out, g)
	}
	slices.Sort(out)
	return out
}

// Record appends a join. Store failures are logged and swallowed.
func (t *JoinVelocityTracker) Record(ctx context.Context, rec models.JoinRecord) {
	t.Track(rec.GuildID)
	if rec.JoinedAt.IsZero() {
		rec.JoinedAt = t.now()
	}
	if err := t.store.Append(ctx, rec); err != nil {
		metrics.JoinStoreErrors.WithLabelValues("append").Inc()
		logging.Error("[JOINS] Failed to record join of %s in %s: %v", rec.UserID, rec.GuildID, err)
		return
	}
	metrics.JoinsRecorded.Inc()
}

// RecentJoins returns the joins in [now-window, now] ordered by join time.
// A store failure yields an empty result.
func (t *JoinVelocityTracker) RecentJoins(ctx context.Context, guildID string, window time.Duration) []models.JoinRecord {
	now := t.now()
	since := now.Add(-window)

	recs, err := t.store.Window(ctx, guildID, since)
	if err != nil {
		metrics.JoinStoreErrors.WithLabelValues("window").Inc()
		logging.Error("[JOINS] Failed to query joins for %s: %v", guildID, err)
		return nil
	}

	out := make([]models.JoinRecord, 0, len(recs))
	for _, r := range recs {
		if r.JoinedAt.Before(since) || r.JoinedAt.After(now) {
			continue
		}
		out = append(out, r)
	}
	slices.SortStableFunc(out, func(a, b models.JoinRecord) int {
		return a.JoinedAt.Compare(b.JoinedAt)
	})
	return out
}

// Prune drops records older than the retention window.
func (t *JoinVelocityTracker) Prune(ctx context.Context, guildID string) (int64, error) {
	cutoff := t.now().Add(-t.retention)
	n, err := t.store.DeleteOlderThan(ctx, guildID, cutoff)
	if err != nil {
		metrics.JoinStoreErrors.WithLabelValues("prune").Inc()
		return 0, err
	}
	return n, nil
}

func (t *JoinVelocityTracker) PruneAll(ctx context.Context) int64 {
	var total int64
	for _, g := range t.Guilds() {
		n, err := t.Prune(ctx, g)
		if err != nil {
			logging.Error("[JOINS] Failed to prune joins for %s: %v", g, err)
			continue
		}
		total += n
	}
	return total
}

// Run sweeps every known guild on each tick until ctx is cancelled.
func (t *JoinVelocityTracker) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultJoinRetention
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := t.PruneAll(ctx); n > 0 {
				logging.Debug("[JOINS] Pruned %d stale join records", n)
			}
		}
	}
}
