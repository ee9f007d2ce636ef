package decision

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"go-antiraid/internal/config"
	"go-antiraid/internal/logging"
	"go-antiraid/internal/metrics"
	"go-antiraid/internal/models"
)

// ChannelGateway reads and edits the default role's channel overwrites.
type ChannelGateway interface {
	Channels(ctx context.Context, guildID string) ([]models.Channel, error)
	// DefaultRolePermissions returns the guild-level permissions of the default role.
	DefaultRolePermissions(ctx context.Context, guildID string) (int64, error)
	SetDefaultRoleOverwrite(ctx context.Context, guildID, channelID string, ow models.Overwrite) error
	DeleteDefaultRoleOverwrite(ctx context.Context, guildID, channelID string) error
}

type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, snap models.ChannelSnapshot) error
	Snapshots(ctx context.Context, guildID string) ([]models.ChannelSnapshot, error)
	DeleteSnapshot(ctx context.Context, guildID, channelID string) error
}

type lockState struct {
	lockedAt  time.Time
	reason    string
	snapshots map[string]models.ChannelSnapshot
}

type LockStatus struct {
	Locked   bool
	LockedAt time.Time
	Reason   string
	Channels int
}

// LockdownController removes posting rights from the default role across a
// guild and puts back exactly what it changed.
type LockdownController struct {
	gateway   ChannelGateway
	snapshots SnapshotStore

	mu     sync.Mutex
	guilds map[string]*lockState
	ops    map[string]*sync.Mutex
}

func NewLockdownController(gateway ChannelGateway, snapshots SnapshotStore) *LockdownController {
	return &LockdownController{
		gateway:   gateway,
		snapshots: snapshots,
		guilds:    make(map[string]*lockState),
		ops:       make(map[string]*sync.Mutex),
	}
}

// guildOp serializes lockdown and unlock of one guild.
func (lc *LockdownController) guildOp(guildID string) *sync.Mutex {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	op, ok := lc.ops[guildID]
	if !ok {
		op = &sync.Mutex{}
		lc.ops[guildID] = op
	}
	return op
}

func (lc *LockdownController) IsLocked(guildID string) bool {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	_, ok := lc.guilds[guildID]
	return ok
}

func (lc *LockdownController) Status(guildID string) LockStatus {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	st, ok := lc.guilds[guildID]
	if !ok {
		return LockStatus{}
	}
	return LockStatus{
		Locked:   true,
		LockedAt: st.lockedAt,
		Reason:   st.reason,
		Channels: len(st.snapshots),
	}
}

// Lockdown denies posting to the default role on every non-exempt channel
// where it can currently post, and returns how many channels changed. A guild
// that is already locked is left as is.
func (lc *LockdownController) Lockdown(ctx context.Context, guildID string, settings *config.RaidProtectionSettings, reason string) (int, error) {
	op := lc.guildOp(guildID)
	op.Lock()
	defer op.Unlock()

	if lc.IsLocked(guildID) {
		return 0, nil
	}
	// snapshots left by an earlier process describe the real pre-lockdown state
	if recovered, err := lc.recover(ctx, guildID); err != nil {
		logging.Warn("[LOCKDOWN] Failed to check stored snapshots for %s: %v", guildID, err)
	} else if recovered {
		return 0, nil
	}

	channels, err := lc.gateway.Channels(ctx, guildID)
	if err != nil {
		return 0, err
	}
	base, err := lc.gateway.DefaultRolePermissions(ctx, guildID)
	if err != nil {
		return 0, err
	}

	st := &lockState{
		lockedAt:  time.Now(),
		reason:    reason,
		snapshots: make(map[string]models.ChannelSnapshot),
	}
	var smu sync.Mutex

	var g errgroup.Group
	for _, ch := range channels {
		if settings.IsExemptChannel(ch.ID) || !ch.GrantsSend(base) {
			continue
		}
		g.Go(func() error {
			snap := models.ChannelSnapshot{
				GuildID:      guildID,
				ChannelID:    ch.ID,
				HadOverwrite: ch.DefaultOverwrite != nil,
			}
			if ch.DefaultOverwrite != nil {
				snap.Overwrite = *ch.DefaultOverwrite
			}
			if err := lc.snapshots.SaveSnapshot(ctx, snap); err != nil {
				logging.Error("[LOCKDOWN] Failed to persist snapshot of %s: %v", ch.ID, err)
			}

			err := lc.gateway.SetDefaultRoleOverwrite(ctx, guildID, ch.ID, ch.DefaultOverwrite.Locked())
			if err != nil {
				lc.dropSnapshot(ctx, guildID, ch.ID)
				if errors.Is(err, models.ErrNotFound) {
					metrics.LockdownChannels.WithLabelValues("lock", "skipped").Inc()
					return nil
				}
				metrics.LockdownChannels.WithLabelValues("lock", "failed").Inc()
				logging.Error("[LOCKDOWN] Failed to lock channel %s in %s: %v", ch.ID, guildID, err)
				return nil
			}

			metrics.LockdownChannels.WithLabelValues("lock", "ok").Inc()
			smu.Lock()
			st.snapshots[ch.ID] = snap
			smu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	if len(st.snapshots) == 0 {
		return 0, nil
	}

	lc.mu.Lock()
	lc.guilds[guildID] = st
	lc.mu.Unlock()

	logging.Info("[LOCKDOWN] Locked %d channels in %s: %s", len(st.snapshots), guildID, reason)
	return len(st.snapshots), nil
}

// Unlock restores every channel the lockdown changed and returns how many were
// restored. Snapshots persisted by an earlier process are used when this one
// holds none. An unlocked guild is a no-op.
func (lc *LockdownController) Unlock(ctx context.Context, guildID string) (int, error) {
	op := lc.guildOp(guildID)
	op.Lock()
	defer op.Unlock()

	lc.mu.Lock()
	st, ok := lc.guilds[guildID]
	delete(lc.guilds, guildID)
	lc.mu.Unlock()

	var snaps []models.ChannelSnapshot
	if ok {
		for _, snap := range st.snapshots {
			snaps = append(snaps, snap)
		}
	} else {
		stored, err := lc.snapshots.Snapshots(ctx, guildID)
		if err != nil {
			return 0, err
		}
		snaps = stored
	}
	if len(snaps) == 0 {
		return 0, nil
	}

	var (
		g        errgroup.Group
		cmu      sync.Mutex
		restored int
	)
	for _, snap := range snaps {
		g.Go(func() error {
			var err error
			if snap.HadOverwrite {
				err = lc.gateway.SetDefaultRoleOverwrite(ctx, guildID, snap.ChannelID, snap.Overwrite)
			} else {
				err = lc.gateway.DeleteDefaultRoleOverwrite(ctx, guildID, snap.ChannelID)
			}

			switch {
			case errors.Is(err, models.ErrNotFound):
				metrics.LockdownChannels.WithLabelValues("unlock", "skipped").Inc()
				lc.dropSnapshot(ctx, guildID, snap.ChannelID)
			case err != nil:
				// the persisted snapshot stays so a later unlock can retry
				metrics.LockdownChannels.WithLabelValues("unlock", "failed").Inc()
				logging.Error("[LOCKDOWN] Failed to restore channel %s in %s: %v", snap.ChannelID, guildID, err)
			default:
				metrics.LockdownChannels.WithLabelValues("unlock", "ok").Inc()
				lc.dropSnapshot(ctx, guildID, snap.ChannelID)
				cmu.Lock()
				restored++
				cmu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	logging.Info("[LOCKDOWN] Restored %d channels in %s", restored, guildID)
	return restored, nil
}

// Recover reloads snapshots persisted by an earlier process and reports
// whether the guild is still locked.
func (lc *LockdownController) Recover(ctx context.Context, guildID string) (bool, error) {
	op := lc.guildOp(guildID)
	op.Lock()
	defer op.Unlock()

	if lc.IsLocked(guildID) {
		return true, nil
	}
	return lc.recover(ctx, guildID)
}

func (lc *LockdownController) recover(ctx context.Context, guildID string) (bool, error) {
	stored, err := lc.snapshots.Snapshots(ctx, guildID)
	if err != nil {
		return false, err
	}
	if len(stored) == 0 {
		return false, nil
	}

	st := &lockState{
		lockedAt:  time.Now(),
		reason:    "recovered after restart",
		snapshots: make(map[string]models.ChannelSnapshot, len(stored)),
	}
	for _, snap := range stored {
		st.snapshots[snap.ChannelID] = snap
	}
	lc.mu.Lock()
	lc.guilds[guildID] = st
	lc.mu.Unlock()
	return true, nil
}

func (lc *LockdownController) dropSnapshot(ctx context.Context, guildID, channelID string) {
	if err := lc.snapshots.DeleteSnapshot(ctx, guildID, channelID); err != nil {
		logging.Warn("[LOCKDOWN] Failed to delete snapshot of %s: %v", channelID, err)
	}
}

// MemSnapshotStore keeps lockdown snapshots in memory.
type MemSnapshotStore struct {
	mu    sync.Mutex
	snaps map[string]map[string]models.ChannelSnapshot
}

func NewMemSnapshotStore() *MemSnapshotStore {
	return &MemSnapshotStore{snaps: make(map[string]map[string]models.ChannelSnapshot)}
}

func (s *MemSnapshotStore) SaveSnapshot(ctx context.Context, snap models.ChannelSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snaps[snap.GuildID] == nil {
		s.snaps[snap.GuildID] = make(map[string]models.ChannelSnapshot)
	}
	s.snaps[snap.GuildID][snap.ChannelID] = snap
	return nil
}

func (s *MemSnapshotStore) Snapshots(ctx context.Context, guildID string) ([]models.ChannelSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.ChannelSnapshot, 0, len(s.snaps[guildID]))
	for _, snap := range s.snaps[guildID] {
		out = append(out, snap)
	}
	return out, nil
}

func (s *MemSnapshotStore) DeleteSnapshot(ctx context.Context, guildID, channelID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.snaps[guildID], channelID)
	return nil
}
