package decision

import (
	"context"
	"errors"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"

	"go-antiraid/internal/metrics"
	"go-antiraid/internal/models"
	"go-antiraid/internal/state"
)

// Moderator applies single-account moderation actions.
type Moderator interface {
	Ban(ctx context.Context, guildID, userID, reason string) error
	Kick(ctx context.Context, guildID, userID, reason string) error
}

const batchParallelism = 4

// BatchExecutor bans or kicks many accounts, best effort.
type BatchExecutor struct {
	moderator Moderator
	counters  *state.GuildState
}

func NewBatchExecutor(moderator Moderator, counters *state.GuildState) *BatchExecutor {
	return &BatchExecutor{moderator: moderator, counters: counters}
}

// Apply runs action against every user. Failures are collected per user and
// never stop the batch; accounts already gone are skipped. The lockdown action
// has no per-account form and skips everyone.
func (b *BatchExecutor) Apply(ctx context.Context, guildID string, action models.ActionType, userIDs []string, reason string) *models.BatchResult {
	res := models.NewBatchResult(action)
	if action == models.ActionLockdown {
		res.Skipped = append(res.Skipped, userIDs...)
		return res
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(batchParallelism)

	for _, uid := range userIDs {
		g.Go(func() error {
			var err error
			switch action {
			case models.ActionBan:
				err = b.moderator.Ban(ctx, guildID, uid, reason)
			case models.ActionKick:
				err = b.moderator.Kick(ctx, guildID, uid, reason)
			}

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				res.Succeeded = append(res.Succeeded, uid)
				metrics.ModActions.WithLabelValues(string(action), "ok").Inc()
			case errors.Is(err, models.ErrNotFound):
				res.Skipped = append(res.Skipped, uid)
				metrics.ModActions.WithLabelValues(string(action), "skipped").Inc()
			default:
				res.Failed[uid] = err
				metrics.ModActions.WithLabelValues(string(action), "failed").Inc()
			}
			return nil
		})
	}
	_ = g.Wait()

	slices.Sort(res.Succeeded)
	slices.Sort(res.Skipped)

	if b.counters != nil && len(res.Succeeded) > 0 {
		c := b.counters.Counters(guildID)
		n := uint32(len(res.Succeeded))
		if action == models.ActionBan {
			c.MembersBanned.Add(n)
		} else {
			c.MembersKicked.Add(n)
		}
	}
	return res
}
