package decision

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"go-antiraid/internal/config"
	"go-antiraid/internal/detectors"
	"go-antiraid/internal/logging"
	"go-antiraid/internal/metrics"
	"go-antiraid/internal/models"
	"go-antiraid/internal/notifier"
	"go-antiraid/internal/state"
)

const (
	DefaultSimilarGroupMinSize = 3
	timerCallTimeout           = 30 * time.Second
)

type Alerter interface {
	SendRaidAlert(ctx context.Context, alert notifier.RaidAlert) error
}

type Deps struct {
	Settings  SettingsStore
	Incidents IncidentStore
	Joins     *detectors.JoinVelocityTracker
	Messages  *detectors.MessageTracker
	Lockdown  *LockdownController
	Markers   state.RaidMarkerStore
	Moderator Moderator
	Alerter   Alerter
	Counters  *state.GuildState
}

type Options struct {
	// SimilarGroupMinSize is the smallest similar-username group acted on.
	SimilarGroupMinSize int
	Now                 func() time.Time
	NewID               func() string
}

// Engine is the per-process raid response state machine. Each guild is IDLE
// until an elevated join burst acquires its raid marker, and returns to IDLE
// only when the marker's decay task fires.
type Engine struct {
	settings  SettingsStore
	incidents IncidentStore
	joins     *detectors.JoinVelocityTracker
	messages  *detectors.MessageTracker
	lockdown  *LockdownController
	markers   state.RaidMarkerStore
	batch     *BatchExecutor
	alerter   Alerter
	counters  *state.GuildState

	scheduler *Scheduler
	cooldowns *CooldownManager

	minGroup int
	now      func() time.Time
	newID    func() string

	ctx    context.Context
	cancel context.CancelFunc
}

func NewEngine(deps Deps, opts Options) *Engine {
	if opts.SimilarGroupMinSize <= 0 {
		opts.SimilarGroupMinSize = DefaultSimilarGroupMinSize
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	if deps.Counters == nil {
		deps.Counters = state.NewGuildState()
	}

	ctx, cancel := context.WithCancel(context.Background())
	cooldowns := NewCooldownManager()
	cooldowns.now = opts.Now

	return &Engine{
		settings:  deps.Settings,
		incidents: deps.Incidents,
		joins:     deps.Joins,
		messages:  deps.Messages,
		lockdown:  deps.Lockdown,
		markers:   deps.Markers,
		batch:     NewBatchExecutor(deps.Moderator, deps.Counters),
		alerter:   deps.Alerter,
		counters:  deps.Counters,
		scheduler: NewScheduler(),
		cooldowns: cooldowns,
		minGroup:  opts.SimilarGroupMinSize,
		now:       opts.Now,
		newID:     opts.NewID,
		ctx:       ctx,
		cancel:    cancel,
	}
}

func raidKey(guildID string) string   { return "raid:" + guildID }
func unlockKey(guildID string) string { return "unlock:" + guildID }

// loadSettings falls back to the defaults, which are disabled, when the store fails.
func (e *Engine) loadSettings(ctx context.Context, guildID string) config.RaidProtectionSettings {
	s, err := e.settings.Get(ctx, guildID)
	if err != nil {
		logging.Error("[ENGINE] Failed to load settings for %s: %v", guildID, err)
		return config.DefaultRaidSettings()
	}
	return s
}

// OnMemberJoin records the join, starts a raid response when the join rate
// is elevated, and checks the joining account on its own.
func (e *Engine) OnMemberJoin(ctx context.Context, m models.Member) {
	settings := e.loadSettings(ctx, m.GuildID)
	if !settings.Enabled {
		return
	}

	now := e.now()
	e.joins.Record(ctx, models.NewJoinRecord(m, now))

	window := settings.JoinWindow()
	recent := e.joins.RecentJoins(ctx, m.GuildID, window)
	severity, err := ClassifyWindow(len(recent), window, &settings)
	if err != nil {
		logging.Error("[ENGINE] %v", err)
		return
	}

	if severity.IsElevated() {
		e.startRaid(ctx, &settings, m.GuildID, recent, severity)
	}

	e.checkNewAccount(ctx, &settings, m, now)
	e.checkSimilarUsernames(ctx, &settings, m.GuildID, recent)
}

func (e *Engine) startRaid(ctx context.Context, settings *config.RaidProtectionSettings, guildID string, recent []models.JoinRecord, severity models.Severity) {
	raidID := e.newID()
	started, err := e.markers.TryStart(ctx, guildID, raidID, settings.AutoModeDuration())
	if err != nil {
		logging.Critical("[ENGINE] Failed to acquire raid marker for %s: %v", guildID, err)
		return
	}
	if !started {
		metrics.RaidsSuppressed.Inc()
		e.counters.Counters(guildID).RaidsSuppressed.Add(1)
		return
	}

	e.scheduler.Schedule(raidKey(guildID), settings.AutoModeDuration(), func() {
		e.endRaid(guildID, raidID)
	})

	now := e.now()
	accounts := joinedAccounts(recent)
	rate := JoinRate(len(recent), settings)
	reason := fmt.Sprintf("Raid protection: %d joins in %s", len(recent), settings.JoinWindow())

	logging.Warn("[ENGINE] Raid %s detected in %s: %s severity, %d joins (%.2f/s)", raidID, guildID, severity, len(recent), rate)
	metrics.RaidsDetected.WithLabelValues(severity.String()).Inc()
	e.counters.RecordRaid(guildID, now)

	var outcome string
	switch settings.ActionType {
	case models.ActionLockdown:
		n, err := e.lockdown.Lockdown(ctx, guildID, settings, reason)
		if err != nil {
			logging.Error("[ENGINE] Lockdown of %s failed: %v", guildID, err)
			outcome = "lockdown failed: " + err.Error()
		} else {
			outcome = fmt.Sprintf("lockdown: %d channels locked", n)
		}
		e.scheduleUnlock(guildID, settings.LockdownDuration())
	case models.ActionBan, models.ActionKick:
		for _, uid := range accounts {
			e.cooldowns.RecordExecution(guildID, uid, settings.AutoModeDuration())
		}
		res := e.batch.Apply(ctx, guildID, settings.ActionType, accounts, reason)
		outcome = res.Summary()
		for uid, err := range res.Failed {
			logging.Warn("[ENGINE] %s of %s failed: %v", settings.ActionType, uid, err)
		}
	}

	inc := models.RaidIncident{
		ID:               raidID,
		GuildID:          guildID,
		Type:             models.IncidentRaidDetected,
		Severity:         severity,
		Details:          fmt.Sprintf("%d joins in %s (%.2f joins/s, threshold %d)", len(recent), settings.JoinWindow(), rate, settings.JoinThreshold),
		ActionTaken:      outcome,
		AffectedAccounts: accounts,
		Timestamp:        now,
	}
	e.recordIncident(ctx, inc)

	e.alert(ctx, settings, notifier.RaidAlert{
		GuildID:    guildID,
		IncidentID: raidID,
		Type:       inc.Type,
		Severity:   severity,
		JoinCount:  len(recent),
		Window:     settings.JoinWindow(),
		JoinRate:   rate,
		Action:     settings.ActionType,
		Outcome:    outcome,
		Details:    inc.Details,
		At:         now,
	})
}

func (e *Engine) endRaid(guildID, raidID string) {
	ctx, cancel := context.WithTimeout(e.ctx, timerCallTimeout)
	defer cancel()

	cleared, err := e.markers.Clear(ctx, guildID, raidID)
	if err != nil {
		logging.Error("[ENGINE] Failed to clear raid marker for %s: %v", guildID, err)
		return
	}
	if cleared {
		logging.Info("[ENGINE] Raid %s in %s has ended", raidID, guildID)
	}
}

// scheduleUnlock replaces any pending unlock. A zero duration leaves the
// lockdown in place until it is ended by hand.
func (e *Engine) scheduleUnlock(guildID string, d time.Duration) {
	if d <= 0 {
		e.scheduler.Cancel(unlockKey(guildID))
		return
	}
	e.scheduler.Schedule(unlockKey(guildID), d, func() {
		ctx, cancel := context.WithTimeout(e.ctx, timerCallTimeout)
		defer cancel()
		n, err := e.lockdown.Unlock(ctx, guildID)
		if err != nil {
			logging.Error("[ENGINE] Scheduled unlock of %s failed: %v", guildID, err)
			return
		}
		logging.Info("[ENGINE] Lockdown of %s expired, %d channels restored", guildID, n)
	})
}

func (e *Engine) checkNewAccount(ctx context.Context, settings *config.RaidProtectionSettings, m models.Member, now time.Time) {
	if m.Bot || detectors.IsExempt(m, settings) || !detectors.IsSuspiciousNewAccount(m, settings, now) {
		return
	}
	if !e.cooldowns.TryAcquire(m.GuildID, m.UserID, settings.AutoModeDuration()) {
		return
	}

	age := now.Sub(m.CreatedAt).Truncate(time.Minute)
	reason := fmt.Sprintf("Raid protection: account younger than %d days", settings.AccountAgeDaysMin)
	outcome := e.actOnAccount(ctx, settings, m.GuildID, m.UserID, reason)

	inc := models.RaidIncident{
		ID:               e.newID(),
		GuildID:          m.GuildID,
		Type:             models.IncidentSuspiciousMember,
		Severity:         models.SeverityLow,
		Details:          fmt.Sprintf("%s (%s) joined with an account created %s ago", m.Username, m.UserID, age),
		ActionTaken:      outcome,
		AffectedAccounts: []string{m.UserID},
		Timestamp:        now,
	}
	e.recordIncident(ctx, inc)
}

func (e *Engine) checkSimilarUsernames(ctx context.Context, settings *config.RaidProtectionSettings, guildID string, recent []models.JoinRecord) {
	if len(recent) < e.minGroup {
		return
	}
	joiners := make([]models.Member, 0, len(recent))
	for _, r := range recent {
		joiners = append(joiners, r.Member())
	}

	for _, group := range detectors.FindSimilarUsernames(joiners, settings.SimilarNameThreshold) {
		if len(group) < e.minGroup {
			continue
		}

		var targets []string
		for _, m := range group {
			if e.cooldowns.TryAcquire(guildID, m.UserID, settings.AutoModeDuration()) {
				targets = append(targets, m.UserID)
			}
		}
		if len(targets) == 0 {
			continue
		}

		reason := fmt.Sprintf("Raid protection: %d accounts with similar usernames", len(group))
		res := e.batch.Apply(ctx, guildID, settings.ActionType, targets, reason)

		severity := models.SeverityModerate
		if len(group) >= 2*e.minGroup {
			severity = models.SeveritySevere
		}
		inc := models.RaidIncident{
			ID:               e.newID(),
			GuildID:          guildID,
			Type:             models.IncidentSimilarUsernames,
			Severity:         severity,
			Details:          fmt.Sprintf("%d recent joiners with usernames similar to %q", len(group), group[0].Username),
			ActionTaken:      actionOutcome(settings.ActionType, res),
			AffectedAccounts: targets,
			Timestamp:        e.now(),
		}
		e.recordIncident(ctx, inc)
	}
}

// OnMessage feeds a message into its author's window and acts on the author
// once the window shows an abuse pattern.
func (e *Engine) OnMessage(ctx context.Context, msg models.Message) {
	if msg.Author.Bot {
		return
	}
	settings := e.loadSettings(ctx, msg.GuildID)
	if !settings.Enabled || settings.IsExemptChannel(msg.ChannelID) || detectors.IsExempt(msg.Author, &settings) {
		return
	}

	window := e.messages.Observe(msg.GuildID, msg.Author.UserID, detectors.Summarize(msg))
	kind := detectors.DetectPattern(window, &settings)
	if kind == detectors.PatternNone {
		return
	}
	e.messages.Clear(msg.GuildID, msg.Author.UserID)

	metrics.PatternsFlagged.Inc()
	e.counters.Counters(msg.GuildID).PatternsFlagged.Add(1)

	reason := fmt.Sprintf("Raid protection: %s", kind)
	outcome := e.actOnAccount(ctx, &settings, msg.GuildID, msg.Author.UserID, reason)

	e.recordIncident(ctx, models.RaidIncident{
		ID:               e.newID(),
		GuildID:          msg.GuildID,
		Type:             models.IncidentSpamPattern,
		Severity:         models.SeverityLow,
		Details:          fmt.Sprintf("%s sent %d messages matching %s in %s", msg.Author.UserID, len(window), kind, msg.ChannelID),
		ActionTaken:      outcome,
		AffectedAccounts: []string{msg.Author.UserID},
		Timestamp:        e.now(),
	})
}

func (e *Engine) actOnAccount(ctx context.Context, settings *config.RaidProtectionSettings, guildID, userID, reason string) string {
	res := e.batch.Apply(ctx, guildID, settings.ActionType, []string{userID}, reason)
	if err, failed := res.Failed[userID]; failed {
		logging.Warn("[ENGINE] %s of %s in %s failed: %v", settings.ActionType, userID, guildID, err)
	}
	return actionOutcome(settings.ActionType, res)
}

func actionOutcome(action models.ActionType, res *models.BatchResult) string {
	if action == models.ActionLockdown {
		return "none (lockdown mode)"
	}
	return res.Summary()
}

// TriggerLockdown locks the guild by hand and schedules the automatic unlock,
// replacing any unlock already pending.
func (e *Engine) TriggerLockdown(ctx context.Context, guildID, reason string) (int, error) {
	settings, err := e.settings.Get(ctx, guildID)
	if err != nil {
		return 0, err
	}
	if reason == "" {
		reason = "Manual lockdown"
	}

	n, err := e.lockdown.Lockdown(ctx, guildID, &settings, reason)
	if err != nil {
		return 0, err
	}
	e.scheduleUnlock(guildID, settings.LockdownDuration())

	e.recordIncident(ctx, models.RaidIncident{
		ID:          e.newID(),
		GuildID:     guildID,
		Type:        models.IncidentManualLockdown,
		Severity:    models.SeverityModerate,
		Details:     reason,
		ActionTaken: fmt.Sprintf("lockdown: %d channels locked", n),
		Timestamp:   e.now(),
	})
	return n, nil
}

// EndLockdown cancels the pending automatic unlock and unlocks now.
func (e *Engine) EndLockdown(ctx context.Context, guildID string) (int, error) {
	e.scheduler.Cancel(unlockKey(guildID))
	return e.lockdown.Unlock(ctx, guildID)
}

// RecoverLockdown picks up a lockdown left by an earlier process and gives it
// a fresh automatic unlock.
func (e *Engine) RecoverLockdown(ctx context.Context, guildID string) bool {
	locked, err := e.lockdown.Recover(ctx, guildID)
	if err != nil {
		logging.Error("[ENGINE] Failed to recover lockdown state of %s: %v", guildID, err)
		return false
	}
	if !locked {
		return false
	}
	settings := e.loadSettings(ctx, guildID)
	if _, pending := e.scheduler.Due(unlockKey(guildID)); !pending {
		e.scheduleUnlock(guildID, settings.LockdownDuration())
	}
	logging.Info("[ENGINE] Recovered lockdown of %s", guildID)
	return true
}

// ActiveRaid returns the id of the raid response in progress, if any.
func (e *Engine) ActiveRaid(ctx context.Context, guildID string) (string, bool, error) {
	return e.markers.Get(ctx, guildID)
}

func (e *Engine) IsLocked(guildID string) bool {
	return e.lockdown.IsLocked(guildID)
}

func (e *Engine) RecentIncidents(ctx context.Context, guildID string, limit int) ([]models.RaidIncident, error) {
	return e.incidents.Recent(ctx, guildID, limit)
}

type Status struct {
	Phase     state.RaidPhase
	RaidID    string
	Lock      LockStatus
	UnlockDue time.Time
	Counters  state.CounterSnapshot
	Windows   int
}

func (e *Engine) Status(ctx context.Context, guildID string) (Status, error) {
	st := Status{
		Lock:     e.lockdown.Status(guildID),
		Counters: e.counters.Snapshot(guildID),
		Windows:  e.messages.Len(),
	}
	if due, ok := e.scheduler.Due(unlockKey(guildID)); ok {
		st.UnlockDue = due
	}
	raidID, active, err := e.markers.Get(ctx, guildID)
	if err != nil {
		return st, err
	}
	if active {
		st.Phase = state.PhaseRaidActive
		st.RaidID = raidID
	}
	return st, nil
}

// Shutdown cancels every pending timer. Locked guilds stay locked; their
// snapshots remain in the snapshot store for RecoverLockdown.
func (e *Engine) Shutdown() {
	e.scheduler.Stop()
	e.cancel()
}

func (e *Engine) recordIncident(ctx context.Context, inc models.RaidIncident) {
	if err := e.incidents.Append(ctx, inc); err != nil {
		metrics.IncidentErrors.Inc()
		logging.Error("[ENGINE] Failed to persist %s incident %s: %v", inc.Type, inc.ID, err)
	}
}

func (e *Engine) alert(ctx context.Context, settings *config.RaidProtectionSettings, a notifier.RaidAlert) {
	if e.alerter == nil || settings.AlertChannelID == "" {
		logging.Debug("[ENGINE] No alert channel for %s, skipping alert", a.GuildID)
		return
	}
	a.ChannelID = settings.AlertChannelID
	a.NotifyRoleID = settings.NotifyRoleID
	if err := e.alerter.SendRaidAlert(ctx, a); err != nil {
		logging.Warn("[ENGINE] Failed to deliver alert for %s: %v", a.GuildID, err)
	}
}

func joinedAccounts(recent []models.JoinRecord) []string {
	seen := make(map[string]struct{}, len(recent))
	out := make([]string, 0, len(recent))
	for _, r := range recent {
		if _, ok := seen[r.UserID]; ok {
			continue
		}
		seen[r.UserID] = struct{}{}
		out = append(out, r.UserID)
	}
	return out
}
