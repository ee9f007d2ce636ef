package decision

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"go-antiraid/internal/config"
	"go-antiraid/internal/detectors"
	"go-antiraid/internal/models"
	"go-antiraid/internal/notifier"
	"go-antiraid/internal/state"
)

const basePerms int64 = discordgo.PermissionViewChannel | discordgo.PermissionSendMessages | discordgo.PermissionAddReactions

type fakeGateway struct {
	mu         sync.Mutex
	channels   []models.Channel
	overwrites map[string]*models.Overwrite
	failOn     map[string]error
	sets       int
	deletes    int
}

func newFakeGateway(channels ...models.Channel) *fakeGateway {
	gw := &fakeGateway{
		channels:   channels,
		overwrites: make(map[string]*models.Overwrite),
		failOn:     make(map[string]error),
	}
	for _, ch := range channels {
		if ch.DefaultOverwrite != nil {
			ow := *ch.DefaultOverwrite
			gw.overwrites[ch.ID] = &ow
		}
	}
	return gw
}

func (g *fakeGateway) Channels(ctx context.Context, guildID string) ([]models.Channel, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]models.Channel, 0, len(g.channels))
	for _, ch := range g.channels {
		ch.DefaultOverwrite = nil
		if ow, ok := g.overwrites[ch.ID]; ok {
			cp := *ow
			ch.DefaultOverwrite = &cp
		}
		out = append(out, ch)
	}
	return out, nil
}

func (g *fakeGateway) DefaultRolePermissions(ctx context.Context, guildID string) (int64, error) {
	return basePerms, nil
}

func (g *fakeGateway) SetDefaultRoleOverwrite(ctx context.Context, guildID, channelID string, ow models.Overwrite) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.failOn[channelID]; err != nil {
		return err
	}
	g.sets++
	g.overwrites[channelID] = &ow
	return nil
}

func (g *fakeGateway) DeleteDefaultRoleOverwrite(ctx context.Context, guildID, channelID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.failOn[channelID]; err != nil {
		return err
	}
	g.deletes++
	delete(g.overwrites, channelID)
	return nil
}

func (g *fakeGateway) overwrite(channelID string) *models.Overwrite {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.overwrites[channelID]
}

func (g *fakeGateway) mutations() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.sets + g.deletes
}

type fakeModerator struct {
	mu     sync.Mutex
	bans   []string
	kicks  []string
	failOn map[string]error
}

func newFakeModerator() *fakeModerator {
	return &fakeModerator{failOn: make(map[string]error)}
}

func (m *fakeModerator) Ban(ctx context.Context, guildID, userID, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failOn[userID]; err != nil {
		return err
	}
	m.bans = append(m.bans, userID)
	return nil
}

func (m *fakeModerator) Kick(ctx context.Context, guildID, userID, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failOn[userID]; err != nil {
		return err
	}
	m.kicks = append(m.kicks, userID)
	return nil
}

func (m *fakeModerator) counts() (int, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.bans), len(m.kicks)
}

type captureAlerter struct {
	mu     sync.Mutex
	alerts []notifier.RaidAlert
}

func (a *captureAlerter) SendRaidAlert(ctx context.Context, alert notifier.RaidAlert) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.alerts = append(a.alerts, alert)
	return nil
}

func (a *captureAlerter) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.alerts)
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type harness struct {
	engine    *Engine
	settings  *config.ProfileStore
	incidents *MemIncidentStore
	gateway   *fakeGateway
	moderator *fakeModerator
	alerter   *captureAlerter
	markers   *state.MemMarkerStore
	messages  *detectors.MessageTracker
	clock     *testClock
}

func newHarness(channels ...models.Channel) *harness {
	clock := &testClock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}

	joins := detectors.NewJoinVelocityTracker(detectors.NewMemJoinStore(), 0)
	joins.SetClock(clock.Now)
	markers := state.NewMemMarkerStore()
	markers.SetClock(clock.Now)

	h := &harness{
		settings:  config.NewProfileStore(),
		incidents: NewMemIncidentStore(),
		gateway:   newFakeGateway(channels...),
		moderator: newFakeModerator(),
		alerter:   &captureAlerter{},
		markers:   markers,
		messages:  detectors.NewMessageTracker(1000, time.Hour),
		clock:     clock,
	}

	var seq int
	var seqMu sync.Mutex
	h.engine = NewEngine(Deps{
		Settings:  h.settings,
		Incidents: h.incidents,
		Joins:     joins,
		Messages:  h.messages,
		Lockdown:  NewLockdownController(h.gateway, NewMemSnapshotStore()),
		Markers:   markers,
		Moderator: h.moderator,
		Alerter:   h.alerter,
	}, Options{
		Now: clock.Now,
		NewID: func() string {
			seqMu.Lock()
			defer seqMu.Unlock()
			seq++
			return fmt.Sprintf("id-%d", seq)
		},
	})
	return h
}

func (h *harness) configure(guildID string, mutate func(s *config.RaidProtectionSettings)) {
	s := config.DefaultRaidSettings()
	s.Enabled = true
	mutate(&s)
	if err := h.settings.Update(context.Background(), guildID, s); err != nil {
		panic(err)
	}
}

func (h *harness) incidentsOf(guildID string, typ models.IncidentType) []models.RaidIncident {
	all, _ := h.incidents.Recent(context.Background(), guildID, 1000)
	var out []models.RaidIncident
	for _, inc := range all {
		if inc.Type == typ {
			out = append(out, inc)
		}
	}
	return out
}

func member(guildID, userID, username string, created time.Time) models.Member {
	return models.Member{
		GuildID:   guildID,
		UserID:    userID,
		Username:  username,
		CreatedAt: created,
	}
}
