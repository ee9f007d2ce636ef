package decision

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-antiraid/internal/config"
	"go-antiraid/internal/models"
	"go-antiraid/internal/state"
)

var raidNames = []string{"alice", "bob", "carol", "dave", "erin", "frank", "grace"}

func guildChannels() []models.Channel {
	return []models.Channel{
		{ID: "general"},
		{ID: "media", DefaultOverwrite: &models.Overwrite{Allow: discordgo.PermissionAttachFiles}},
		{ID: "announcements", DefaultOverwrite: &models.Overwrite{Deny: discordgo.PermissionSendMessages}},
		{ID: "staff"},
	}
}

func TestRaidScenarioLockdown(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	h := newHarness(guildChannels()...)
	defer h.engine.Shutdown()
	h.configure("g1", func(s *config.RaidProtectionSettings) {
		s.JoinThreshold = 5
		s.JoinTimeWindowMs = 10_000
		s.ActionType = models.ActionLockdown
		s.AlertChannelID = "alerts"
		s.NotifyRoleID = "mods"
		s.AddExemptChannel("staff")
	})

	old := h.clock.Now().AddDate(-1, 0, 0)
	for i := 0; i < 6; i++ {
		h.engine.OnMemberJoin(ctx, member("g1", fmt.Sprintf("u%d", i), raidNames[i], old))
		h.clock.Advance(1500 * time.Millisecond)
	}

	raids := h.incidentsOf("g1", models.IncidentRaidDetected)
	require.Len(t, raids, 1)
	assert.Equal(models.SeverityModerate, raids[0].Severity)
	assert.Equal("lockdown: 2 channels locked", raids[0].ActionTaken)
	assert.Equal(1, h.alerter.count())
	assert.Equal("alerts", h.alerter.alerts[0].ChannelID)
	assert.Equal("mods", h.alerter.alerts[0].NotifyRoleID)

	assert.True(h.engine.IsLocked("g1"))
	assert.Equal(&models.Overwrite{Deny: models.LockdownDeny}, h.gateway.overwrite("general"))
	assert.Equal(&models.Overwrite{Allow: discordgo.PermissionAttachFiles, Deny: models.LockdownDeny}, h.gateway.overwrite("media"))
	assert.Equal(&models.Overwrite{Deny: discordgo.PermissionSendMessages}, h.gateway.overwrite("announcements"))
	assert.Nil(h.gateway.overwrite("staff"))

	raidID, active, err := h.engine.ActiveRaid(ctx, "g1")
	assert.NoError(err)
	assert.True(active)
	assert.Equal(raids[0].ID, raidID)

	// a 7th join while the raid is active starts nothing new
	h.engine.OnMemberJoin(ctx, member("g1", "u6", raidNames[6], old))
	assert.Len(h.incidentsOf("g1", models.IncidentRaidDetected), 1)
	assert.Equal(1, h.alerter.count())

	st, err := h.engine.Status(ctx, "g1")
	assert.NoError(err)
	assert.Equal(state.PhaseRaidActive, st.Phase)
	assert.True(st.Lock.Locked)
	assert.Equal(2, st.Lock.Channels)
	assert.False(st.UnlockDue.IsZero())
	assert.Equal(uint32(1), st.Counters.RaidsDetected)
	assert.GreaterOrEqual(st.Counters.RaidsSuppressed, uint32(2))

	n, err := h.engine.EndLockdown(ctx, "g1")
	assert.NoError(err)
	assert.Equal(2, n)
	assert.Nil(h.gateway.overwrite("general"))
	assert.Equal(&models.Overwrite{Allow: discordgo.PermissionAttachFiles}, h.gateway.overwrite("media"))
	assert.False(h.engine.IsLocked("g1"))
	_, pending := h.engine.scheduler.Due(unlockKey("g1"))
	assert.False(pending)

	// ending again is a no-op
	n, err = h.engine.EndLockdown(ctx, "g1")
	assert.NoError(err)
	assert.Equal(0, n)
}

func TestRaidMarkerDecay(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	h := newHarness(guildChannels()...)
	defer h.engine.Shutdown()
	h.configure("g1", func(s *config.RaidProtectionSettings) {
		s.JoinThreshold = 2
		s.ActionType = models.ActionLockdown
	})

	old := h.clock.Now().AddDate(-1, 0, 0)
	h.engine.OnMemberJoin(ctx, member("g1", "u1", "alice", old))
	h.engine.OnMemberJoin(ctx, member("g1", "u2", "bob", old))

	raids := h.incidentsOf("g1", models.IncidentRaidDetected)
	require.Len(t, raids, 1)

	// a stale decay task for another raid id leaves the marker alone
	h.engine.endRaid("g1", "not-the-raid")
	_, active, _ := h.engine.ActiveRaid(ctx, "g1")
	assert.True(active)

	h.engine.endRaid("g1", raids[0].ID)
	_, active, _ = h.engine.ActiveRaid(ctx, "g1")
	assert.False(active)

	// the guild is still locked, so a fresh raid does not re-snapshot it
	h.engine.OnMemberJoin(ctx, member("g1", "u3", "carol", old))
	assert.Len(h.incidentsOf("g1", models.IncidentRaidDetected), 2)
	assert.Equal(&models.Overwrite{Deny: models.LockdownDeny}, h.gateway.overwrite("general"))

	n, err := h.engine.EndLockdown(ctx, "g1")
	assert.NoError(err)
	assert.Equal(2, n)
	assert.Nil(h.gateway.overwrite("general"))
}

func TestConcurrentJoinsStartOneRaid(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	h := newHarness(guildChannels()...)
	defer h.engine.Shutdown()
	h.configure("g1", func(s *config.RaidProtectionSettings) {
		s.JoinThreshold = 5
		s.ActionType = models.ActionLockdown
		s.AlertChannelID = "alerts"
	})

	old := h.clock.Now().AddDate(-1, 0, 0)
	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.engine.OnMemberJoin(ctx, member("g1", fmt.Sprintf("u%d", i), fmt.Sprintf("%c%c%c%c", 'a'+i%26, 'z'-i%26, 'a'+(i*7)%26, '0'+i%10), old))
		}()
	}
	wg.Wait()

	assert.Len(h.incidentsOf("g1", models.IncidentRaidDetected), 1)
	assert.Equal(1, h.alerter.count())
}

func TestRaidScenarioBan(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	h := newHarness()
	defer h.engine.Shutdown()
	h.configure("g1", func(s *config.RaidProtectionSettings) {
		s.JoinThreshold = 3
		s.ActionType = models.ActionBan
	})
	h.moderator.failOn["u1"] = errors.New("missing permissions")
	h.moderator.failOn["u2"] = models.ErrNotFound

	old := h.clock.Now().AddDate(-1, 0, 0)
	for i := 0; i < 4; i++ {
		h.engine.OnMemberJoin(ctx, member("g1", fmt.Sprintf("u%d", i), raidNames[i], old))
	}

	raids := h.incidentsOf("g1", models.IncidentRaidDetected)
	require.Len(t, raids, 1)
	assert.Equal("ban: 1 succeeded, 1 failed, 1 skipped", raids[0].ActionTaken)
	assert.Equal([]string{"u0", "u1", "u2"}, raids[0].AffectedAccounts)
	assert.Equal([]string{"u0"}, h.moderator.bans)
	assert.Equal(0, h.gateway.mutations())
	// no alert channel configured
	assert.Equal(0, h.alerter.count())
}

func TestSuspiciousNewAccountKicked(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	h := newHarness()
	defer h.engine.Shutdown()
	h.configure("g1", func(s *config.RaidProtectionSettings) {
		s.AccountAgeDaysMin = 3
		s.ActionType = models.ActionKick
	})

	fresh := member("g1", "new1", "freshling", h.clock.Now().Add(-2*time.Hour))
	h.engine.OnMemberJoin(ctx, fresh)

	assert.Equal([]string{"new1"}, h.moderator.kicks)
	sus := h.incidentsOf("g1", models.IncidentSuspiciousMember)
	require.Len(t, sus, 1)
	assert.Equal([]string{"new1"}, sus[0].AffectedAccounts)
	assert.Empty(h.incidentsOf("g1", models.IncidentRaidDetected))

	// rejoining inside the cooldown is not actioned twice
	h.clock.Advance(time.Minute)
	h.engine.OnMemberJoin(ctx, fresh)
	assert.Len(h.incidentsOf("g1", models.IncidentSuspiciousMember), 1)
	_, kicks := h.moderator.counts()
	assert.Equal(1, kicks)

	// exempt and old accounts are left alone
	admin := member("g1", "adm", "boss", h.clock.Now())
	admin.Administrator = true
	h.engine.OnMemberJoin(ctx, admin)
	h.engine.OnMemberJoin(ctx, member("g1", "vet", "veteran", h.clock.Now().AddDate(-2, 0, 0)))
	assert.Len(h.incidentsOf("g1", models.IncidentSuspiciousMember), 1)
}

func TestSuspiciousAccountInLockdownMode(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	h := newHarness()
	defer h.engine.Shutdown()
	h.configure("g1", func(s *config.RaidProtectionSettings) {
		s.AccountAgeDaysMin = 3
	})

	h.engine.OnMemberJoin(ctx, member("g1", "new1", "freshling", h.clock.Now().Add(-time.Hour)))

	sus := h.incidentsOf("g1", models.IncidentSuspiciousMember)
	require.Len(t, sus, 1)
	assert.Equal("none (lockdown mode)", sus[0].ActionTaken)
	bans, kicks := h.moderator.counts()
	assert.Zero(bans + kicks)
}

func TestSimilarUsernameGroup(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	h := newHarness()
	defer h.engine.Shutdown()
	h.configure("g1", func(s *config.RaidProtectionSettings) {
		s.ActionType = models.ActionBan
	})

	old := h.clock.Now().AddDate(-1, 0, 0)
	h.engine.OnMemberJoin(ctx, member("g1", "a", "raider01", old))
	h.engine.OnMemberJoin(ctx, member("g1", "b", "raider02", old))
	assert.Empty(h.incidentsOf("g1", models.IncidentSimilarUsernames))

	h.engine.OnMemberJoin(ctx, member("g1", "c", "raider03", old))
	groups := h.incidentsOf("g1", models.IncidentSimilarUsernames)
	require.Len(t, groups, 1)
	assert.ElementsMatch([]string{"a", "b", "c"}, groups[0].AffectedAccounts)
	assert.ElementsMatch([]string{"a", "b", "c"}, h.moderator.bans)

	// a fourth lookalike is actioned alone
	h.engine.OnMemberJoin(ctx, member("g1", "d", "raider04", old))
	groups = h.incidentsOf("g1", models.IncidentSimilarUsernames)
	require.Len(t, groups, 2)
	assert.Equal([]string{"d"}, groups[0].AffectedAccounts)
	assert.Len(h.moderator.bans, 4)
}

func TestDisabledGuildDoesNothing(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	h := newHarness(guildChannels()...)
	defer h.engine.Shutdown()
	h.configure("g1", func(s *config.RaidProtectionSettings) {
		s.Enabled = false
		s.JoinThreshold = 1
		s.AccountAgeDaysMin = 30
		s.ActionType = models.ActionBan
	})

	for i := 0; i < 20; i++ {
		h.engine.OnMemberJoin(ctx, member("g1", fmt.Sprintf("u%d", i), fmt.Sprintf("spam%02d", i), h.clock.Now()))
		h.engine.OnMessage(ctx, models.Message{
			GuildID:      "g1",
			ChannelID:    "general",
			Author:       member("g1", "u1", "spam01", h.clock.Now()),
			Content:      "buy now https://scam.example",
			UserMentions: 20,
		})
	}

	all, _ := h.incidents.Recent(ctx, "g1", 100)
	assert.Empty(all)
	bans, kicks := h.moderator.counts()
	assert.Zero(bans + kicks)
	assert.Zero(h.gateway.mutations())
	assert.Zero(h.alerter.count())
	_, active, _ := h.engine.ActiveRaid(ctx, "g1")
	assert.False(active)
}

func TestSpamPatternBansAuthor(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	h := newHarness()
	defer h.engine.Shutdown()
	h.configure("g1", func(s *config.RaidProtectionSettings) {
		s.ActionType = models.ActionBan
		s.AddExemptChannel("memes")
	})

	author := member("g1", "spammer", "spammer", h.clock.Now().AddDate(-1, 0, 0))
	send := func(channel, content string) {
		h.engine.OnMessage(ctx, models.Message{GuildID: "g1", ChannelID: channel, Author: author, Content: content})
	}

	for i := 0; i < 5; i++ {
		send("memes", "same joke")
	}
	assert.Empty(h.moderator.bans)

	send("general", "join my server")
	send("general", "join my server")
	assert.Empty(h.moderator.bans)
	send("general", "join my server")

	assert.Equal([]string{"spammer"}, h.moderator.bans)
	spam := h.incidentsOf("g1", models.IncidentSpamPattern)
	require.Len(t, spam, 1)
	assert.Contains(spam[0].Details, "duplicate content")
	assert.Empty(h.messages.Window("g1", "spammer"))

	bot := author
	bot.Bot = true
	for i := 0; i < 5; i++ {
		h.engine.OnMessage(ctx, models.Message{GuildID: "g1", ChannelID: "general", Author: bot, Content: "beep"})
	}
	assert.Len(h.moderator.bans, 1)
}

func TestManualLockdownReplacesPendingUnlock(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	h := newHarness(guildChannels()...)
	defer h.engine.Shutdown()
	h.configure("g1", func(s *config.RaidProtectionSettings) {
		s.LockdownDurationMs = 60_000
	})

	n, err := h.engine.TriggerLockdown(ctx, "g1", "")
	assert.NoError(err)
	assert.Equal(3, n)
	first, pending := h.engine.scheduler.Due(unlockKey("g1"))
	assert.True(pending)

	time.Sleep(2 * time.Millisecond)
	n, err = h.engine.TriggerLockdown(ctx, "g1", "again")
	assert.NoError(err)
	assert.Equal(0, n)
	second, pending := h.engine.scheduler.Due(unlockKey("g1"))
	assert.True(pending)
	assert.True(second.After(first))
	assert.Equal(1, h.engine.scheduler.Pending())

	manual := h.incidentsOf("g1", models.IncidentManualLockdown)
	assert.Len(manual, 2)

	n, err = h.engine.EndLockdown(ctx, "g1")
	assert.NoError(err)
	assert.Equal(3, n)
	assert.Equal(0, h.engine.scheduler.Pending())
}

func TestScheduledUnlockFires(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	h := newHarness(guildChannels()...)
	defer h.engine.Shutdown()
	h.configure("g1", func(s *config.RaidProtectionSettings) {})

	_, err := h.engine.TriggerLockdown(ctx, "g1", "test")
	require.NoError(t, err)
	h.engine.scheduleUnlock("g1", 10*time.Millisecond)

	assert.Eventually(func() bool {
		return !h.engine.IsLocked("g1") && h.gateway.overwrite("general") == nil
	}, time.Second, 5*time.Millisecond)
}

func TestClassifySeverity(t *testing.T) {
	assert := assert.New(t)
	s := config.DefaultRaidSettings()
	s.JoinThreshold = 10
	s.JoinTimeWindowMs = 10_000

	assert.Equal(models.SeverityLow, ClassifySeverity(0, &s))
	assert.Equal(models.SeverityLow, ClassifySeverity(9, &s))
	assert.Equal(models.SeverityModerate, ClassifySeverity(10, &s))
	assert.Equal(models.SeverityModerate, ClassifySeverity(19, &s))
	assert.Equal(models.SeveritySevere, ClassifySeverity(20, &s))

	prev := models.SeverityLow
	for n := 0; n < 100; n++ {
		cur := ClassifySeverity(n, &s)
		assert.GreaterOrEqual(cur, prev)
		prev = cur
	}

	_, err := ClassifyWindow(10, 5*time.Second, &s)
	assert.Error(err)
	sev, err := ClassifyWindow(10, 10*time.Second, &s)
	assert.NoError(err)
	assert.Equal(models.SeverityModerate, sev)
}
