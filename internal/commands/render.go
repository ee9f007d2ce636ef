package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"go-antiraid/internal/config"
)

func mentionList(ids []string, prefix string) string {
	if len(ids) == 0 {
		return "none"
	}
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = prefix + id + ">"
	}
	return strings.Join(out, " ")
}

func orNone(id, prefix string) string {
	if id == "" {
		return "none"
	}
	return prefix + id + ">"
}

func durationOrManual(d time.Duration) string {
	if d <= 0 {
		return "until unlocked"
	}
	return d.String()
}

func settingsEmbed(s config.RaidProtectionSettings) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title: "Raid Protection Settings",
		Color: colorInfo,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Status", Value: onOff(s.Enabled), Inline: true},
			{Name: "Action", Value: string(s.ActionType), Inline: true},
			{Name: "Threshold", Value: fmt.Sprintf("%d joins / %s", s.JoinThreshold, s.JoinWindow()), Inline: true},
			{Name: "Minimum Account Age", Value: fmt.Sprintf("%d days", s.AccountAgeDaysMin), Inline: true},
			{Name: "Username Similarity", Value: fmt.Sprintf("%.0f%%", s.SimilarNameThreshold*100), Inline: true},
			{Name: "Mention Threshold", Value: fmt.Sprintf("%d", s.MentionThreshold), Inline: true},
			{Name: "Lockdown Duration", Value: durationOrManual(s.LockdownDuration()), Inline: true},
			{Name: "Raid Cooldown", Value: s.AutoModeDuration().String(), Inline: true},
			{Name: "Alert Channel", Value: orNone(s.AlertChannelID, "<#"), Inline: true},
			{Name: "Notify Role", Value: orNone(s.NotifyRoleID, "<@&"), Inline: true},
			{Name: "Exempt Roles", Value: mentionList(s.ExemptRoles, "<@&")},
			{Name: "Exempt Channels", Value: mentionList(s.ExemptChannels, "<#")},
		},
	}
}

func statusEmbed(st GuildStatus, sys SystemStats) *discordgo.MessageEmbed {
	lock := "unlocked"
	if st.Engine.Lock.Locked {
		lock = fmt.Sprintf("%d channels locked since <t:%d:R>", st.Engine.Lock.Channels, st.Engine.Lock.LockedAt.Unix())
		if !st.Engine.UnlockDue.IsZero() {
			lock += fmt.Sprintf(", lifts <t:%d:R>", st.Engine.UnlockDue.Unix())
		}
	}

	phase := st.Engine.Phase.String()
	if st.Engine.RaidID != "" {
		phase += " (" + st.Engine.RaidID + ")"
	}

	c := st.Engine.Counters
	lastRaid := "never"
	if !c.LastRaidAt.IsZero() {
		lastRaid = fmt.Sprintf("<t:%d:R>", c.LastRaidAt.Unix())
	}

	return &discordgo.MessageEmbed{
		Title: "Raid Protection Status",
		Color: colorInfo,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Protection", Value: onOff(st.Settings.Enabled), Inline: true},
			{Name: "Phase", Value: phase, Inline: true},
			{Name: "Lockdown", Value: lock, Inline: true},
			{Name: "Raids", Value: fmt.Sprintf("%d detected, %d suppressed, last %s", c.RaidsDetected, c.RaidsSuppressed, lastRaid)},
			{Name: "Actions", Value: fmt.Sprintf("%d banned, %d kicked, %d spam patterns", c.MembersBanned, c.MembersKicked, c.PatternsFlagged)},
			{Name: "Host", Value: fmt.Sprintf("%s (%s)\nCPU %.1f%% | RAM %.1f%% | RSS %d MiB", sys.Hostname, sys.Platform, sys.CPUUsage, sys.MemoryPercent, sys.ProcessRSS>>20)},
			{Name: "Runtime", Value: fmt.Sprintf("%d goroutines | heap %d MiB | up %s", sys.GoRoutines, sys.HeapAlloc>>20, sys.BotUptime.Truncate(time.Second))},
		},
	}
}
