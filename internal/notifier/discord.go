package notifier

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"go-antiraid/internal/metrics"
	"go-antiraid/internal/models"
)

// MessageSender delivers a rendered message into a channel.
type MessageSender interface {
	SendMessage(ctx context.Context, channelID string, msg *discordgo.MessageSend) error
}

// RaidAlert describes one detection for the guild's alert channel.
type RaidAlert struct {
	GuildID      string
	ChannelID    string
	NotifyRoleID string
	IncidentID   string
	Type         models.IncidentType
	Severity     models.Severity
	JoinCount    int
	Window       time.Duration
	JoinRate     float64
	Action       models.ActionType
	Outcome      string
	Details      string
	At           time.Time
}

func severityColor(s models.Severity) int {
	switch s {
	case models.SeveritySevere:
		return 0xED4245
	case models.SeverityModerate:
		return 0xE67E22
	default:
		return 0xFEE75C
	}
}

func alertTitle(t models.IncidentType) string {
	switch t {
	case models.IncidentRaidDetected:
		return "🚨 Raid Detected"
	case models.IncidentSuspiciousMember:
		return "🕵️ Suspicious Account"
	case models.IncidentSimilarUsernames:
		return "👥 Similar Usernames"
	case models.IncidentSpamPattern:
		return "📨 Spam Pattern"
	case models.IncidentManualLockdown:
		return "🔒 Manual Lockdown"
	default:
		return "⚠️ Raid Protection"
	}
}

// RenderRaidAlert builds the alert embed. A notify role is pinged in the
// content and is the only mention the message may trigger.
func RenderRaidAlert(a RaidAlert) *discordgo.MessageSend {
	at := a.At
	if at.IsZero() {
		at = time.Now()
	}

	fields := []*discordgo.MessageEmbedField{
		{
			Name:   "📊 Severity",
			Value:  fmt.Sprintf("**%s**", a.Severity),
			Inline: true,
		},
		{
			Name:   "🛡️ Action",
			Value:  fmt.Sprintf("`%s`", a.Action),
			Inline: true,
		},
	}
	if a.JoinCount > 0 {
		fields = append(fields, &discordgo.MessageEmbedField{
			Name:   "📈 Join Rate",
			Value:  fmt.Sprintf("%d joins in %s (%.2f/s)", a.JoinCount, a.Window, a.JoinRate),
			Inline: true,
		})
	}
	if a.Outcome != "" {
		fields = append(fields, &discordgo.MessageEmbedField{
			Name:  "✅ Outcome",
			Value: a.Outcome,
		})
	}
	fields = append(fields, &discordgo.MessageEmbedField{
		Name:  "🕐 Timestamp",
		Value: fmt.Sprintf("<t:%d:F>", at.Unix()),
	})

	embed := &discordgo.MessageEmbed{
		Title:       alertTitle(a.Type),
		Color:       severityColor(a.Severity),
		Description: a.Details,
		Fields:      fields,
		Footer: &discordgo.MessageEmbedFooter{
			Text: "Incident " + a.IncidentID,
		},
		Timestamp: at.Format(time.RFC3339),
	}

	msg := &discordgo.MessageSend{
		Embeds:          []*discordgo.MessageEmbed{embed},
		AllowedMentions: &discordgo.MessageAllowedMentions{},
	}
	if a.NotifyRoleID != "" {
		msg.Content = fmt.Sprintf("<@&%s>", a.NotifyRoleID)
		msg.AllowedMentions.Roles = []string{a.NotifyRoleID}
	}
	return msg
}

// RenderIncidentList summarizes recent incidents, newest first.
func RenderIncidentList(incidents []models.RaidIncident) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title: "📋 Recent Raid Incidents",
		Color: 0x5865F2,
	}
	if len(incidents) == 0 {
		embed.Description = "No incidents recorded."
		return embed
	}

	var b strings.Builder
	for _, inc := range incidents {
		fmt.Fprintf(&b, "<t:%d:R> **%s** `%s` %s\n", inc.Timestamp.Unix(), inc.Type, inc.Severity, inc.ActionTaken)
		if len(inc.AffectedAccounts) > 0 {
			fmt.Fprintf(&b, "└ %d accounts\n", len(inc.AffectedAccounts))
		}
	}
	embed.Description = b.String()
	return embed
}

type Notifier struct {
	sender MessageSender
}

func New(sender MessageSender) *Notifier {
	return &Notifier{sender: sender}
}

// SendRaidAlert delivers the alert to its channel.
func (n *Notifier) SendRaidAlert(ctx context.Context, a RaidAlert) error {
	if a.ChannelID == "" {
		return &models.ConfigurationError{Field: "alert_channel_id", Reason: "no alert channel configured"}
	}
	if err := n.sender.SendMessage(ctx, a.ChannelID, RenderRaidAlert(a)); err != nil {
		metrics.AlertErrors.Inc()
		return fmt.Errorf("failed to send alert to %s: %w", a.ChannelID, err)
	}
	return nil
}
