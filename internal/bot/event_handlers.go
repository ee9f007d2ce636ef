package bot

import (
	"context"
	"time"

	"github.com/bwmarrin/discordgo"

	"go-antiraid/internal/logging"
	"go-antiraid/internal/models"
)

const eventTimeout = 30 * time.Second

// EventSink receives the gateway events the raid engine acts on.
type EventSink interface {
	OnMemberJoin(ctx context.Context, m models.Member)
	OnMessage(ctx context.Context, msg models.Message)
	RecoverLockdown(ctx context.Context, guildID string) bool
}

// SetupEventHandlers feeds member joins and guild messages into sink, and
// recovers lockdowns of every guild the session becomes available in.
func (s *Session) SetupEventHandlers(sink EventSink) {
	logging.Info("Setting up Discord event handlers...")

	s.discord.AddHandler(func(sess *discordgo.Session, g *discordgo.GuildCreate) {
		ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
		defer cancel()
		if sink.RecoverLockdown(ctx, g.ID) {
			logging.Warn("[BOT] Guild %s (%s) is still locked down", g.Name, g.ID)
		}
	})

	s.discord.AddHandler(func(sess *discordgo.Session, m *discordgo.GuildMemberAdd) {
		if m.Member == nil || m.User == nil {
			return
		}
		guild, _ := sess.State.Guild(m.GuildID)

		ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
		defer cancel()
		sink.OnMemberJoin(ctx, toMember(m.GuildID, m.Member, guild))
	})

	s.discord.AddHandler(func(sess *discordgo.Session, m *discordgo.MessageCreate) {
		if m.GuildID == "" || m.Author == nil {
			return
		}
		if sess.State.User != nil && m.Author.ID == sess.State.User.ID {
			return
		}
		guild, _ := sess.State.Guild(m.GuildID)

		ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
		defer cancel()
		sink.OnMessage(ctx, toMessage(m.Message, guild))
	})

	s.discord.AddHandler(func(sess *discordgo.Session, r *discordgo.Ready) {
		logging.Info("[BOT] Ready as %s in %d guilds", r.User.Username, len(r.Guilds))
	})
}

// toMember converts a gateway member. guild may be nil when state is cold,
// in which case only the member's own permission field is consulted.
func toMember(guildID string, m *discordgo.Member, guild *discordgo.Guild) models.Member {
	out := models.Member{
		GuildID: guildID,
		RoleIDs: append([]string(nil), m.Roles...),
	}
	if m.User != nil {
		out.UserID = m.User.ID
		out.Username = m.User.Username
		out.Bot = m.User.Bot
		if created, err := discordgo.SnowflakeTimestamp(m.User.ID); err == nil {
			out.CreatedAt = created
		}
	}
	out.Administrator = m.Permissions&discordgo.PermissionAdministrator != 0 || isAdministrator(out.UserID, m.Roles, guild)
	return out
}

func isAdministrator(userID string, roleIDs []string, guild *discordgo.Guild) bool {
	if guild == nil {
		return false
	}
	if guild.OwnerID != "" && guild.OwnerID == userID {
		return true
	}
	held := make(map[string]bool, len(roleIDs))
	for _, id := range roleIDs {
		held[id] = true
	}
	for _, r := range guild.Roles {
		if held[r.ID] && r.Permissions&discordgo.PermissionAdministrator != 0 {
			return true
		}
	}
	return false
}

func toMessage(m *discordgo.Message, guild *discordgo.Guild) models.Message {
	member := &discordgo.Member{User: m.Author}
	if m.Member != nil {
		member.Roles = m.Member.Roles
		member.Permissions = m.Member.Permissions
	}
	return models.Message{
		GuildID:      m.GuildID,
		ChannelID:    m.ChannelID,
		MessageID:    m.ID,
		Author:       toMember(m.GuildID, member, guild),
		Content:      m.Content,
		UserMentions: len(m.Mentions),
		RoleMentions: len(m.MentionRoles),
		Timestamp:    m.Timestamp,
	}
}
