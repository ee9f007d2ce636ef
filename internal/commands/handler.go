package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"go-antiraid/internal/bot"
	"go-antiraid/internal/logging"
	"go-antiraid/internal/models"
	"go-antiraid/internal/notifier"
)

const (
	commandTimeout = 30 * time.Second
	colorOK        = 0x57F287
	colorInfo      = 0x5865F2
)

// Handler routes /antiraid interactions to the Admin service.
type Handler struct {
	admin *Admin
	stats *HostStats
}

func NewHandler(admin *Admin) *Handler {
	return &Handler{admin: admin, stats: NewHostStats()}
}

// Initialize registers the interaction handler and the slash commands.
func (h *Handler) Initialize(session *bot.Session) error {
	session.AddHandler(h.handleInteraction)

	commands := GetAllCommands()
	if err := session.RegisterCommands(commands); err != nil {
		return fmt.Errorf("failed to register commands: %w", err)
	}

	logging.Info("Command handler initialized with %d commands", len(commands))
	return nil
}

func (h *Handler) handleInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand || i.GuildID == "" || i.Member == nil {
		return
	}
	data := i.ApplicationCommandData()
	if data.Name != CommandName || len(data.Options) == 0 {
		return
	}

	if !canAdminister(i.Member, guildOwner(s, i.GuildID)) {
		respondError(s, i, "You must own this server or have the Administrator permission.")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	sub := data.Options[0]
	embed, err := h.Execute(ctx, i.GuildID, sub)
	if err != nil {
		logging.Error("Command error [%s %s]: %v", data.Name, sub.Name, err)
		respondError(s, i, userMessage(err))
		return
	}

	err = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{embed},
			Flags:  discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		logging.Warn("Failed to respond to /%s %s: %v", data.Name, sub.Name, err)
	}
}

// Execute runs one /antiraid subcommand for guildID.
func (h *Handler) Execute(ctx context.Context, guildID string, sub *discordgo.ApplicationCommandInteractionDataOption) (*discordgo.MessageEmbed, error) {
	opts := optionMap(sub.Options)

	switch sub.Name {
	case "enable", "disable":
		s, err := h.admin.SetEnabled(ctx, guildID, sub.Name == "enable")
		if err != nil {
			return nil, err
		}
		return okEmbed(fmt.Sprintf("Raid protection is now **%s**.", onOff(s.Enabled))), nil

	case "action":
		s, err := h.admin.SetActionType(ctx, guildID, stringOpt(opts, "type"))
		if err != nil {
			return nil, err
		}
		return okEmbed(fmt.Sprintf("Raids will be answered with **%s**.", s.ActionType)), nil

	case "threshold":
		joins := int(intOpt(opts, "joins", 0))
		seconds := intOpt(opts, "seconds", 0)
		s, err := h.admin.SetJoinThreshold(ctx, guildID, joins, seconds*1000)
		if err != nil {
			return nil, err
		}
		return okEmbed(fmt.Sprintf("A raid is now **%d joins in %s**.", s.JoinThreshold, s.JoinWindow())), nil

	case "account-age":
		s, err := h.admin.SetAccountAgeDays(ctx, guildID, int(intOpt(opts, "days", 0)))
		if err != nil {
			return nil, err
		}
		if s.AccountAgeDaysMin == 0 {
			return okEmbed("New-account check is off."), nil
		}
		return okEmbed(fmt.Sprintf("Accounts younger than **%d days** are actioned on join.", s.AccountAgeDaysMin)), nil

	case "exempt-role", "exempt-channel":
		return h.exemption(ctx, guildID, sub)

	case "alert-channel":
		channelID := stringOpt(opts, "channel")
		if _, err := h.admin.SetAlertChannel(ctx, guildID, channelID); err != nil {
			return nil, err
		}
		if channelID == "" {
			return okEmbed("Raid alerts are off."), nil
		}
		return okEmbed(fmt.Sprintf("Raid alerts go to <#%s>.", channelID)), nil

	case "notify-role":
		roleID := stringOpt(opts, "role")
		if _, err := h.admin.SetNotifyRole(ctx, guildID, roleID); err != nil {
			return nil, err
		}
		if roleID == "" {
			return okEmbed("Raid alerts no longer ping a role."), nil
		}
		return okEmbed(fmt.Sprintf("Raid alerts ping <@&%s>.", roleID)), nil

	case "lockdown-duration":
		minutes := intOpt(opts, "minutes", 0)
		if _, err := h.admin.SetLockdownDuration(ctx, guildID, time.Duration(minutes)*time.Minute); err != nil {
			return nil, err
		}
		if minutes == 0 {
			return okEmbed("Lockdowns stay until `/antiraid unlock`."), nil
		}
		return okEmbed(fmt.Sprintf("Lockdowns lift after **%d minutes**.", minutes)), nil

	case "mention-threshold":
		s, err := h.admin.SetMentionThreshold(ctx, guildID, int(intOpt(opts, "mentions", 0)))
		if err != nil {
			return nil, err
		}
		return okEmbed(fmt.Sprintf("**%d mentions** across a member's recent messages count as spam.", s.MentionThreshold)), nil

	case "similarity":
		s, err := h.admin.SetSimilarNameThreshold(ctx, guildID, float64(intOpt(opts, "percent", 0))/100)
		if err != nil {
			return nil, err
		}
		return okEmbed(fmt.Sprintf("Usernames **%.0f%%** alike are grouped.", s.SimilarNameThreshold*100)), nil

	case "settings":
		s, err := h.admin.Settings(ctx, guildID)
		if err != nil {
			return nil, err
		}
		return settingsEmbed(s), nil

	case "lockdown":
		n, err := h.admin.TriggerLockdown(ctx, guildID, stringOpt(opts, "reason"))
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return okEmbed("The server is already locked down, or no channel needed locking."), nil
		}
		return okEmbed(fmt.Sprintf("Locked **%d channels**.", n)), nil

	case "unlock":
		n, err := h.admin.EndLockdown(ctx, guildID)
		if err != nil {
			return nil, err
		}
		return okEmbed(fmt.Sprintf("Lockdown ended, **%d channels** restored.", n)), nil

	case "incidents":
		incidents, err := h.admin.RecentIncidents(ctx, guildID, int(intOpt(opts, "limit", DefaultIncidentLimit)))
		if err != nil {
			return nil, err
		}
		return notifier.RenderIncidentList(incidents), nil

	case "status":
		st, err := h.admin.Status(ctx, guildID)
		if err != nil {
			return nil, err
		}
		return statusEmbed(st, h.stats.Gather()), nil
	}

	return nil, fmt.Errorf("unknown subcommand: %s", sub.Name)
}

func (h *Handler) exemption(ctx context.Context, guildID string, group *discordgo.ApplicationCommandInteractionDataOption) (*discordgo.MessageEmbed, error) {
	if len(group.Options) == 0 {
		return nil, fmt.Errorf("missing %s subcommand", group.Name)
	}
	sub := group.Options[0]
	opts := optionMap(sub.Options)
	add := sub.Name == "add"

	var (
		err     error
		mention string
	)
	if group.Name == "exempt-role" {
		id := stringOpt(opts, "role")
		mention = "<@&" + id + ">"
		if add {
			_, err = h.admin.AddExemptRole(ctx, guildID, id)
		} else {
			_, err = h.admin.RemoveExemptRole(ctx, guildID, id)
		}
	} else {
		id := stringOpt(opts, "channel")
		mention = "<#" + id + ">"
		if add {
			_, err = h.admin.AddExemptChannel(ctx, guildID, id)
		} else {
			_, err = h.admin.RemoveExemptChannel(ctx, guildID, id)
		}
	}
	if err != nil {
		return nil, err
	}
	if add {
		return okEmbed(mention + " is now exempt from raid protection."), nil
	}
	return okEmbed(mention + " is no longer exempt."), nil
}

func optionMap(opts []*discordgo.ApplicationCommandInteractionDataOption) map[string]*discordgo.ApplicationCommandInteractionDataOption {
	m := make(map[string]*discordgo.ApplicationCommandInteractionDataOption, len(opts))
	for _, o := range opts {
		m[o.Name] = o
	}
	return m
}

// stringOpt reads string, role, user and channel options, which all carry an ID or text.
func stringOpt(opts map[string]*discordgo.ApplicationCommandInteractionDataOption, name string) string {
	o, ok := opts[name]
	if !ok || o.Value == nil {
		return ""
	}
	if s, ok := o.Value.(string); ok {
		return strings.TrimSpace(s)
	}
	return fmt.Sprint(o.Value)
}

// intOpt reads an integer option; the gateway decodes JSON numbers as float64.
func intOpt(opts map[string]*discordgo.ApplicationCommandInteractionDataOption, name string, def int64) int64 {
	o, ok := opts[name]
	if !ok || o.Value == nil {
		return def
	}
	switch v := o.Value.(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case int:
		return int64(v)
	}
	return def
}

func userMessage(err error) string {
	var ce *models.ConfigurationError
	switch {
	case errors.As(err, &ce):
		return fmt.Sprintf("Invalid value for %s: %s", ce.Field, ce.Reason)
	case errors.Is(err, models.ErrNotLocked):
		return "The server is not locked down."
	case errors.Is(err, models.ErrNotFound):
		return "Nothing to remove: " + err.Error()
	}
	return "Something went wrong, check the bot logs."
}

func respondError(s *discordgo.Session, i *discordgo.InteractionCreate, message string) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: "❌ " + message,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		logging.Warn("Failed to send error response: %v", err)
	}
}

func okEmbed(description string) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Description: description,
		Color:       colorOK,
	}
}

func onOff(b bool) string {
	if b {
		return "enabled"
	}
	return "disabled"
}
