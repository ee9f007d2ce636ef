package bot

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/bwmarrin/discordgo"

	"go-antiraid/internal/models"
)

// Gateway adapts a discordgo session to the engine's channel and message
// collaborators. The default role of a guild shares the guild's ID.
type Gateway struct {
	s *discordgo.Session
}

func NewGateway(s *discordgo.Session) *Gateway {
	return &Gateway{s: s}
}

// lockable channel kinds; voice, category and thread channels are left alone
var lockableTypes = map[discordgo.ChannelType]bool{
	discordgo.ChannelTypeGuildText:  true,
	discordgo.ChannelTypeGuildNews:  true,
	discordgo.ChannelTypeGuildForum: true,
}

func (g *Gateway) Channels(ctx context.Context, guildID string) ([]models.Channel, error) {
	chans, err := g.s.GuildChannels(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, mapError(err)
	}
	return toChannels(guildID, chans), nil
}

func toChannels(guildID string, chans []*discordgo.Channel) []models.Channel {
	out := make([]models.Channel, 0, len(chans))
	for _, ch := range chans {
		if !lockableTypes[ch.Type] {
			continue
		}
		c := models.Channel{ID: ch.ID, Name: ch.Name}
		for _, po := range ch.PermissionOverwrites {
			if po.Type == discordgo.PermissionOverwriteTypeRole && po.ID == guildID {
				c.DefaultOverwrite = &models.Overwrite{Allow: po.Allow, Deny: po.Deny}
				break
			}
		}
		out = append(out, c)
	}
	return out
}

func (g *Gateway) DefaultRolePermissions(ctx context.Context, guildID string) (int64, error) {
	if role, err := g.s.State.Role(guildID, guildID); err == nil {
		return role.Permissions, nil
	}

	roles, err := g.s.GuildRoles(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return 0, mapError(err)
	}
	for _, r := range roles {
		if r.ID == guildID {
			return r.Permissions, nil
		}
	}
	return 0, fmt.Errorf("default role of %s: %w", guildID, models.ErrNotFound)
}

func (g *Gateway) SetDefaultRoleOverwrite(ctx context.Context, guildID, channelID string, ow models.Overwrite) error {
	err := g.s.ChannelPermissionSet(channelID, guildID, discordgo.PermissionOverwriteTypeRole, ow.Allow, ow.Deny, discordgo.WithContext(ctx))
	return mapError(err)
}

func (g *Gateway) DeleteDefaultRoleOverwrite(ctx context.Context, guildID, channelID string) error {
	return mapError(g.s.ChannelPermissionDelete(channelID, guildID, discordgo.WithContext(ctx)))
}

func (g *Gateway) SendMessage(ctx context.Context, channelID string, msg *discordgo.MessageSend) error {
	_, err := g.s.ChannelMessageSendComplex(channelID, msg, discordgo.WithContext(ctx))
	return mapError(err)
}

// mapError turns Discord's 404s and 429s into the model error taxonomy.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var rest *discordgo.RESTError
	if errors.As(err, &rest) && rest.Response != nil {
		switch rest.Response.StatusCode {
		case http.StatusNotFound:
			return fmt.Errorf("%w: %v", models.ErrNotFound, err)
		case http.StatusTooManyRequests:
			return fmt.Errorf("%w: %v", models.ErrRateLimited, err)
		}
	}
	return err
}
