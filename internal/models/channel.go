package models

import "github.com/bwmarrin/discordgo"

// LockdownDeny is denied to the default role on every locked channel.
const LockdownDeny int64 = discordgo.PermissionSendMessages |
	discordgo.PermissionAddReactions |
	discordgo.PermissionCreatePublicThreads |
	discordgo.PermissionCreatePrivateThreads |
	discordgo.PermissionSendMessagesInThreads

type Overwrite struct {
	Allow int64 `json:"allow"`
	Deny  int64 `json:"deny"`
}

// Apply returns base permissions with the overwrite applied.
func (o *Overwrite) Apply(base int64) int64 {
	if o == nil {
		return base
	}
	return (base &^ o.Deny) | o.Allow
}

// Locked returns the overwrite with the lockdown bits moved to deny.
func (o *Overwrite) Locked() Overwrite {
	if o == nil {
		return Overwrite{Deny: LockdownDeny}
	}
	return Overwrite{
		Allow: o.Allow &^ LockdownDeny,
		Deny:  o.Deny | LockdownDeny,
	}
}

// Channel is a guild channel with its current default-role overwrite, if any.
type Channel struct {
	ID               string
	Name             string
	DefaultOverwrite *Overwrite
}

// GrantsSend reports whether the default role can post in the channel.
func (c Channel) GrantsSend(base int64) bool {
	perms := c.DefaultOverwrite.Apply(base)
	if perms&discordgo.PermissionAdministrator != 0 {
		return true
	}
	return perms&discordgo.PermissionSendMessages != 0
}

// ChannelSnapshot captures the default-role overwrite a channel had before lockdown.
type ChannelSnapshot struct {
	GuildID      string    `json:"guild_id"`
	ChannelID    string    `json:"channel_id"`
	HadOverwrite bool      `json:"had_overwrite"`
	Overwrite    Overwrite `json:"overwrite"`
}
