package commands

import (
	"github.com/bwmarrin/discordgo"

	"go-antiraid/internal/logging"
)

// canAdminister allows the guild owner and members whose resolved
// permissions include Administrator.
func canAdminister(member *discordgo.Member, ownerID string) bool {
	if member == nil || member.User == nil {
		return false
	}
	if ownerID != "" && member.User.ID == ownerID {
		return true
	}
	return member.Permissions&discordgo.PermissionAdministrator != 0
}

func guildOwner(s *discordgo.Session, guildID string) string {
	guild, err := s.State.Guild(guildID)
	if err != nil {
		guild, err = s.Guild(guildID)
		if err != nil {
			logging.Warn("Failed to get guild %s: %v", guildID, err)
			return ""
		}
	}
	return guild.OwnerID
}
