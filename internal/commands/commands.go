package commands

import "github.com/bwmarrin/discordgo"

const CommandName = "antiraid"

var (
	minOne          = 1.0
	zero            = 0.0
	adminDM         = false
	adminOnly int64 = discordgo.PermissionAdministrator
)

func roleOption(required bool) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Name:        "role",
		Description: "Role",
		Type:        discordgo.ApplicationCommandOptionRole,
		Required:    required,
	}
}

func channelOption(required bool) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Name:         "channel",
		Description:  "Channel",
		Type:         discordgo.ApplicationCommandOptionChannel,
		ChannelTypes: []discordgo.ChannelType{discordgo.ChannelTypeGuildText, discordgo.ChannelTypeGuildNews, discordgo.ChannelTypeGuildForum},
		Required:     required,
	}
}

func addRemoveGroup(name, description string, target func(bool) *discordgo.ApplicationCommandOption) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Name:        name,
		Description: description,
		Type:        discordgo.ApplicationCommandOptionSubCommandGroup,
		Options: []*discordgo.ApplicationCommandOption{
			{
				Name:        "add",
				Description: "Add an exemption",
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Options:     []*discordgo.ApplicationCommandOption{target(true)},
			},
			{
				Name:        "remove",
				Description: "Remove an exemption",
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Options:     []*discordgo.ApplicationCommandOption{target(true)},
			},
		},
	}
}

// GetAllCommands returns all application commands
func GetAllCommands() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{
			Name:                     CommandName,
			Description:              "Manage raid protection",
			DefaultMemberPermissions: &adminOnly,
			DMPermission:             &adminDM,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Name:        "enable",
					Description: "Turn raid protection on",
					Type:        discordgo.ApplicationCommandOptionSubCommand,
				},
				{
					Name:        "disable",
					Description: "Turn raid protection off",
					Type:        discordgo.ApplicationCommandOptionSubCommand,
				},
				{
					Name:        "action",
					Description: "Choose the response to a raid",
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Options: []*discordgo.ApplicationCommandOption{
						{
							Name:        "type",
							Description: "Response",
							Type:        discordgo.ApplicationCommandOptionString,
							Required:    true,
							Choices: []*discordgo.ApplicationCommandOptionChoice{
								{Name: "Lock channels", Value: "lockdown"},
								{Name: "Ban joiners", Value: "ban"},
								{Name: "Kick joiners", Value: "kick"},
							},
						},
					},
				},
				{
					Name:        "threshold",
					Description: "Set how many joins within a window count as a raid",
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Options: []*discordgo.ApplicationCommandOption{
						{
							Name:        "joins",
							Description: "Number of joins",
							Type:        discordgo.ApplicationCommandOptionInteger,
							Required:    true,
							MinValue:    &minOne,
						},
						{
							Name:        "seconds",
							Description: "Window length in seconds",
							Type:        discordgo.ApplicationCommandOptionInteger,
							Required:    true,
							MinValue:    &minOne,
						},
					},
				},
				{
					Name:        "account-age",
					Description: "Minimum account age in days (0 disables the check)",
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Options: []*discordgo.ApplicationCommandOption{
						{
							Name:        "days",
							Description: "Days",
							Type:        discordgo.ApplicationCommandOptionInteger,
							Required:    true,
							MinValue:    &zero,
						},
					},
				},
				addRemoveGroup("exempt-role", "Roles raid protection ignores", roleOption),
				addRemoveGroup("exempt-channel", "Channels raid protection ignores", channelOption),
				{
					Name:        "alert-channel",
					Description: "Where raid alerts are posted (omit to turn alerts off)",
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Options:     []*discordgo.ApplicationCommandOption{channelOption(false)},
				},
				{
					Name:        "notify-role",
					Description: "Role pinged on raid alerts (omit to stop pinging)",
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Options:     []*discordgo.ApplicationCommandOption{roleOption(false)},
				},
				{
					Name:        "lockdown-duration",
					Description: "Minutes before a lockdown lifts (0 keeps it until unlocked)",
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Options: []*discordgo.ApplicationCommandOption{
						{
							Name:        "minutes",
							Description: "Minutes",
							Type:        discordgo.ApplicationCommandOptionInteger,
							Required:    true,
							MinValue:    &zero,
						},
					},
				},
				{
					Name:        "mention-threshold",
					Description: "Mentions within a member's recent messages that count as spam",
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Options: []*discordgo.ApplicationCommandOption{
						{
							Name:        "mentions",
							Description: "Mentions",
							Type:        discordgo.ApplicationCommandOptionInteger,
							Required:    true,
							MinValue:    &minOne,
						},
					},
				},
				{
					Name:        "similarity",
					Description: "Username similarity percentage that groups joiners",
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Options: []*discordgo.ApplicationCommandOption{
						{
							Name:        "percent",
							Description: "0 to 100",
							Type:        discordgo.ApplicationCommandOptionInteger,
							Required:    true,
							MinValue:    &zero,
							MaxValue:    100,
						},
					},
				},
				{
					Name:        "settings",
					Description: "Show the raid protection settings",
					Type:        discordgo.ApplicationCommandOptionSubCommand,
				},
				{
					Name:        "lockdown",
					Description: "Lock the server now",
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Options: []*discordgo.ApplicationCommandOption{
						{
							Name:        "reason",
							Description: "Reason",
							Type:        discordgo.ApplicationCommandOptionString,
						},
					},
				},
				{
					Name:        "unlock",
					Description: "End the lockdown now",
					Type:        discordgo.ApplicationCommandOptionSubCommand,
				},
				{
					Name:        "incidents",
					Description: "Show recent incidents",
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Options: []*discordgo.ApplicationCommandOption{
						{
							Name:        "limit",
							Description: "How many (1 to 25)",
							Type:        discordgo.ApplicationCommandOptionInteger,
							MinValue:    &minOne,
							MaxValue:    MaxIncidentLimit,
						},
					},
				},
				{
					Name:        "status",
					Description: "Show raid protection status",
					Type:        discordgo.ApplicationCommandOptionSubCommand,
				},
			},
		},
	}
}
