package bot

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"

	"go-antiraid/internal/models"
)

func TestToChannels(t *testing.T) {
	assert := assert.New(t)

	chans := []*discordgo.Channel{
		{ID: "text", Type: discordgo.ChannelTypeGuildText, PermissionOverwrites: []*discordgo.PermissionOverwrite{
			{ID: "someone", Type: discordgo.PermissionOverwriteTypeMember, Deny: discordgo.PermissionSendMessages},
			{ID: "g1", Type: discordgo.PermissionOverwriteTypeRole, Allow: discordgo.PermissionAttachFiles, Deny: discordgo.PermissionEmbedLinks},
		}},
		{ID: "news", Type: discordgo.ChannelTypeGuildNews},
		{ID: "voice", Type: discordgo.ChannelTypeGuildVoice},
		{ID: "cat", Type: discordgo.ChannelTypeGuildCategory},
	}

	out := toChannels("g1", chans)
	assert.Len(out, 2)
	assert.Equal("text", out[0].ID)
	assert.Equal(&models.Overwrite{Allow: discordgo.PermissionAttachFiles, Deny: discordgo.PermissionEmbedLinks}, out[0].DefaultOverwrite)
	assert.Equal("news", out[1].ID)
	assert.Nil(out[1].DefaultOverwrite)
}

func TestToMember(t *testing.T) {
	assert := assert.New(t)

	guild := &discordgo.Guild{
		ID:      "g1",
		OwnerID: "owner",
		Roles: []*discordgo.Role{
			{ID: "admins", Permissions: discordgo.PermissionAdministrator},
			{ID: "members", Permissions: discordgo.PermissionSendMessages},
		},
	}

	m := toMember("g1", &discordgo.Member{
		User:  &discordgo.User{ID: "175928847299117063", Username: "wumpus"},
		Roles: []string{"members"},
	}, guild)
	assert.Equal("175928847299117063", m.UserID)
	assert.Equal("wumpus", m.Username)
	assert.Equal(time.Date(2016, 4, 30, 11, 18, 25, 796_000_000, time.UTC), m.CreatedAt.UTC())
	assert.False(m.Administrator)
	assert.Equal([]string{"members"}, m.RoleIDs)

	admin := toMember("g1", &discordgo.Member{User: &discordgo.User{ID: "2"}, Roles: []string{"admins"}}, guild)
	assert.True(admin.Administrator)

	owner := toMember("g1", &discordgo.Member{User: &discordgo.User{ID: "owner"}}, guild)
	assert.True(owner.Administrator)

	cold := toMember("g1", &discordgo.Member{User: &discordgo.User{ID: "3", Bot: true}, Roles: []string{"admins"}}, nil)
	assert.False(cold.Administrator)
	assert.True(cold.Bot)
}

func TestToMessage(t *testing.T) {
	assert := assert.New(t)

	msg := toMessage(&discordgo.Message{
		ID:           "m1",
		GuildID:      "g1",
		ChannelID:    "c1",
		Content:      "hello @a @b",
		Author:       &discordgo.User{ID: "u1", Username: "alice"},
		Member:       &discordgo.Member{Roles: []string{"r1"}},
		Mentions:     []*discordgo.User{{ID: "a"}, {ID: "b"}},
		MentionRoles: []string{"r9"},
	}, nil)

	assert.Equal("m1", msg.MessageID)
	assert.Equal("u1", msg.Author.UserID)
	assert.Equal([]string{"r1"}, msg.Author.RoleIDs)
	assert.Equal(2, msg.UserMentions)
	assert.Equal(1, msg.RoleMentions)
}

func TestMapError(t *testing.T) {
	assert := assert.New(t)

	notFound := &discordgo.RESTError{Response: &http.Response{StatusCode: http.StatusNotFound, Status: "404 Not Found"}}
	assert.ErrorIs(mapError(notFound), models.ErrNotFound)

	limited := &discordgo.RESTError{Response: &http.Response{StatusCode: http.StatusTooManyRequests, Status: "429"}}
	assert.ErrorIs(mapError(limited), models.ErrRateLimited)

	forbidden := &discordgo.RESTError{Response: &http.Response{StatusCode: http.StatusForbidden, Status: "403"}}
	assert.Same(forbidden, mapError(forbidden))

	other := errors.New("boom")
	assert.Equal(other, mapError(other))
	assert.NoError(mapError(nil))
}
