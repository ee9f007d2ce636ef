package notifier

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"

	"go-antiraid/internal/models"
)

type captureSender struct {
	channel string
	msg     *discordgo.MessageSend
	err     error
}

func (c *captureSender) SendMessage(ctx context.Context, channelID string, msg *discordgo.MessageSend) error {
	c.channel = channelID
	c.msg = msg
	return c.err
}

func TestRenderRaidAlert(t *testing.T) {
	assert := assert.New(t)

	msg := RenderRaidAlert(RaidAlert{
		IncidentID:   "inc-1",
		Type:         models.IncidentRaidDetected,
		Severity:     models.SeveritySevere,
		JoinCount:    12,
		Window:       10 * time.Second,
		JoinRate:     1.2,
		Action:       models.ActionLockdown,
		NotifyRoleID: "mods",
		At:           time.Unix(1700000000, 0),
	})

	assert.Equal("<@&mods>", msg.Content)
	assert.Equal([]string{"mods"}, msg.AllowedMentions.Roles)
	assert.Empty(msg.AllowedMentions.Parse)
	if assert.Len(msg.Embeds, 1) {
		e := msg.Embeds[0]
		assert.Equal("🚨 Raid Detected", e.Title)
		assert.Equal(0xED4245, e.Color)
		assert.Equal("Incident inc-1", e.Footer.Text)
		assert.Contains(e.Fields[2].Value, "12 joins in 10s")
	}
}

func TestRenderRaidAlertWithoutRole(t *testing.T) {
	assert := assert.New(t)

	msg := RenderRaidAlert(RaidAlert{Type: models.IncidentSuspiciousMember, Severity: models.SeverityLow})
	assert.Empty(msg.Content)
	assert.Empty(msg.AllowedMentions.Roles)
	assert.Len(msg.Embeds[0].Fields, 3)
}

func TestSendRaidAlert(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	sender := &captureSender{}
	n := New(sender)

	err := n.SendRaidAlert(ctx, RaidAlert{})
	assert.True(models.IsConfigurationError(err))
	assert.Nil(sender.msg)

	assert.NoError(n.SendRaidAlert(ctx, RaidAlert{ChannelID: "alerts", Severity: models.SeverityModerate}))
	assert.Equal("alerts", sender.channel)

	sender.err = errors.New("missing access")
	assert.Error(n.SendRaidAlert(ctx, RaidAlert{ChannelID: "alerts"}))
}

func TestRenderIncidentList(t *testing.T) {
	assert := assert.New(t)

	assert.Equal("No incidents recorded.", RenderIncidentList(nil).Description)

	e := RenderIncidentList([]models.RaidIncident{{
		Type:             models.IncidentSimilarUsernames,
		Severity:         models.SeverityModerate,
		ActionTaken:      "ban: 3 succeeded, 0 failed, 0 skipped",
		AffectedAccounts: []string{"a", "b", "c"},
		Timestamp:        time.Unix(1700000000, 0),
	}})
	assert.Contains(e.Description, "SIMILAR_USERNAMES")
	assert.Contains(e.Description, "3 accounts")
}
