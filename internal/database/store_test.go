package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-antiraid/internal/config"
	"go-antiraid/internal/models"
)

func testStore(t *testing.T) *Store {
	s, err := Open(filepath.Join(t.TempDir(), "antiraid.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSettingsRoundTrip(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	s := testStore(t)

	got, err := s.Get(ctx, "g1")
	assert.NoError(err)
	assert.Equal(config.DefaultRaidSettings(), got)

	want := config.DefaultRaidSettings()
	want.Enabled = true
	want.ActionType = models.ActionKick
	want.JoinThreshold = 5
	want.AddExemptRole("r1")
	want.AlertChannelID = "c-alerts"
	assert.NoError(s.Update(ctx, "g1", want))

	got, err = s.Get(ctx, "g1")
	assert.NoError(err)
	assert.Equal(want, got)

	guilds, err := s.Guilds(ctx)
	assert.NoError(err)
	assert.Equal([]string{"g1"}, guilds)
}

func TestSettingsUpdateRejectsInvalid(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	s := testStore(t)

	bad := config.DefaultRaidSettings()
	bad.JoinThreshold = 0
	err := s.Update(ctx, "g1", bad)
	assert.True(models.IsConfigurationError(err))

	got, err := s.Get(ctx, "g1")
	assert.NoError(err)
	assert.Equal(10, got.JoinThreshold)
}

func TestIncidentsNewestFirst(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	s := testStore(t)

	base := time.UnixMilli(1_700_000_000_000).UTC()
	for i, id := range []string{"a", "b", "c"} {
		assert.NoError(s.Append(ctx, models.RaidIncident{
			ID:               id,
			GuildID:          "g1",
			Type:             models.IncidentRaidDetected,
			Severity:         models.SeverityModerate,
			Details:          "burst",
			ActionTaken:      "lockdown",
			AffectedAccounts: []string{"u" + id},
			Timestamp:        base.Add(time.Duration(i) * time.Second),
		}))
	}
	assert.NoError(s.Append(ctx, models.RaidIncident{ID: "other", GuildID: "g2", Type: models.IncidentSpamPattern, Timestamp: base}))
	assert.Error(s.Append(ctx, models.RaidIncident{ID: "a", GuildID: "g1"}))

	got, err := s.Recent(ctx, "g1", 2)
	assert.NoError(err)
	assert.Len(got, 2)
	assert.Equal("c", got[0].ID)
	assert.Equal("b", got[1].ID)
	assert.Equal([]string{"uc"}, got[0].AffectedAccounts)
	assert.Equal(models.SeverityModerate, got[0].Severity)
	assert.True(got[0].Timestamp.Equal(base.Add(2 * time.Second)))

	got, err = s.Recent(ctx, "g2", 10)
	assert.NoError(err)
	assert.Len(got, 1)
	assert.Empty(got[0].AffectedAccounts)
}

func TestJoinRecords(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	js := JoinStore{testStore(t)}

	now := time.UnixMilli(1_700_000_000_000).UTC()
	created := now.Add(-2 * time.Hour)
	recs := []models.JoinRecord{
		{GuildID: "g1", UserID: "late", Username: "late", JoinedAt: now.Add(-time.Second)},
		{GuildID: "g1", UserID: "early", Username: "early", AccountCreatedAt: created, JoinedAt: now.Add(-5 * time.Second)},
		{GuildID: "g1", UserID: "stale", JoinedAt: now.Add(-25 * time.Hour)},
		{GuildID: "g2", UserID: "elsewhere", JoinedAt: now},
	}
	for _, r := range recs {
		assert.NoError(js.Append(ctx, r))
	}
	assert.NoError(js.Append(ctx, recs[0]))

	got, err := js.Window(ctx, "g1", now.Add(-10*time.Second))
	assert.NoError(err)
	assert.Len(got, 2)
	assert.Equal("early", got[0].UserID)
	assert.True(got[0].AccountCreatedAt.Equal(created))
	assert.Equal("late", got[1].UserID)
	assert.True(got[1].AccountCreatedAt.IsZero())

	n, err := js.DeleteOlderThan(ctx, "g1", now.Add(-24*time.Hour))
	assert.NoError(err)
	assert.Equal(int64(1), n)

	got, err = js.Window(ctx, "g1", time.UnixMilli(1))
	assert.NoError(err)
	assert.Len(got, 2)
}

func TestSnapshots(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	s := testStore(t)

	assert.NoError(s.SaveSnapshot(ctx, models.ChannelSnapshot{GuildID: "g1", ChannelID: "c1", HadOverwrite: true, Overwrite: models.Overwrite{Allow: 1024, Deny: 64}}))
	assert.NoError(s.SaveSnapshot(ctx, models.ChannelSnapshot{GuildID: "g1", ChannelID: "c2"}))
	assert.NoError(s.SaveSnapshot(ctx, models.ChannelSnapshot{GuildID: "g2", ChannelID: "c9"}))

	snaps, err := s.Snapshots(ctx, "g1")
	assert.NoError(err)
	assert.Equal([]models.ChannelSnapshot{
		{GuildID: "g1", ChannelID: "c1", HadOverwrite: true, Overwrite: models.Overwrite{Allow: 1024, Deny: 64}},
		{GuildID: "g1", ChannelID: "c2"},
	}, snaps)

	assert.NoError(s.DeleteSnapshot(ctx, "g1", "c1"))
	snaps, err = s.Snapshots(ctx, "g1")
	assert.NoError(err)
	assert.Len(snaps, 1)
	assert.Equal("c2", snaps[0].ChannelID)
}
