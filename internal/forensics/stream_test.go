package forensics

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-antiraid/internal/config"
	"go-antiraid/internal/decision"
	"go-antiraid/internal/models"
)

type captureWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *captureWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *captureWriter) Close() error {
	w.closed = true
	return nil
}

func testIncident() models.RaidIncident {
	return models.RaidIncident{
		ID:               "inc-1",
		GuildID:          "g1",
		Type:             models.IncidentRaidDetected,
		Severity:         models.SeveritySevere,
		Details:          "25 joins in 10s",
		ActionTaken:      "lockdown: 4 channels locked",
		AffectedAccounts: []string{"u1", "u2"},
		Timestamp:        time.UnixMilli(1_700_000_000_000),
	}
}

func TestIncidentStreamPublishes(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	store := decision.NewMemIncidentStore()
	w := &captureWriter{}
	s := NewIncidentStream(store, w)

	require.NoError(t, s.Append(ctx, testIncident()))

	stored, err := s.Recent(ctx, "g1", 10)
	assert.NoError(err)
	assert.Len(stored, 1)

	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal("g1", string(msg.Key))
	assert.Equal("type", msg.Headers[0].Key)
	assert.Equal("RAID_DETECTED", string(msg.Headers[0].Value))

	var ev IncidentEvent
	require.NoError(t, json.Unmarshal(msg.Value, &ev))
	assert.Equal(1, ev.Version)
	assert.Equal("inc-1", ev.IncidentID)
	assert.Equal("SEVERE", ev.Severity)
	assert.Equal([]string{"u1", "u2"}, ev.AffectedAccounts)
	assert.Equal(int64(1_700_000_000_000), ev.Timestamp)

	assert.NoError(s.Close())
	assert.True(w.closed)
}

func TestIncidentStreamPublishFailureKeepsIncident(t *testing.T) {
	ctx := context.Background()

	store := decision.NewMemIncidentStore()
	s := NewIncidentStream(store, &captureWriter{err: errors.New("broker down")})

	assert.NoError(t, s.Append(ctx, testIncident()))
	stored, _ := store.Recent(ctx, "g1", 10)
	assert.Len(t, stored, 1)
}

func TestIncidentEventEmptyAccounts(t *testing.T) {
	inc := testIncident()
	inc.AffectedAccounts = nil

	data, err := NewIncidentEvent(inc, time.Now()).Encode()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"affected_accounts":[]`)
}

func TestNewKafkaWriterRequiresBrokers(t *testing.T) {
	_, err := NewKafkaWriter(config.KafkaConfig{Topic: "x"})
	assert.Error(t, err)

	w, err := NewKafkaWriter(config.KafkaConfig{Brokers: []string{"localhost:9092"}, Topic: "antiraid.incidents"})
	require.NoError(t, err)
	assert.Equal(t, "antiraid.incidents", w.Topic)
}
