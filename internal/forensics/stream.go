package forensics

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"go-antiraid/internal/config"
	"go-antiraid/internal/logging"
	"go-antiraid/internal/metrics"
	"go-antiraid/internal/models"
)

const defaultPublishTimeout = 5 * time.Second

// IncidentStore matches the engine's incident persistence.
type IncidentStore interface {
	Append(ctx context.Context, inc models.RaidIncident) error
	Recent(ctx context.Context, guildID string, limit int) ([]models.RaidIncident, error)
}

// MessageWriter is the part of *kafka.Writer the stream uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// IncidentStream stores incidents in the wrapped store and then publishes
// them, keyed by guild. A failed publish never fails the append.
type IncidentStream struct {
	store   IncidentStore
	writer  MessageWriter
	timeout time.Duration
	now     func() time.Time
}

func NewIncidentStream(store IncidentStore, writer MessageWriter) *IncidentStream {
	return &IncidentStream{
		store:   store,
		writer:  writer,
		timeout: defaultPublishTimeout,
		now:     time.Now,
	}
}

// NewKafkaWriter builds a writer for cfg. Messages of one guild land on one
// partition so consumers see them in order.
func NewKafkaWriter(cfg config.KafkaConfig) (*kafka.Writer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka: no brokers configured")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("kafka: no topic configured")
	}
	return &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           50 * time.Millisecond,
		WriteTimeout:           cfg.WriteTimeout,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
		Logger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			logging.Debug("[KAFKA] "+msg, args...)
		}),
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			logging.Error("[KAFKA] "+msg, args...)
		}),
	}, nil
}

func (s *IncidentStream) Append(ctx context.Context, inc models.RaidIncident) error {
	if err := s.store.Append(ctx, inc); err != nil {
		return err
	}
	s.publish(ctx, inc)
	return nil
}

func (s *IncidentStream) Recent(ctx context.Context, guildID string, limit int) ([]models.RaidIncident, error) {
	return s.store.Recent(ctx, guildID, limit)
}

func (s *IncidentStream) publish(ctx context.Context, inc models.RaidIncident) {
	value, err := NewIncidentEvent(inc, s.now()).Encode()
	if err != nil {
		logging.Error("[FORENSICS] Failed to encode incident %s: %v", inc.ID, err)
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	err = s.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(inc.GuildID),
		Value: value,
		Time:  s.now(),
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(inc.Type)},
		},
	})
	if err != nil {
		metrics.StreamErrors.Inc()
		logging.Warn("[FORENSICS] Failed to publish incident %s: %v", inc.ID, err)
	}
}

func (s *IncidentStream) Close() error {
	return s.writer.Close()
}
