package bootstrap

import (
	"context"
	"fmt"

	"go-antiraid/internal/bot"
	"go-antiraid/internal/commands"
	"go-antiraid/internal/config"
	"go-antiraid/internal/database"
	"go-antiraid/internal/decision"
	"go-antiraid/internal/detectors"
	"go-antiraid/internal/dispatcher"
	"go-antiraid/internal/forensics"
	"go-antiraid/internal/logging"
	"go-antiraid/internal/notifier"
	"go-antiraid/internal/state"
)

// Stores groups the persistence the engine runs on.
type Stores struct {
	Settings  decision.SettingsStore
	Incidents decision.IncidentStore
	Joins     detectors.JoinStore
	Snapshots decision.SnapshotStore
	Markers   state.RaidMarkerStore

	db     *database.Store
	redis  *state.RedisMarkerStore
	stream *forensics.IncidentStream
}

// OpenStores opens SQLite at cfg.Database.Path, or keeps everything in memory
// when the path is empty. Markers go to Redis when a URL is configured and
// incidents are also streamed to Kafka when brokers are.
func OpenStores(cfg *config.Config) (*Stores, error) {
	st := &Stores{}

	if cfg.Database.Path == "" {
		logging.Warn("No database path configured, state is kept in memory only")
		st.Settings = config.NewProfileStore()
		st.Incidents = decision.NewMemIncidentStore()
		st.Joins = detectors.NewMemJoinStore()
		st.Snapshots = decision.NewMemSnapshotStore()
	} else {
		db, err := database.Open(cfg.Database.Path)
		if err != nil {
			return nil, err
		}
		logging.Info("Database opened at %s", cfg.Database.Path)
		st.db = db
		st.Settings = db
		st.Incidents = db
		st.Joins = database.JoinStore{Store: db}
		st.Snapshots = db
	}

	if cfg.Redis.URL != "" {
		rs, err := state.NewRedisMarkerStore(cfg.Redis.URL, cfg.Redis.KeyPrefix)
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("redis: %w", err)
		}
		logging.Info("Raid markers shared through Redis")
		st.redis = rs
		st.Markers = rs
	} else {
		st.Markers = state.NewMemMarkerStore()
	}

	if len(cfg.Kafka.Brokers) > 0 {
		w, err := forensics.NewKafkaWriter(cfg.Kafka)
		if err != nil {
			st.Close()
			return nil, err
		}
		logging.Info("Streaming incidents to Kafka topic %s", cfg.Kafka.Topic)
		st.stream = forensics.NewIncidentStream(st.Incidents, w)
		st.Incidents = st.stream
	}

	return st, nil
}

// KnownGuilds lists guilds with stored settings.
func (st *Stores) KnownGuilds(ctx context.Context) []string {
	if st.db != nil {
		guilds, err := st.db.Guilds(ctx)
		if err != nil {
			logging.Warn("Failed to list configured guilds: %v", err)
		}
		return guilds
	}
	if ps, ok := st.Settings.(*config.ProfileStore); ok {
		return ps.Guilds()
	}
	return nil
}

func (st *Stores) Close() {
	if st.stream != nil {
		if err := st.stream.Close(); err != nil {
			logging.Warn("Failed to close incident stream: %v", err)
		}
	}
	if st.redis != nil {
		if err := st.redis.Close(); err != nil {
			logging.Warn("Failed to close redis: %v", err)
		}
	}
	if st.db != nil {
		if err := st.db.Close(); err != nil {
			logging.Warn("Failed to close database: %v", err)
		}
	}
}

type Components struct {
	Stores    *Stores
	Session   *bot.Session
	Joins     *detectors.JoinVelocityTracker
	Engine    *decision.Engine
	Moderator *dispatcher.RESTModerator
	HTTPPool  *dispatcher.HTTPPool
	Admin     *commands.Admin
	Commands  *commands.Handler
}

// Wire builds every component over stores. The session is created but not opened.
func Wire(cfg *config.Config, stores *Stores) (*Components, error) {
	logging.Info("Wiring components...")

	session, err := bot.NewSession(cfg.Bot.Token)
	if err != nil {
		return nil, err
	}
	gateway := bot.NewGateway(session.Discord())

	httpPool := dispatcher.NewHTTPPool(cfg.Network.HTTPPoolSize, nil)
	moderator := dispatcher.NewRESTModerator(cfg.Bot.Token, httpPool, dispatcher.NewRateLimitMonitor()).
		WithAPIBase(cfg.Network.APIBaseURL).
		WithTimeout(cfg.Network.RequestTimeout)

	joins := detectors.NewJoinVelocityTracker(stores.Joins, cfg.Engine.JoinRetention)

	engine := decision.NewEngine(decision.Deps{
		Settings:  stores.Settings,
		Incidents: stores.Incidents,
		Joins:     joins,
		Messages:  detectors.NewMessageTracker(cfg.Engine.MessageWindowAccts, cfg.Engine.MessageWindowTTL),
		Lockdown:  decision.NewLockdownController(gateway, stores.Snapshots),
		Markers:   stores.Markers,
		Moderator: moderator,
		Alerter:   notifier.New(gateway),
	}, decision.Options{
		SimilarGroupMinSize: cfg.Engine.SimilarGroupMinSize,
	})

	admin := commands.NewAdmin(stores.Settings, engine)

	logging.Info("Components wired")
	return &Components{
		Stores:    stores,
		Session:   session,
		Joins:     joins,
		Engine:    engine,
		Moderator: moderator,
		HTTPPool:  httpPool,
		Admin:     admin,
		Commands:  commands.NewHandler(admin),
	}, nil
}
