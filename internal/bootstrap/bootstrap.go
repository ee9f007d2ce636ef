package bootstrap

import (
	"context"
	"fmt"

	"go-antiraid/internal/config"
	"go-antiraid/internal/logging"
	"go-antiraid/internal/metrics"
)

type Bootstrap struct {
	Config      *config.Config
	Components  *Components
	initialized bool

	cancel context.CancelFunc
}

func New(cfg *config.Config) *Bootstrap {
	return &Bootstrap{Config: cfg}
}

func (b *Bootstrap) Initialize() error {
	if err := b.initializeLogging(); err != nil {
		return fmt.Errorf("logging init failed: %w", err)
	}
	if b.Config.Bot.Token == "" {
		return fmt.Errorf("no bot token configured (set bot.token or DISCORD_TOKEN)")
	}

	stores, err := OpenStores(b.Config)
	if err != nil {
		return fmt.Errorf("store init failed: %w", err)
	}

	components, err := Wire(b.Config, stores)
	if err != nil {
		stores.Close()
		return fmt.Errorf("component wiring failed: %w", err)
	}

	b.Components = components
	b.initialized = true
	logging.Info("Bootstrap complete")
	return nil
}

func (b *Bootstrap) initializeLogging() error {
	return logging.InitGlobalLogger(logging.ParseLevel(b.Config.Logging.Level), b.Config.Logging.File)
}

// Start connects to Discord and starts the background loops. It returns once
// the session is open.
func (b *Bootstrap) Start(ctx context.Context) error {
	if !b.initialized {
		return fmt.Errorf("bootstrap not initialized")
	}
	ctx, b.cancel = context.WithCancel(ctx)
	return StartAll(ctx, b.Config, b.Components)
}

func (b *Bootstrap) Shutdown() error {
	if b.cancel != nil {
		b.cancel()
	}
	if b.Components == nil {
		return nil
	}
	return Shutdown(b.Components)
}

func StartAll(ctx context.Context, cfg *config.Config, c *Components) error {
	for _, guildID := range c.Stores.KnownGuilds(ctx) {
		c.Joins.Track(guildID)
	}
	go c.Joins.Run(ctx, cfg.Engine.PruneInterval)

	if cfg.Metrics.Addr != "" {
		go func() {
			if err := metrics.Serve(ctx, cfg.Metrics.Addr); err != nil {
				logging.Error("Metrics exporter stopped: %v", err)
			}
		}()
	}

	c.Session.SetupEventHandlers(c.Engine)
	if err := c.Session.Connect(); err != nil {
		return err
	}
	if err := c.Commands.Initialize(c.Session); err != nil {
		return err
	}

	logging.Info("All components started")
	return nil
}
