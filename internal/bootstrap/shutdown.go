package bootstrap

import (
	"go-antiraid/internal/logging"
)

// Shutdown stops taking events first, then timers, then closes the stores.
// Locked guilds stay locked; their snapshots are recovered on the next start.
func Shutdown(c *Components) error {
	logging.Info("Starting graceful shutdown...")

	logging.Info("Closing Discord session...")
	if err := c.Session.Close(); err != nil {
		logging.Warn("Failed to close session: %v", err)
	}

	logging.Info("Stopping engine timers...")
	c.Engine.Shutdown()

	c.HTTPPool.CloseIdle()

	logging.Info("Closing stores...")
	c.Stores.Close()

	logging.Info("Graceful shutdown complete")
	return logging.Close()
}
