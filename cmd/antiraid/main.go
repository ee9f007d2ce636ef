package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"go-antiraid/internal/bootstrap"
	"go-antiraid/internal/config"
	"go-antiraid/internal/logging"
)

func main() {
	app := cli.App{
		Name:  "antiraid",
		Usage: "Discord raid detection and lockdown bot",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to the YAML config file",
				Value:   "config.yaml",
				EnvVars: []string{"ANTIRAID_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "database",
				Usage:   "SQLite database path (empty keeps state in memory)",
				EnvVars: []string{"DATABASE_PATH"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "debug, info, warn or error",
				EnvVars: []string{"LOG_LEVEL"},
			},
		},
		Action: run,
	}
	app.Commands = []*cli.Command{
		{
			Name:   "run",
			Usage:  "connect to Discord and protect guilds (default)",
			Action: run,
		},
		{
			Name:   "check-config",
			Usage:  "load the config and print the effective values",
			Action: runCheckConfig,
		},
	}
	app.RunAndExitOnError()
}

func loadConfig(cctx *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(cctx.String("config"))
	if err != nil {
		return nil, err
	}
	if cctx.IsSet("database") {
		cfg.Database.Path = cctx.String("database")
	}
	if lvl := cctx.String("log-level"); lvl != "" {
		cfg.Logging.Level = lvl
	}
	return cfg, nil
}

func run(cctx *cli.Context) error {
	cfg, err := loadConfig(cctx)
	if err != nil {
		return err
	}

	b := bootstrap.New(cfg)
	if err := b.Initialize(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cctx.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := b.Start(ctx); err != nil {
		_ = b.Shutdown()
		return err
	}
	logging.Info("Raid protection running, press Ctrl+C to stop")

	<-ctx.Done()
	return b.Shutdown()
}

func runCheckConfig(cctx *cli.Context) error {
	cfg, err := loadConfig(cctx)
	if err != nil {
		return err
	}
	token := "unset"
	if cfg.Bot.Token != "" {
		token = "set"
	}
	fmt.Printf("token:      %s\n", token)
	fmt.Printf("database:   %q\n", cfg.Database.Path)
	fmt.Printf("redis:      %q\n", cfg.Redis.URL)
	fmt.Printf("kafka:      %v (topic %s)\n", cfg.Kafka.Brokers, cfg.Kafka.Topic)
	fmt.Printf("metrics:    %q\n", cfg.Metrics.Addr)
	fmt.Printf("log level:  %s\n", cfg.Logging.Level)
	return nil
}
