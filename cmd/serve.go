package cmd

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/scriptguard/internal/api"
	"github.com/scriptguard/internal/config"
	"github.com/scriptguard/internal/database"
	"github.com/scriptguard/internal/jobqueue"
	"github.com/scriptguard/internal/logging"
)

// ServeCommand returns the CLI command for starting the API server
func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the ScriptGuard API server",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port for the API server (overrides config)",
			},
		},
		Action: runServe,
	}
}

func runServe(c *cli.Context) error {
	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if c.IsSet("port") {
		cfg.Server.Port = c.Int("port")
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if err := logging.Setup(cfg.Logging.Level, cfg.Logging.File); err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}

	db, err := database.NewDB()
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	ctx := context.Background()
	if err := database.EnsureSchema(ctx, db); err != nil {
		return err
	}

	if cfg.Retention.LogDays > 0 {
		pool, err := database.NewPool(ctx)
		if err != nil {
			return fmt.Errorf("failed to create job queue pool: %w", err)
		}
		defer pool.Close()

		queue, err := jobqueue.NewJobQueue(ctx, pool, cfg.Retention.LogDays)
		if err != nil {
			return err
		}
		if err := queue.Start(ctx); err != nil {
			return fmt.Errorf("failed to start job queue: %w", err)
		}
		defer queue.Stop(ctx)
	}

	log.Info().Int("port", cfg.Server.Port).Msg("starting ScriptGuard API server")
	server := api.NewServer(cfg, db)
	return server.Start()
}
