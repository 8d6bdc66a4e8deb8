// Package main is the entry point for rankboard.
//
// The main package stays minimal: read configuration, build the logger,
// open the App and hand control to a command. All logic lives in internal/.
//
// COMMANDS:
//
//	rankboard serve              run the HTTP server (default)
//	rankboard seed [--fake N]    insert demo admins, users and a challenge
//	rankboard sweep [--dry-run]  delete blobs no database row refers to
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/sakif/rankboard/internal/config"
	"github.com/sakif/rankboard/internal/server"
	"github.com/sakif/rankboard/internal/service"
	"github.com/sakif/rankboard/internal/storage"
)

func main() {
	app := &cli.App{
		Name:  "rankboard",
		Usage: "challenge submissions, multi-judge scoring and leaderboards",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:  "env-file",
				Usage: "dotenv files to load before reading the environment",
				Value: cli.NewStringSlice(".env"),
			},
		},
		DefaultCommand: "serve",
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP server",
				Action: serve,
			},
			{
				Name:  "seed",
				Usage: "insert demo accounts and a sample challenge (idempotent)",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "fake", Usage: "also generate `N` random participants"},
				},
				Action: seed,
			},
			{
				Name:  "sweep",
				Usage: "delete stored files that no database row refers to",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "dry-run", Usage: "only list what would be deleted"},
				},
				Action: sweep,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "rankboard:", err)
		os.Exit(1)
	}
}

// setup loads the config, builds the logger and opens the App.
func setup(c *cli.Context) (*server.App, *slog.Logger, error) {
	cfg, err := config.Load(c.StringSlice("env-file")...)
	if err != nil {
		return nil, nil, err
	}
	logger := newLogger(cfg)
	slog.SetDefault(logger)

	app, err := server.Open(c.Context, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return app, logger, nil
}

// newLogger writes human-readable text in development and JSON elsewhere.
func newLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}
	if cfg.Env == config.EnvDevelopment {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

func serve(c *cli.Context) error {
	app, logger, err := setup(c)
	if err != nil {
		return err
	}

	if err := app.EnsureRootAdmin(c.Context, logger); err != nil {
		app.Close()
		return err
	}
	if app.GitHub == nil {
		logger.Info("GitHub login disabled: GITHUB_CLIENT_ID or GITHUB_CLIENT_SECRET not set")
	}

	// Start blocks until SIGINT/SIGTERM and closes the App on the way out.
	return server.New(app, logger).Start()
}

func seed(c *cli.Context) error {
	app, logger, err := setup(c)
	if err != nil {
		return err
	}
	defer app.Close()

	root := app.Config.RootAdmin
	report, err := app.Seeder.Seed(c.Context, service.SeedOptions{
		RootUsername: root.Username,
		RootEmail:    root.Email,
		RootPassword: root.Password,
		Fake:         c.Int("fake"),
	})
	if err != nil {
		return err
	}
	logger.Info("seed complete",
		slog.Int("users_created", report.Users),
		slog.Int("challenges_created", report.Challenges),
	)
	return nil
}

func sweep(c *cli.Context) error {
	app, logger, err := setup(c)
	if err != nil {
		return err
	}
	defer app.Close()

	dryRun := c.Bool("dry-run")
	orphans, err := app.Maintenance.Sweep(c.Context, dryRun)
	if err != nil {
		return err
	}

	total := 0
	for _, bucket := range storage.Buckets {
		for _, name := range orphans[bucket] {
			fmt.Fprintf(c.App.Writer, "%s/%s\n", bucket, name)
			total++
		}
	}
	logger.Info("sweep complete", slog.Bool("dry_run", dryRun), slog.Int("orphans", total))
	return nil
}
