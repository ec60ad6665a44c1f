package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"time"

	"github.com/akeren/launch-waitlist/config"
	schema "github.com/akeren/launch-waitlist/migrations"
	"github.com/akeren/launch-waitlist/pkg/migrations"
	"github.com/akeren/launch-waitlist/pkg/utils"
	"github.com/urfave/cli/v3"
)

const migrationTimeout = 5 * time.Minute

func migrateCommand() *cli.Command {
	dirFlag := &cli.StringFlag{
		Name:  "dir",
		Usage: "read migrations from this directory instead of the embedded set",
		Value: utils.GetEnvTrimmedOrDefault("MIGRATIONS_DIR", ""),
	}

	return &cli.Command{
		Name:  "migrate",
		Usage: "manage the database schema",
		Flags: []cli.Flag{dirFlag},
		Commands: []*cli.Command{
			{
				Name:   "up",
				Usage:  "apply all pending migrations",
				Action: withMigrationDB(migrations.Up),
			},
			{
				Name:   "down",
				Usage:  "roll back the most recent migration",
				Action: withMigrationDB(migrations.Down),
			},
			{
				Name:  "status",
				Usage: "print the applied schema version",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return withMigrationDB(func(ctx context.Context, db *sql.DB, cfg migrations.Config) error {
						status, err := migrations.CurrentStatus(ctx, db, cfg)
						if err != nil {
							return err
						}
						printStatus(stdout(cmd), status)
						return nil
					})(ctx, cmd)
				},
			},
		},
		// Bare "migrate" keeps the old behaviour of applying everything.
		Action: withMigrationDB(migrations.Up),
	}
}

type migrationStep func(ctx context.Context, db *sql.DB, cfg migrations.Config) error

func withMigrationDB(step migrationStep) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		logger := loggerFrom(ctx)

		db, err := config.NewDatabase(logger, config.NewDBConfig())
		if err != nil {
			return fmt.Errorf("connect to database for migration: %w", err)
		}

		sqlDB, err := db.DB()
		if err != nil {
			return fmt.Errorf("get SQL DB instance for migration: %w", err)
		}
		defer func() {
			if err := sqlDB.Close(); err != nil {
				logger.Warn("Failed to close SQL DB after migration", "error", err.Error())
			}
		}()

		ctx, cancel := context.WithTimeout(ctx, migrationTimeout)
		defer cancel()

		return step(ctx, sqlDB, migrationConfig(cmd.String("dir"), logger))
	}
}

// migrationConfig prefers an on-disk directory when one is given.
func migrationConfig(dir string, logger migrations.Logger) migrations.Config {
	if dir != "" {
		return migrations.Config{Dir: dir, Logger: logger}
	}
	return migrations.Config{FS: schema.FS, Logger: logger}
}

func printStatus(w io.Writer, status migrations.Status) {
	switch {
	case status.Empty:
		fmt.Fprintln(w, "no migrations applied")
	case status.Dirty:
		fmt.Fprintf(w, "version %d (dirty: fix the failed migration before continuing)\n", status.Version)
	default:
		fmt.Fprintf(w, "version %d\n", status.Version)
	}
}
