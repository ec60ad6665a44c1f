package main

import (
	"context"
	"io"
	"os"

	"github.com/akeren/launch-waitlist/config"
	"github.com/akeren/launch-waitlist/internal/log"
	"github.com/urfave/cli/v3"
)

func main() {
	logger := log.NewLoggerWithJSONOutput()

	config.InitializeEnvFile(logger) // Load envs early for CLI consistency

	cmd := &cli.Command{
		Name:  "cli",
		Usage: "launch waitlist administration tool",
		Commands: []*cli.Command{
			migrateCommand(),
			importCommand(),
			inspectCommand(),
		},
	}

	ctx, _ := log.NewBackgroundContext(logger.With("command", cmd.Name))

	if err := cmd.Run(ctx, os.Args); err != nil {
		logger.Error(err.Error())
		os.Exit(1)
	}
}

func loggerFrom(ctx context.Context) *log.Logger {
	return log.GetLoggerInstanceFromContext(ctx, log.NewLoggerWithJSONOutput())
}

func stdout(cmd *cli.Command) io.Writer {
	if w := cmd.Root().Writer; w != nil {
		return w
	}
	return os.Stdout
}
