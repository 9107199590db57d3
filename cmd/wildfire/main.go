package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	_ "gocloud.dev/blob/s3blob"
)

func main() {
	cmd := &cli.Command{
		Name:    "wildfire",
		Usage:   "Bulk TIGGE forecast retrieval for the Wildfire project",
		Version: "1.0.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "path to configuration yaml file",
				Value: "wildfire.yaml",
			},
		},
		Commands: []*cli.Command{
			bulkCommand(),
			getCommand(),
			statusCommand(),
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.Run(ctx, os.Args); err != nil {
		if ctx.Err() == context.Canceled {
			fmt.Fprintln(os.Stderr, "\nwildfire: interrupted")
			os.Exit(130)
		}
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}
