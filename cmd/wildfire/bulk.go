package main

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/guygriffiths/wildfire/internal/progress"
	"github.com/guygriffiths/wildfire/internal/scheduler"
	"github.com/guygriffiths/wildfire/internal/tigge"
)

func bulkCommand() *cli.Command {
	return &cli.Command{
		Name:  "bulk",
		Usage: "Download all forecasts in a date range",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "start",
				Usage: "first date to retrieve (YYYY-MM-DD, default: archive epoch 2007-03-05)",
			},
			&cli.StringFlag{
				Name:  "end",
				Usage: "last date to retrieve (YYYY-MM-DD, default: today)",
			},
			&cli.BoolFlag{
				Name:  "force",
				Usage: "retrieve forecasts that are already downloaded",
			},
			&cli.BoolFlag{
				Name:  "reduced",
				Usage: "retrieve the reduced 5-variable set to save space",
			},
			&cli.BoolFlag{
				Name:  "quiet",
				Usage: "disable the progress display",
			},
		},
		Action: runBulk,
	}
}

func runBulk(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	start, err := parseDateOrZero(cmd.String("start"))
	if err != nil {
		return err
	}
	end, err := parseDateOrZero(cmd.String("end"))
	if err != nil {
		return err
	}
	if cmd.Bool("reduced") {
		cfg.Reduced = true
	}

	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	// The reporter needs the resolved range and task count up front.
	displayStart, displayEnd := start, end
	if displayStart.IsZero() {
		displayStart = tigge.Epoch
	}
	if displayEnd.IsZero() {
		displayEnd = time.Now().UTC()
	}
	tasks := tigge.Tasks(displayStart, displayEnd, cfg.Variables())

	var reporter *progress.Reporter
	if !cmd.Bool("quiet") {
		reporter = progress.NewReporter(progress.Options{
			TotalTasks: len(tasks),
			Workers:    len(cfg.Keys) * cfg.WorkersPerKey,
			Range: fmt.Sprintf("%s to %s",
				displayStart.Format("2006-01-02"),
				displayEnd.Format("2006-01-02")),
		})
		reporter.Start()
		defer reporter.Stop()
	}

	client := newRetriever(cfg)
	sched, err := scheduler.New(st, client.Retrieve, scheduler.Options{
		Credentials:   cfg.Credentials(),
		WorkersPerKey: cfg.WorkersPerKey,
		Variables:     cfg.Variables(),
		Force:         cmd.Bool("force"),
		Progress:      reporter,
	})
	if err != nil {
		return err
	}

	if err := sched.Run(ctx, start, end); err != nil {
		return err
	}

	if reporter != nil && reporter.Failed() > 0 {
		return fmt.Errorf("%d forecast(s) failed to download; rerun to retry them", reporter.Failed())
	}
	return nil
}
