package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/guygriffiths/wildfire/internal/scheduler"
	"github.com/guygriffiths/wildfire/internal/tigge"
)

func getCommand() *cli.Command {
	return &cli.Command{
		Name:  "get",
		Usage: "Download a single forecast (blocks until the archive serves it)",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "date",
				Usage:    "forecast date (YYYY-MM-DD)",
				Required: true,
			},
			&cli.IntFlag{
				Name:     "hour",
				Usage:    "initialization hour (0, 6, 12 or 18)",
				Required: true,
			},
			&cli.BoolFlag{
				Name:  "force",
				Usage: "retrieve even if already downloaded",
			},
			&cli.BoolFlag{
				Name:  "reduced",
				Usage: "retrieve the reduced 5-variable set",
			},
		},
		Action: runGet,
	}
}

func runGet(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	date, err := parseDate(cmd.String("date"))
	if err != nil {
		return err
	}
	hour := int(cmd.Int("hour"))
	if !tigge.ValidHour(hour) {
		return fmt.Errorf("invalid hour %d: forecasts are initialized at 0, 6, 12 and 18", hour)
	}
	if cmd.Bool("reduced") {
		cfg.Reduced = true
	}

	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	client := newRetriever(cfg)
	sched, err := scheduler.New(st, client.Retrieve, scheduler.Options{
		Credentials:   cfg.Credentials(),
		WorkersPerKey: cfg.WorkersPerKey,
		Variables:     cfg.Variables(),
	})
	if err != nil {
		return err
	}

	task := tigge.Task{Date: date, Hour: hour, Variables: cfg.Variables()}
	cred := cfg.Credentials()[0]

	return sched.Get(ctx, task, cred, cmd.Bool("force"))
}
