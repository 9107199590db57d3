package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/guygriffiths/wildfire/internal/tigge"
)

func statusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Report which forecasts in a date range are downloaded, pending or unobtainable",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "start",
				Usage: "first date to check (YYYY-MM-DD, default: archive epoch 2007-03-05)",
			},
			&cli.StringFlag{
				Name:  "end",
				Usage: "last date to check (YYYY-MM-DD, default: today)",
			},
			&cli.BoolFlag{
				Name:  "reduced",
				Usage: "check the reduced-set filenames",
			},
			&cli.BoolFlag{
				Name:  "list-pending",
				Usage: "print every pending target name",
			},
		},
		Action: runStatus,
	}
}

func runStatus(ctx context.Context, cmd *cli.Command) error {
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
	if start.IsZero() {
		start = tigge.Epoch
	}
	if end.IsZero() {
		end = time.Now().UTC()
	}
	if cmd.Bool("reduced") {
		cfg.Reduced = true
	}

	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	tasks := tigge.Tasks(start, end, cfg.Variables())

	var downloaded, unobtainable int
	var totalBytes int64
	var pending []string

	for _, task := range tasks {
		if tigge.Missing(task.Date) {
			unobtainable++
			continue
		}
		size, err := st.Size(ctx, task.Filename())
		if err != nil {
			return err
		}
		if size > 0 {
			downloaded++
			totalBytes += size
			continue
		}
		pending = append(pending, task.Filename())
	}

	fmt.Printf("Range:        %s to %s\n", start.Format("2006-01-02"), end.Format("2006-01-02"))
	fmt.Printf("Forecasts:    %d\n", len(tasks))
	fmt.Printf("Downloaded:   %d (%d bytes)\n", downloaded, totalBytes)
	fmt.Printf("Pending:      %d\n", len(pending))
	fmt.Printf("Unobtainable: %d (dates missing from the archive)\n", unobtainable)

	if cmd.Bool("list-pending") {
		for _, name := range pending {
			fmt.Fprintln(os.Stdout, name)
		}
	}

	return nil
}
