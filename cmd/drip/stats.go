package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/pario-ai/drip/pkg/models"
	"github.com/pario-ai/drip/pkg/tracker"
)

func newStatsCmd(configPath *string) *cobra.Command {
	var (
		days   int
		recent int
	)

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show request history",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(afero.NewOsFs(), *configPath, os.LookupEnv)
			if err != nil {
				return err
			}

			tr, err := tracker.New(cfg.History.DBPath)
			if err != nil {
				return err
			}
			defer func() { _ = tr.Close() }()

			ctx := context.Background()
			since := daysAgo(time.Now(), days)

			summaries, err := tr.DailySummary(ctx, since)
			if err != nil {
				return err
			}
			cycles, err := tr.Cycles(ctx, since)
			if err != nil {
				return err
			}
			var records []models.RequestRecord
			if recent > 0 {
				records, err = tr.Recent(ctx, recent)
				if err != nil {
					return err
				}
			}

			return printStats(cmd.OutOrStdout(), time.Now(), summaries, cycles, records)
		},
	}

	cmd.Flags().IntVar(&days, "days", 7, "number of days to summarize")
	cmd.Flags().IntVar(&recent, "recent", 0, "also list the N most recent requests")
	return cmd
}

// daysAgo returns local midnight n-1 days before now, so n=1 is today.
func daysAgo(now time.Time, n int) time.Time {
	if n < 1 {
		n = 1
	}
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return midnight.AddDate(0, 0, -(n - 1))
}

func printStats(out io.Writer, now time.Time, summaries []models.DaySummary, cycles []models.CycleRecord, records []models.RequestRecord) error {
	if len(summaries) == 0 && len(cycles) == 0 {
		fmt.Fprintln(out, "No history found.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DAY\tREQUESTS\tOK\tPROMPT FAILED\tERRORS\tTOKENS")
	for _, s := range summaries {
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%s\n",
			s.Day, s.Requests, s.Succeeded, s.PromptFailures, s.CompletionErrors, humanize.Comma(s.TotalTokens))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if len(cycles) > 0 {
		fmt.Fprintln(out)
		w = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "CYCLE\tSTARTED\tLIMIT\tREQUESTS\tRESUMES")
		for _, c := range cycles {
			resume := "-"
			if !c.ResumeAt.IsZero() {
				resume = humanize.RelTime(c.ResumeAt, now, "ago", "from now")
			}
			fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\n",
				shortID(c.ID), c.StartedAt.Local().Format("2006-01-02T15:04:05"), c.RequestLimit, c.Requests, resume)
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}

	if len(records) > 0 {
		fmt.Fprintln(out)
		w = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "WHEN\tSEQ\tOUTCOME\tSTATUS\tTOKENS\tLATENCY")
		for _, r := range records {
			status := "-"
			if r.StatusCode != 0 {
				status = fmt.Sprint(r.StatusCode)
			}
			fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%d\t%s\n",
				humanize.RelTime(r.CreatedAt, now, "ago", "from now"), r.Seq, r.Outcome, status, r.TotalTokens,
				(time.Duration(r.LatencyMs) * time.Millisecond).String())
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
