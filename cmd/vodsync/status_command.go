package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"vodsync/internal/ledger"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var (
		failures     bool
		statusFilter string
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show tracking state per source",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := ledger.Open(cfg)
			if err != nil {
				return fmt.Errorf("open tracking store: %w", err)
			}
			defer store.Close()

			out := cmd.OutOrStdout()

			health, err := store.Health(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Tracked: %d  Completed: %d  Failed: %d  In flight: %d\n\n",
				health.Total, health.Completed, health.Failed, health.Pending+health.Downloading)

			stats, err := store.StatsBySource(cmd.Context())
			if err != nil {
				return err
			}
			if len(stats) == 0 {
				fmt.Fprintln(out, "No sources tracked yet. Run `vodsync sync` to start.")
				return nil
			}

			rows := make([][]string, 0, len(stats))
			for _, s := range stats {
				last := "-"
				if !s.LastUpdate.IsZero() {
					last = s.LastUpdate.Local().Format(time.DateTime)
				}
				rows = append(rows, []string{
					s.SourceID,
					strconv.Itoa(s.Completed),
					strconv.Itoa(s.Failed),
					strconv.Itoa(s.InFlight),
					last,
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Source", "Completed", "Failed", "In flight", "Last update"},
				rows, 1, 2, 3))

			if failures && statusFilter == "" {
				statusFilter = string(ledger.StatusFailed)
			}
			if statusFilter != "" {
				status, ok := ledger.ParseStatus(statusFilter)
				if !ok {
					return fmt.Errorf("unknown status %q (valid: %s)", statusFilter, statusNames())
				}
				if err := printRecords(cmd, store, status); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&failures, "failures", false, "List failed items with their errors")
	cmd.Flags().StringVar(&statusFilter, "status", "", "List items in this state ("+statusNames()+")")
	return cmd
}

func statusNames() string {
	all := ledger.AllStatuses()
	names := make([]string, len(all))
	for i, status := range all {
		names[i] = string(status)
	}
	return strings.Join(names, ", ")
}

func printRecords(cmd *cobra.Command, store *ledger.Store, status ledger.Status) error {
	out := cmd.OutOrStdout()
	stats, err := store.StatsBySource(cmd.Context())
	if err != nil {
		return err
	}

	var rows [][]string
	for _, s := range stats {
		records, err := store.RecordsBySource(cmd.Context(), s.SourceID)
		if err != nil {
			return err
		}
		for _, record := range records {
			if record.Status != status {
				continue
			}
			detail := record.ErrorMessage
			if status == ledger.StatusCompleted {
				detail = record.LocalPath
			}
			rows = append(rows, []string{
				record.SourceID,
				record.VideoID,
				record.Title,
				strconv.Itoa(record.AttemptCount),
				detail,
			})
		}
	}
	if len(rows) == 0 {
		return nil
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, renderTable(
		[]string{"Source", "Video", "Title", "Attempts", "Detail"},
		rows, 3))
	return nil
}
