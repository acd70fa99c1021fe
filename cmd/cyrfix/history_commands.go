package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"cyrfix/internal/config"
	"cyrfix/internal/history"
)

func newHistoryCommand(configFlag *string) *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect the repair ledger",
	}

	historyCmd.AddCommand(newHistoryRunsCommand(configFlag))
	historyCmd.AddCommand(newHistoryListCommand(configFlag))
	historyCmd.AddCommand(newHistoryClearCommand(configFlag))

	return historyCmd
}

func openHistory(configFlag *string) (*history.Store, error) {
	cfg, _, _, err := config.Load(*configFlag)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	store, err := history.Open(cfg.History.Path)
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	return store, nil
}

func newHistoryRunsCommand(configFlag *string) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent scan runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openHistory(configFlag)
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(out, "No recorded runs")
				return nil
			}

			rows := make([][]string, 0, len(runs))
			for _, run := range runs {
				mode := ""
				if run.DryRun {
					mode = "dry-run"
				}
				rows = append(rows, []string{
					run.ID,
					formatTime(run.StartedAt),
					run.Root,
					fmt.Sprintf("%d", run.FixedCount),
					mode,
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"RUN", "STARTED", "ROOT", "FIXED", "MODE"},
				rows,
			))
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of runs to show")
	return cmd
}

func newHistoryListCommand(configFlag *string) *cobra.Command {
	var runID string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded repairs",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openHistory(configFlag)
			if err != nil {
				return err
			}
			defer store.Close()

			fixes, err := store.ListFixes(cmd.Context(), runID, limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(fixes) == 0 {
				fmt.Fprintln(out, "No recorded repairs")
				return nil
			}

			rows := make([][]string, 0, len(fixes))
			for _, fix := range fixes {
				rows = append(rows, []string{
					formatTime(fix.CreatedAt),
					fix.Kind,
					fix.FieldKey,
					fix.Path,
					fix.Before,
					fix.After,
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"TIME", "KIND", "FIELD", "PATH", "BEFORE", "AFTER"},
				rows,
			))
			return nil
		},
	}

	cmd.Flags().StringVar(&runID, "run", "", "Limit output to one run ID")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of repairs to show")
	return cmd
}

func newHistoryClearCommand(configFlag *string) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete all recorded runs and repairs",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openHistory(configFlag)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.Clear(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "History cleared")
			return nil
		},
	}
}

func formatTime(ts time.Time) string {
	if ts.IsZero() {
		return ""
	}
	return ts.Local().Format("2006-01-02 15:04:05")
}
