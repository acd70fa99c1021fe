package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"cyrfix/internal/audiotag"
	"cyrfix/internal/backup"
	"cyrfix/internal/config"
	"cyrfix/internal/cue"
	"cyrfix/internal/history"
	"cyrfix/internal/logging"
	"cyrfix/internal/scanner"
)

func newScanCommand(configFlag *string) *cobra.Command {
	var (
		noBackup       bool
		forceCP1251Cue bool
		threshold      float64
		followSymlinks bool
		noHistory      bool
		dryRun         bool
	)

	cmd := &cobra.Command{
		Use:   "scan <path>",
		Short: "Scan a directory tree and repair corrupted Cyrillic text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, _, err := config.Load(*configFlag)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			// Flags override config only when set explicitly.
			if cmd.Flags().Changed("no-backup") {
				cfg.Scan.Backups = !noBackup
			}
			if cmd.Flags().Changed("force-cp1251-cue") {
				cfg.Scan.ForceCP1251Cue = forceCP1251Cue
			}
			if cmd.Flags().Changed("cyr-threshold") {
				cfg.Scan.Threshold = threshold
			}
			if cmd.Flags().Changed("follow-symlinks") {
				cfg.Scan.FollowSymlinks = followSymlinks
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return fmt.Errorf("ensure directories: %w", err)
			}

			logger, err := logging.New(logging.Options{
				Level:       cfg.Logging.Level,
				Format:      cfg.Logging.Format,
				OutputPaths: cfg.LogOutputPaths(),
			})
			if err != nil {
				return err
			}

			root, err := config.ExpandPath(args[0])
			if err != nil {
				return fmt.Errorf("resolve path: %w", err)
			}
			if _, err := os.Stat(root); err != nil {
				return fmt.Errorf("path not found: %s", args[0])
			}

			lock := flock.New(cfg.LockPath())
			locked, err := lock.TryLock()
			if err != nil {
				return fmt.Errorf("acquire scan lock: %w", err)
			}
			if !locked {
				return fmt.Errorf("another cyrfix run is in progress (lock: %s)", cfg.LockPath())
			}
			defer func() { _ = lock.Unlock() }()

			return runScan(cmd, cfg, logger, root, noHistory, dryRun)
		},
	}

	cmd.Flags().BoolVar(&noBackup, "no-backup", false, "Do not create .bak files before modifying")
	cmd.Flags().BoolVar(&forceCP1251Cue, "force-cp1251-cue", false, "Treat every .cue file as cp1251, skipping the UTF-8 probe")
	cmd.Flags().Float64Var(&threshold, "cyr-threshold", config.Default().Scan.Threshold, "Detector acceptance threshold")
	cmd.Flags().BoolVar(&followSymlinks, "follow-symlinks", config.Default().Scan.FollowSymlinks, "Follow symbolic links while walking")
	cmd.Flags().BoolVar(&noHistory, "no-history", false, "Do not record repairs in the history ledger")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report repairs without writing anything")

	return cmd
}

func runScan(cmd *cobra.Command, cfg *config.Config, logger *slog.Logger, root string, noHistory, dryRun bool) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	colors := newPalette(colorsEnabled())

	var (
		store *history.Store
		runID string
	)
	if cfg.History.Enabled && !noHistory {
		var err error
		store, err = history.Open(cfg.History.Path)
		if err != nil {
			return fmt.Errorf("open history: %w", err)
		}
		defer store.Close()
		runID, err = store.BeginRun(ctx, root, dryRun)
		if err != nil {
			return err
		}
	}

	var reporter scanner.Reporter = &consoleReporter{out: out, colors: colors}
	if store != nil {
		reporter = &recordingReporter{next: reporter, store: store, runID: runID, ctx: ctx, logger: logger}
	}

	backups := backup.NewManager(!cfg.Scan.Backups || dryRun)
	cueProc := cue.NewProcessor(backups, cfg.Scan.ForceCP1251Cue, dryRun, logger)
	audioProc := audiotag.NewProcessor(backups, cfg.Scan.Threshold, dryRun, nil, logger)
	scan := scanner.New(cueProc, audioProc, cfg.Scan.FollowSymlinks, reporter, logger)

	if dryRun {
		fmt.Fprintf(out, "%s %s\n", colors.heading.Sprint("Dry run, scanning:"), root)
	} else {
		fmt.Fprintf(out, "%s %s\n", colors.heading.Sprint("Scanning:"), root)
	}

	summary, err := scan.Run(ctx, root)
	if err != nil {
		return err
	}

	if store != nil {
		if err := store.FinishRun(ctx, runID, summary.Fixed); err != nil {
			logger.Warn("could not finalize history run", "error", err)
		}
	}

	fmt.Fprintf(out, "%s %d of %d files fixed", colors.heading.Sprint("Done!"), summary.Fixed, summary.Scanned)
	if summary.Errors > 0 {
		fmt.Fprintf(out, ", %d skipped with errors", summary.Errors)
	}
	fmt.Fprintln(out)
	return nil
}
