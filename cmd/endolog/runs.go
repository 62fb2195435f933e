package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/goodtune/endolog/internal/config"
	"github.com/spf13/cobra"
)

var runsLimit int

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect recorded run history",
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent runs, newest first",
	RunE:  runRunsList,
}

var runsCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete runs older than the configured retention window",
	RunE:  runRunsCleanup,
}

func init() {
	runsListCmd.Flags().IntVar(&runsLimit, "limit", 20, "Maximum number of runs to show")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsCleanupCmd)
	rootCmd.AddCommand(runsCmd)
}

func runRunsList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	store, err := openStorage(cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()

	runs, err := store.Runs().List(ctx, runsLimit)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	if len(runs) == 0 {
		fmt.Println("No runs recorded yet.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "STARTED\tDURATION\tRECORDS\tUSER\tREASON\tFILE")
	for _, run := range runs {
		duration := run.StoppedAt.Sub(run.StartedAt).Round(time.Second)
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\n",
			run.StartedAt.Format("2006-01-02 15:04:05"),
			duration,
			run.Records,
			run.Username,
			run.Reason,
			run.Path,
		)
	}
	return w.Flush()
}

func runRunsCleanup(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	store, err := openStorage(cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()

	cutoff := time.Now().AddDate(0, 0, -cfg.History.RetentionDays)
	deleted, err := store.Runs().DeleteBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("failed to clean up runs: %w", err)
	}

	color.New(color.FgGreen).Printf("✅ Deleted %d run(s) older than %s\n",
		deleted, cutoff.Format("2006-01-02"))
	return nil
}
